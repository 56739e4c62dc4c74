package entity

import "fmt"

// Type classifies a detected PII span.
type Type string

const (
	TypeEmail        Type = "email"
	TypePhone        Type = "phone"
	TypeSSN          Type = "ssn"
	TypeCreditCard   Type = "credit_card"
	TypeIP           Type = "ip"
	TypeURL          Type = "url"
	TypeAddress      Type = "address"
	TypeDOB          Type = "dob"
	TypePassport     Type = "passport"
	TypeBankAccount  Type = "bank_account"
	TypeTaxID        Type = "tax_id"
	TypeAge          Type = "age"
	TypeName         Type = "name"
	TypeOrganization Type = "organization"
	TypeLocation     Type = "location"
	TypeCustom       Type = "custom"
)

// Source records which subsystem produced an entity.
type Source string

const (
	SourcePattern Source = "pattern"
	SourceML      Source = "ml"
	SourceCustom  Source = "custom"
)

// Entity is one detected PII span. Offsets are byte offsets into the exact
// text the detector ran on; Value must equal text[Start:End].
type Entity struct {
	ID         string  `json:"id"`
	Type       Type    `json:"type"`
	Value      string  `json:"value"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Redact     bool    `json:"redact"`
	Suggested  string  `json:"suggested"`
	Source     Source  `json:"source,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Overlaps reports whether the two half-open ranges intersect.
func (e Entity) Overlaps(other Entity) bool {
	return e.Start < other.End && other.Start < e.End
}

// Validate checks the positional invariants against the source text.
func (e Entity) Validate(text string) error {
	if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
		return fmt.Errorf("entity %q has invalid range [%d,%d) for text length %d", e.ID, e.Start, e.End, len(text))
	}
	if text[e.Start:e.End] != e.Value {
		return fmt.Errorf("entity %q value mismatch: %q != %q", e.ID, e.Value, text[e.Start:e.End])
	}
	return nil
}

// priorityRank orders types for overlap resolution. Structured pattern types
// outrank unstructured recognizer types; custom rules sit between them.
var priorityRank = map[Type]int{
	TypeEmail:        0,
	TypePhone:        1,
	TypeSSN:          2,
	TypeCreditCard:   3,
	TypeIP:           4,
	TypeDOB:          5,
	TypePassport:     6,
	TypeBankAccount:  7,
	TypeTaxID:        8,
	TypeAddress:      9,
	TypeAge:          10,
	TypeURL:          11,
	TypeCustom:       12,
	TypeName:         13,
	TypeOrganization: 14,
	TypeLocation:     15,
}

// Priority returns the overlap-resolution rank for a type. Lower wins.
// Unknown types rank last.
func Priority(t Type) int {
	if rank, ok := priorityRank[t]; ok {
		return rank
	}
	return len(priorityRank)
}

// suggestedReplacements maps each type to its fixed replacement label,
// computed once at detection time.
var suggestedReplacements = map[Type]string{
	TypeEmail:        "[email redacted]",
	TypePhone:        "[phone redacted]",
	TypeSSN:          "[SSN redacted]",
	TypeCreditCard:   "[card redacted]",
	TypeIP:           "[IP redacted]",
	TypeURL:          "[URL redacted]",
	TypeAddress:      "[address redacted]",
	TypeDOB:          "[DOB redacted]",
	TypePassport:     "[passport redacted]",
	TypeBankAccount:  "[account redacted]",
	TypeTaxID:        "[tax ID redacted]",
	TypeAge:          "[age redacted]",
	TypeName:         "[Name Redacted]",
	TypeOrganization: "[Organization Redacted]",
	TypeLocation:     "[Location Redacted]",
	TypeCustom:       "[redacted]",
}

// SuggestedReplacement returns the replacement label for a type.
func SuggestedReplacement(t Type) string {
	if s, ok := suggestedReplacements[t]; ok {
		return s
	}
	return fmt.Sprintf("[%s redacted]", t)
}
