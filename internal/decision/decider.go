package decision

import (
	"regexp"
	"strings"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/structure"
)

// Decision is the outcome of the context heuristics for one entity.
type Decision struct {
	ShouldRedact bool   `json:"should_redact"`
	Reason       string `json:"reason"`
}

// Decision reasons.
const (
	ReasonSensitiveContact = "sensitive_contact"
	ReasonURL              = "url"
	ReasonPersonalName     = "personal_name"
	ReasonReferenceName    = "reference_name"
	ReasonInstitution      = "institution"
	ReasonUnclearOrg       = "unclear_org"
	ReasonPersonalLocation = "personal_location"
	ReasonLocationPublic   = "location_public"
	ReasonCustomRule       = "custom_rule"
	ReasonDefault          = "default"
)

// contactWindow is how far (in bytes) from contact info an entity may sit and
// still count as "near" it.
const contactWindow = 200

// labelWindow is how much preceding text is inspected for a personal label.
const labelWindow = 50

// alwaysRedact holds the types redacted unconditionally by rule 1.
var alwaysRedact = map[entity.Type]bool{
	entity.TypeEmail:       true,
	entity.TypePhone:       true,
	entity.TypeSSN:         true,
	entity.TypeCreditCard:  true,
	entity.TypeIP:          true,
	entity.TypeDOB:         true,
	entity.TypePassport:    true,
	entity.TypeBankAccount: true,
	entity.TypeTaxID:       true,
	entity.TypeAge:         true,
	entity.TypeAddress:     true,
}

var (
	contactKeywordPattern = regexp.MustCompile(`(?i)\b(email|phone|mobile|contact|reach|call|linkedin|github)\b`)
	personalLabelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(name|candidate|applicant|by|author|from)\s*:?\s*$`),
		regexp.MustCompile(`^[A-Z][a-z]+\s+[A-Z][a-z]+\s*$`),
	}
	institutionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(university|college|institute|school|academy)\b`),
		regexp.MustCompile(`(?i)\b(corporation|company|inc\.|ltd\.|llc|pvt)\b`),
		regexp.MustCompile(`(?i)\b(hospital|medical|clinic)\b`),
		regexp.MustCompile(`(?i)\b(government|ministry|department)\b`),
	}
)

// Decide applies the context heuristics to one entity. First matching rule
// wins, evaluated top to bottom. The document structure is computed fresh
// from fullText by the caller via structure.Analyze.
func Decide(e entity.Entity, fullText string, all []entity.Entity, doc *structure.Document) Decision {
	if alwaysRedact[e.Type] {
		return Decision{ShouldRedact: true, Reason: ReasonSensitiveContact}
	}

	if e.Type == entity.TypeURL {
		return Decision{ShouldRedact: true, Reason: ReasonURL}
	}

	// User-defined rules are explicit instructions, not heuristics.
	if e.Type == entity.TypeCustom {
		return Decision{ShouldRedact: true, Reason: ReasonCustomRule}
	}

	if e.Type == entity.TypeName {
		if inPersonalContext(e, fullText, all, doc) || hasPersonalLabel(e, fullText) {
			return Decision{ShouldRedact: true, Reason: ReasonPersonalName}
		}
		// Likely a reference to someone else (a manager, a citation).
		return Decision{ShouldRedact: false, Reason: ReasonReferenceName}
	}

	if e.Type == entity.TypeOrganization {
		if isProperInstitution(e.Value, fullText) {
			return Decision{ShouldRedact: false, Reason: ReasonInstitution}
		}
		// Never auto-redacted; surfaced for manual review instead.
		return Decision{ShouldRedact: false, Reason: ReasonUnclearOrg}
	}

	if e.Type == entity.TypeLocation {
		if inPersonalContext(e, fullText, all, doc) {
			return Decision{ShouldRedact: true, Reason: ReasonPersonalLocation}
		}
		// Work and education locations are typically not sensitive.
		return Decision{ShouldRedact: false, Reason: ReasonLocationPublic}
	}

	return Decision{ShouldRedact: false, Reason: ReasonDefault}
}

// inPersonalContext combines the structural tests shared by the name and
// location rules: header position, personal section, or contact proximity.
func inPersonalContext(e entity.Entity, fullText string, all []entity.Entity, doc *structure.Document) bool {
	if doc.InHeader(e.Start) || doc.InPersonalSection(e.Start) {
		return true
	}
	return isNearContactInfo(e, fullText, all)
}

// isNearContactInfo reports whether contact info sits within the context
// window: either a detected email/phone/url entity, or a contact keyword in
// the surrounding text.
func isNearContactInfo(e entity.Entity, fullText string, all []entity.Entity) bool {
	for _, other := range all {
		if other.Type != entity.TypeEmail && other.Type != entity.TypePhone && other.Type != entity.TypeURL {
			continue
		}
		delta := other.Start - e.Start
		if delta < 0 {
			delta = -delta
		}
		if delta < contactWindow {
			return true
		}
	}

	start := e.Start - contactWindow
	if start < 0 {
		start = 0
	}
	end := e.End + contactWindow
	if end > len(fullText) {
		end = len(fullText)
	}
	return contactKeywordPattern.MatchString(fullText[start:end])
}

// hasPersonalLabel reports whether the text immediately preceding the entity
// looks like an ownership label ("Name:", "Candidate:", a bare "First Last").
func hasPersonalLabel(e entity.Entity, fullText string) bool {
	start := e.Start - labelWindow
	if start < 0 {
		start = 0
	}
	preceding := strings.TrimSpace(fullText[start:e.Start])

	for _, p := range personalLabelPatterns {
		if p.MatchString(preceding) {
			return true
		}
	}
	return false
}

// isProperInstitution reports whether an organization name denotes a real,
// typically-public entity: it contains an institution keyword or is repeated
// verbatim in the document.
func isProperInstitution(value, fullText string) bool {
	for _, p := range institutionPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return strings.Count(strings.ToLower(fullText), strings.ToLower(value)) >= 2
}

// Annotate stamps every entity with its decision, leaving the list otherwise
// untouched.
func Annotate(entities []entity.Entity, fullText string) []entity.Entity {
	doc := structure.Analyze(fullText)
	out := make([]entity.Entity, len(entities))
	for i, e := range entities {
		d := Decide(e, fullText, entities, doc)
		e.Redact = d.ShouldRedact
		e.Reason = d.Reason
		out[i] = e
	}
	return out
}

// Apply stamps decisions and drops entities the heuristics decided to keep.
// The automatic pipeline only emits redact-eligible entities; a consumer may
// still flag kept entities manually.
func Apply(entities []entity.Entity, fullText string) []entity.Entity {
	annotated := Annotate(entities, fullText)
	out := make([]entity.Entity, 0, len(annotated))
	for _, e := range annotated {
		if e.Redact {
			out = append(out, e)
		}
	}
	return out
}
