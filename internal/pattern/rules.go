package pattern

import (
	"regexp"
	"strings"

	"github.com/docveil/docveil/internal/entity"
)

// DetectionRule represents a single structured-PII detection rule. Several
// rules may emit the same entity type (e.g. the date-of-birth variants).
type DetectionRule struct {
	Name    string
	Type    entity.Type
	Pattern *regexp.Regexp
	// Group selects the submatch used as the entity span; 0 is the whole
	// match. Label-prefixed rules capture the value after the label so the
	// emitted span covers the code, not the label.
	Group int
	// MinLen discards matches shorter than this many bytes.
	MinLen int
	// Validate, when set, must accept the matched value.
	Validate func(value string) bool
}

// GetDefaultRules returns the built-in structured-PII rule set.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "email",
			Type:    entity.TypeEmail,
			Pattern: regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9._%+-]{0,63}@[a-zA-Z0-9][a-zA-Z0-9.-]{0,253}\.[a-zA-Z]{2,}`),
			MinLen:  5,
		},
		{
			Name:    "phone",
			Type:    entity.TypePhone,
			Pattern: regexp.MustCompile(`\+?\d{1,4}[\s.-]?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{3,4}\b|\b\d{10,14}\b|\(\d{3}\)[\s.-]?\d{3}[\s.-]?\d{4}\b`),
			MinLen:  10,
		},
		{
			// RE2 has no lookahead, so the reserved SSN ranges (000/666/9xx
			// area, 00 group, 0000 serial) are rejected in Validate instead.
			Name:     "ssn",
			Type:     entity.TypeSSN,
			Pattern:  regexp.MustCompile(`(?i:\b(?:ssn|social\s+security(?:\s+(?:number|no\.?))?|ss#)\s*[:#]?\s*)(\d{3}[-\s]?\d{2}[-\s]?\d{4})\b`),
			Group:    1,
			Validate: validSSN,
		},
		{
			Name:    "credit_card",
			Type:    entity.TypeCreditCard,
			Pattern: regexp.MustCompile(`\b(?:4\d{3}|5[1-5]\d{2}|6011|3[47]\d{2})[-\s]?\d{4,6}[-\s]?\d{4,5}[-\s]?\d{3,4}\b`),
		},
		{
			Name:    "ip",
			Type:    entity.TypeIP,
			Pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`),
		},
		{
			Name:    "url",
			Type:    entity.TypeURL,
			Pattern: regexp.MustCompile(`(?i)https?://[^\s,)]+|www\.[^\s,)]+|[a-z0-9-]+\.(?:com|org|net|io|dev|app|in|co\.in)/[^\s,)]+|(?:linkedin|github|twitter|facebook|instagram|medium|behance)\.com/[^\s,)]+`),
		},
		{
			Name:    "address",
			Type:    entity.TypeAddress,
			Pattern: regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-zA-Z]*,?\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Way|Circle|Cir|Nagar|Colony|Marg|Layout|Cross|Main)\b`),
		},
		{
			Name:    "dob_labeled",
			Type:    entity.TypeDOB,
			Pattern: regexp.MustCompile(`(?i:\b(?:dob|date\s+of\s+birth|born(?:\s+on)?|birth\s*date)\s*[:\-]?\s*)(\d{1,2}[-/.]\d{1,2}[-/.](?:19|20)\d{2}|(?:19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}|[A-Za-z]+\s+\d{1,2},?\s+(?:19|20)\d{2}|\d{1,2}\s+[A-Za-z]+,?\s+(?:19|20)\d{2})`),
			Group:   1,
		},
		{
			Name:    "dob_month_name",
			Type:    entity.TypeDOB,
			Pattern: regexp.MustCompile(`\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2},?\s+(?:19|20)\d{2}\b`),
		},
		{
			Name:    "dob_numeric",
			Type:    entity.TypeDOB,
			Pattern: regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.](?:19|20)\d{2}\b`),
		},
		{
			Name:    "passport",
			Type:    entity.TypePassport,
			Pattern: regexp.MustCompile(`(?i:\bpassport(?:\s*(?:no\.?|number|#))?\s*[:#]?\s*)([A-Z][0-9]{7,8}|[A-Z0-9]{6,9})\b`),
			Group:   1,
		},
		{
			Name:    "bank_account",
			Type:    entity.TypeBankAccount,
			Pattern: regexp.MustCompile(`(?i:\b(?:(?:bank\s+)?account(?:\s*(?:no\.?|number|#))?|acct|a/c|iban)\s*[:#]?\s*)([A-Z]{2}\d{2}[A-Z0-9]{10,30}|\d{9,18})\b`),
			Group:   1,
		},
		{
			Name:    "tax_id_labeled",
			Type:    entity.TypeTaxID,
			Pattern: regexp.MustCompile(`(?i:\b(?:ein|tin|tax\s*id(?:entification)?(?:\s*(?:no\.?|number))?)\s*[:#]?\s*)(\d{2}-?\d{7})\b`),
			Group:   1,
		},
		{
			Name:    "tax_id_pan",
			Type:    entity.TypeTaxID,
			Pattern: regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`),
		},
		{
			Name:    "tax_id_aadhaar",
			Type:    entity.TypeTaxID,
			Pattern: regexp.MustCompile(`\b\d{4}\s\d{4}\s\d{4}\b`),
		},
		{
			Name:    "age_labeled",
			Type:    entity.TypeAge,
			Pattern: regexp.MustCompile(`(?i:\bage\s*[:\-]?\s*)([1-9]\d?)\b`),
			Group:   1,
		},
		{
			Name:    "age_phrase",
			Type:    entity.TypeAge,
			Pattern: regexp.MustCompile(`(?i)\b[1-9]\d?\s+years?\s+old\b`),
		},
	}
}

// validSSN rejects numbers in the reserved invalid ranges.
func validSSN(value string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[0:3], digits[3:5], digits[5:9]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}
