package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docveil/docveil/internal/entity"
)

// Rule is a user-defined redaction rule. Literal rules match their pattern as
// a case-insensitive substring; regex rules compile the pattern as-is.
type Rule struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Pattern     string    `json:"pattern" db:"pattern"`
	IsRegex     bool      `json:"is_regex" db:"is_regex"`
	Replacement string    `json:"replacement" db:"replacement"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks that the rule is usable before it is stored.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern is required")
	}
	if _, err := r.compile(); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	return nil
}

func (r *Rule) compile() (*regexp.Regexp, error) {
	if r.IsRegex {
		return regexp.Compile(r.Pattern)
	}
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(r.Pattern))
}

// Apply matches every enabled rule against text and returns the hits as
// custom entities at full confidence. An unparseable pattern skips that rule
// only; overlap with other sources is resolved downstream.
func Apply(text string, ruleSet []Rule) []entity.Entity {
	var out []entity.Entity

	for _, r := range ruleSet {
		if !r.Enabled {
			continue
		}
		re, err := r.compile()
		if err != nil {
			continue
		}

		suggested := r.Replacement
		if suggested == "" {
			suggested = entity.SuggestedReplacement(entity.TypeCustom)
		}

		for i, loc := range re.FindAllStringIndex(text, -1) {
			out = append(out, entity.Entity{
				ID:         fmt.Sprintf("custom-%d-%d", r.ID, i),
				Type:       entity.TypeCustom,
				Value:      text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: 1.0,
				Suggested:  suggested,
				Source:     entity.SourceCustom,
			})
		}
	}

	return out
}
