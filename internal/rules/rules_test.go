package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/docveil/docveil/internal/entity"
)

func TestRuleValidate(t *testing.T) {
	cases := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid literal", Rule{Name: "project", Pattern: "Project Phoenix"}, false},
		{"valid regex", Rule{Name: "ticket", Pattern: `TICKET-\d+`, IsRegex: true}, false},
		{"missing name", Rule{Pattern: "x"}, true},
		{"missing pattern", Rule{Name: "x"}, true},
		{"broken regex", Rule{Name: "bad", Pattern: `[unclosed`, IsRegex: true}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyLiteralCaseInsensitive(t *testing.T) {
	text := "Project Phoenix kickoff. See PROJECT PHOENIX docs."
	ents := Apply(text, []Rule{
		{ID: 1, Name: "codename", Pattern: "project phoenix", Enabled: true, Replacement: "[project]"},
	})

	if len(ents) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(ents))
	}
	for _, e := range ents {
		if e.Type != entity.TypeCustom || e.Source != entity.SourceCustom {
			t.Errorf("unexpected type/source: %+v", e)
		}
		if e.Confidence != 1.0 {
			t.Errorf("custom rules match at full confidence, got %v", e.Confidence)
		}
		if e.Suggested != "[project]" {
			t.Errorf("suggested = %q, want rule replacement", e.Suggested)
		}
		if got := text[e.Start:e.End]; got != e.Value {
			t.Errorf("value %q does not match span slice %q", e.Value, got)
		}
	}
}

func TestApplyRegexRule(t *testing.T) {
	ents := Apply("see TICKET-42 and TICKET-7", []Rule{
		{ID: 2, Name: "tickets", Pattern: `TICKET-\d+`, IsRegex: true, Enabled: true},
	})
	if len(ents) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(ents))
	}
	if ents[0].Value != "TICKET-42" || ents[1].Value != "TICKET-7" {
		t.Errorf("unexpected values: %q, %q", ents[0].Value, ents[1].Value)
	}
	if ents[0].Suggested == "" {
		t.Error("empty replacement should fall back to the default suggestion")
	}
}

func TestApplySkipsDisabledAndBroken(t *testing.T) {
	ents := Apply("secret stuff", []Rule{
		{ID: 3, Name: "off", Pattern: "secret", Enabled: false},
		{ID: 4, Name: "bad", Pattern: `[`, IsRegex: true, Enabled: true},
	})
	if len(ents) != 0 {
		t.Errorf("expected no matches, got %+v", ents)
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rule := &Rule{Name: "codename", Pattern: "Phoenix", Enabled: true}
	if err := store.Create(ctx, rule); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rule.ID == 0 || rule.CreatedAt.IsZero() {
		t.Errorf("create should assign id and timestamps: %+v", rule)
	}

	got, err := store.Get(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "codename" {
		t.Errorf("got name %q", got.Name)
	}

	got.Pattern = "Phoenix II"
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := store.Get(ctx, rule.ID)
	if updated.Pattern != "Phoenix II" {
		t.Errorf("update not persisted: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) && !updated.UpdatedAt.Equal(updated.CreatedAt) {
		t.Error("updated_at should advance")
	}

	list, err := store.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v, %d rules", err, len(list))
	}

	if err := store.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Create(ctx, &Rule{Name: "bad", Pattern: `[`, IsRegex: true}); err == nil {
		t.Error("create should reject an invalid rule")
	}
}
