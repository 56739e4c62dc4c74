package pattern

import (
	"testing"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
)

func newAllDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(config.DetectionConfig{Enabled: true, Detectors: []string{"all"}}, logger.NewNop())
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	return d
}

func typesOf(ents []entity.Entity) map[entity.Type]int {
	out := make(map[entity.Type]int)
	for _, e := range ents {
		out[e.Type]++
	}
	return out
}

func TestDetectStructuredTypes(t *testing.T) {
	d := newAllDetector(t)

	tests := []struct {
		name  string
		text  string
		typ   entity.Type
		value string
	}{
		{"email", "Write to jane.doe+tag@example.co.uk today", entity.TypeEmail, "jane.doe+tag@example.co.uk"},
		{"phone", "Call (555) 123-4567 now", entity.TypePhone, "(555) 123-4567"},
		{"ssn labeled", "SSN: 123-45-6789", entity.TypeSSN, "123-45-6789"},
		{"credit card", "Card 4111 1111 1111 1111 on file", entity.TypeCreditCard, "4111 1111 1111 1111"},
		{"ip", "Server at 192.168.1.10 responded", entity.TypeIP, "192.168.1.10"},
		{"url", "See https://example.com/profile for details", entity.TypeURL, "https://example.com/profile"},
		{"dob labeled", "DOB: 01/02/1990", entity.TypeDOB, "01/02/1990"},
		{"dob month name", "Born January 2, 1990 in town", entity.TypeDOB, "January 2, 1990"},
		{"passport labeled", "Passport No: A1234567", entity.TypePassport, "A1234567"},
		{"bank account", "Account Number: 123456789012", entity.TypeBankAccount, "123456789012"},
		{"tax id pan", "PAN ABCDE1234F registered", entity.TypeTaxID, "ABCDE1234F"},
		{"age labeled", "Age: 34", entity.TypeAge, "34"},
		{"age phrase", "She is 34 years old", entity.TypeAge, "34 years old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ents := d.Detect(tt.text)
			for _, e := range ents {
				if e.Type != tt.typ {
					continue
				}
				if e.Value != tt.value {
					t.Errorf("value = %q, want %q", e.Value, tt.value)
				}
				if tt.text[e.Start:e.End] != e.Value {
					t.Errorf("offsets [%d,%d) do not cover the value", e.Start, e.End)
				}
				if !e.Redact || e.Source != entity.SourcePattern || e.Confidence != 1.0 {
					t.Errorf("entity flags wrong: %+v", e)
				}
				return
			}
			t.Fatalf("%s not detected in %q: %+v", tt.typ, tt.text, ents)
		})
	}
}

func TestDetectRejectsInvalidSSN(t *testing.T) {
	d := newAllDetector(t)

	for _, text := range []string{
		"SSN: 000-12-3456",
		"SSN: 666-12-3456",
		"SSN: 923-12-3456",
		"SSN: 123-00-3456",
		"SSN: 123-45-0000",
	} {
		if n := typesOf(d.Detect(text))[entity.TypeSSN]; n != 0 {
			t.Errorf("reserved-range SSN accepted: %q", text)
		}
	}
}

func TestDetectDropsOverlapsWithinCategory(t *testing.T) {
	d := newAllDetector(t)

	// The labeled and numeric date rules both cover the same span.
	ents := d.Detect("Date of Birth: 01/02/1990")
	if n := typesOf(ents)[entity.TypeDOB]; n != 1 {
		t.Errorf("got %d DOB entities, want 1: %+v", n, ents)
	}
}

func TestDetectEmptyText(t *testing.T) {
	d := newAllDetector(t)

	if ents := d.Detect("   \n\t"); len(ents) != 0 {
		t.Errorf("blank text produced entities: %+v", ents)
	}
}

func TestSelectiveDetectors(t *testing.T) {
	d, err := New(config.DetectionConfig{Enabled: true, Detectors: []string{"email"}}, logger.NewNop())
	if err != nil {
		t.Fatalf("detector: %v", err)
	}

	ents := d.Detect("jane@example.com and (555) 123-4567")
	counts := typesOf(ents)
	if counts[entity.TypeEmail] != 1 {
		t.Errorf("email not detected: %+v", ents)
	}
	if counts[entity.TypePhone] != 0 {
		t.Errorf("disabled phone detector fired: %+v", ents)
	}
}

func TestUnknownDetectorName(t *testing.T) {
	if _, err := New(config.DetectionConfig{Detectors: []string{"palmprint"}}, logger.NewNop()); err == nil {
		t.Error("expected error for unknown detector name")
	}
}

func TestDetectEntityIDsAreSequential(t *testing.T) {
	d := newAllDetector(t)

	ents := d.Detect("a@b.com then c@d.org")
	if len(ents) != 2 {
		t.Fatalf("got %d entities: %+v", len(ents), ents)
	}
	if ents[0].ID == ents[1].ID || ents[0].ID == "" {
		t.Errorf("ids not distinct: %q, %q", ents[0].ID, ents[1].ID)
	}
	if ents[0].Start > ents[1].Start {
		t.Error("entities not sorted by start")
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	d := newAllDetector(t)
	text := "Jane Doe, jane.doe@example.com, (555) 123-4567\n" +
		"SSN: 123-45-6789, card 4111 1111 1111 1111\n" +
		"Born January 2, 1990, see https://example.com/cv from 192.168.1.10\n"

	first := d.Detect(text)
	second := d.Detect(text)
	if len(first) == 0 {
		t.Fatal("no entities detected")
	}
	if len(second) != len(first) {
		t.Fatalf("second pass found %d entities, first found %d", len(second), len(first))
	}
	// Identical input yields identical spans; IDs are per-run counters and
	// carry no meaning across runs.
	for i := range first {
		a, b := first[i], second[i]
		if a.Type != b.Type || a.Value != b.Value || a.Start != b.Start || a.End != b.End ||
			a.Confidence != b.Confidence || a.Redact != b.Redact {
			t.Errorf("entity %d differs between runs:\nfirst:  %+v\nsecond: %+v", i, a, b)
		}
	}
}
