package structure

import (
	"strings"
	"testing"
)

func TestAnalyzeHeaderEndsAtFirstBlank(t *testing.T) {
	text := "John Smith\nEngineer\n\nExperience follows here\nmore body\nand more\nstill more\npadding\npadding\npadding"
	doc := Analyze(text)

	// First blank is line 2, inside the 10% cap of a 10-line document? The cap
	// is 1 here, so the cap wins.
	if doc.HeaderEndLine != 1 {
		t.Errorf("header end = %d, want 1", doc.HeaderEndLine)
	}
	if doc.HeaderText != "John Smith" {
		t.Errorf("header text = %q", doc.HeaderText)
	}
}

func TestAnalyzeBlankLineInsideCap(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = "body line"
	}
	lines[0] = "John Smith"
	lines[1] = "Engineer"
	lines[2] = ""
	doc := Analyze(strings.Join(lines, "\n"))

	// 40 lines cap at 4; the blank at line 2 comes first.
	if doc.HeaderEndLine != 2 {
		t.Errorf("header end = %d, want 2", doc.HeaderEndLine)
	}
	if !doc.InHeader(0) {
		t.Error("position 0 should be in the header")
	}
	if doc.InHeader(len(doc.HeaderText) + 10) {
		t.Error("body position reported as header")
	}
}

func TestAnalyzePersonalSections(t *testing.T) {
	text := strings.Join([]string{
		"resume body",
		"resume body",
		"Contact Information",
		"jane@example.com",
		"(555) 123-4567",
		"resume body",
		"resume body",
		"resume body",
		"resume body",
		"Experience",
		"worked places",
	}, "\n")
	doc := Analyze(text)

	if len(doc.PersonalSections) == 0 {
		t.Fatal("no personal sections found")
	}
	s := doc.PersonalSections[0]
	if s.StartLine != 2 {
		t.Errorf("section start = %d, want 2", s.StartLine)
	}
	if s.EndLine != 7 {
		t.Errorf("section end = %d, want start+5", s.EndLine)
	}

	// A position on the email line is inside the section.
	emailPos := strings.Index(text, "jane@example.com")
	if !doc.InPersonalSection(emailPos) {
		t.Error("email line should be in a personal section")
	}
	lastPos := strings.Index(text, "worked places")
	if doc.InPersonalSection(lastPos) {
		t.Error("trailing body line flagged as personal")
	}
}

func TestAnalyzeSectionClampedToDocument(t *testing.T) {
	doc := Analyze("body\nContact\nlast line")
	if len(doc.PersonalSections) != 1 {
		t.Fatalf("sections = %+v", doc.PersonalSections)
	}
	if doc.PersonalSections[0].EndLine != 2 {
		t.Errorf("section end = %d, want clamp at last line", doc.PersonalSections[0].EndLine)
	}
}

func TestLineAt(t *testing.T) {
	doc := Analyze("ab\ncd\nef")
	tests := []struct {
		pos, line int
	}{
		{0, 0}, {2, 0}, {3, 1}, {5, 1}, {6, 2}, {7, 2},
	}
	for _, tt := range tests {
		if got := doc.LineAt(tt.pos); got != tt.line {
			t.Errorf("LineAt(%d) = %d, want %d", tt.pos, got, tt.line)
		}
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	doc := Analyze("")
	if doc.TotalLines != 1 {
		t.Errorf("total lines = %d", doc.TotalLines)
	}
	if len(doc.PersonalSections) != 0 {
		t.Errorf("sections = %+v", doc.PersonalSections)
	}
}
