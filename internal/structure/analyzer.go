package structure

import (
	"regexp"
	"strings"
)

// Section marks a line range likely to contain the document owner's own
// details. Ranges are inclusive and may overlap.
type Section struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Document is the derived structural view of one text. It is ephemeral and
// recomputed on every detection pass.
type Document struct {
	HeaderText       string    `json:"header_text"`
	BodyText         string    `json:"body_text"`
	HeaderEndLine    int       `json:"header_end_line"`
	PersonalSections []Section `json:"personal_sections"`
	TotalLines       int       `json:"total_lines"`

	lineStarts []int
}

// personalSectionPattern matches heading keywords anchored at line start.
var personalSectionPattern = regexp.MustCompile(`(?i)^(contact|about|profile|personal|summary|objective|email|phone|address|location)`)

// sectionTrailingLines is how many lines after a flagged heading are treated
// as part of the personal section (a contact block under its heading).
const sectionTrailingLines = 5

// Analyze derives the structural view of text: a header/body split and the
// set of personal sections. Total over any input; empty text yields an empty
// document.
func Analyze(text string) *Document {
	lines := strings.Split(text, "\n")

	// Header ends at the first blank line after line 0, capped at 10% of the
	// document.
	firstBlank := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			firstBlank = i
			break
		}
	}

	headerEnd := (len(lines) + 9) / 10
	if firstBlank >= 0 && firstBlank < headerEnd {
		headerEnd = firstBlank
	}
	if headerEnd > len(lines) {
		headerEnd = len(lines)
	}

	doc := &Document{
		HeaderText:    strings.Join(lines[:headerEnd], "\n"),
		BodyText:      strings.Join(lines[headerEnd:], "\n"),
		HeaderEndLine: headerEnd,
		TotalLines:    len(lines),
		lineStarts:    make([]int, len(lines)),
	}

	pos := 0
	for i, line := range lines {
		doc.lineStarts[i] = pos
		pos += len(line) + 1
	}

	for i, line := range lines {
		if personalSectionPattern.MatchString(strings.TrimSpace(line)) {
			end := i + sectionTrailingLines
			if end > len(lines)-1 {
				end = len(lines) - 1
			}
			doc.PersonalSections = append(doc.PersonalSections, Section{StartLine: i, EndLine: end})
		}
	}

	return doc
}

// LineAt returns the zero-based line containing the byte position.
func (d *Document) LineAt(pos int) int {
	line := 0
	for i, start := range d.lineStarts {
		if pos < start {
			break
		}
		line = i
	}
	return line
}

// InHeader reports whether a byte position falls inside the header region.
func (d *Document) InHeader(pos int) bool {
	return pos < len(d.HeaderText)
}

// InPersonalSection reports whether a byte position falls on a line flagged
// as part of any personal section.
func (d *Document) InPersonalSection(pos int) bool {
	line := d.LineAt(pos)
	for _, s := range d.PersonalSections {
		if line >= s.StartLine && line <= s.EndLine {
			return true
		}
	}
	return false
}
