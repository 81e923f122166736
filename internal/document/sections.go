package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// "Section 3 – Detailed Chronological Timeline of Events"
	explicitSectionRegex = regexp.MustCompile(`^Section\s+(\d+)\s*[–-]\s*(.*)$`)
	// "1. Overview", "2) Parties", "Section 4: Payments"
	numberedHeaderRegex = regexp.MustCompile(`(?i)^(\d+[.)]\s*|Section\s+\d+:)`)
)

const maxHeaderLen = 80

// ParseSections splits text into sections.
//
// Explicit "Section N – title" headings keep N as their number. Other
// headers (short all-caps or title-case lines after a blank line, and
// numbered lines) are numbered sequentially; a header on the very first line
// becomes section_0. Content before the first header forms a "Preamble"
// section_0. Within a section, runs of blank lines collapse to one blank
// line so paragraph structure survives. Text without any header yields a
// single section_1 "Main Content".
func ParseSections(text string) []Section {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		sections []Section
		current  *Section
		body     []string
		seq      int
		pending  bool
		headed   bool
	)

	flush := func() {
		if current == nil {
			return
		}
		if len(body) > 0 {
			current.Text = strings.Join(body, "\n")
			sections = append(sections, *current)
		}
		current, body, pending = nil, nil, false
	}
	open := func(id string, number int, header string, line int) {
		flush()
		current = &Section{ID: id, Number: number, Header: header, StartLine: line}
		headed = true
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			pending = len(body) > 0
			continue
		}

		if m := explicitSectionRegex.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			open(fmt.Sprintf("section_%d", n), n, line, i)
			continue
		}

		afterBlank := i == 0 || strings.TrimSpace(lines[i-1]) == ""
		isHeader := len(line) < maxHeaderLen && (isUpper(line) || isTitle(line)) && afterBlank
		if isHeader || numberedHeaderRegex.MatchString(line) {
			if i == 0 && seq == 0 {
				open("section_0", 0, line, i)
			} else {
				seq++
				open(fmt.Sprintf("section_%d", seq), seq, line, i)
			}
			continue
		}

		if current == nil {
			current = &Section{ID: "section_0", Number: 0, Header: "Preamble", StartLine: i}
		}
		if pending {
			body = append(body, "")
			pending = false
		}
		body = append(body, line)
	}
	if !headed {
		return []Section{{ID: "section_1", Number: 1, Header: "Main Content", Text: strings.Join(body, "\n")}}
	}
	flush()
	return sections
}

// isUpper reports whether s has at least one cased rune and no lower-case
// runes.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isTitle reports whether every word starts upper-case and continues
// lower-case, where words are runs of cased runes.
func isTitle(s string) bool {
	cased, prevCased := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased, cased = true, true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased, cased = true, true
		default:
			prevCased = false
		}
	}
	return cased
}
