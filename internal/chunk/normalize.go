package chunk

import (
	"regexp"
	"strings"
)

// NormalizeText collapses horizontal whitespace runs to one space and runs
// of blank lines to a single blank line, then trims the result. Line and
// paragraph breaks survive because the medium and large levels split on
// them.
func NormalizeText(text string) string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	var (
		b     strings.Builder
		blank bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}

var sentenceEndRegex = regexp.MustCompile(`[.!?]\s+`)

// splitSentences splits at terminal punctuation followed by whitespace,
// keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var out []string
	prev := 0
	for _, loc := range sentenceEndRegex.FindAllStringIndex(text, -1) {
		out = appendTrimmed(out, text[prev:loc[1]])
		prev = loc[1]
	}
	return appendTrimmed(out, text[prev:])
}

// splitParagraphs splits on blank lines.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		out = appendTrimmed(out, p)
	}
	return out
}

// maxPseudoHeaderLen bounds the capitalized line that opens a pseudo-section.
const maxPseudoHeaderLen = 81

// splitPseudoSections splits before a blank-line run that is followed by a
// short line starting with an upper-case ASCII letter, e.g.
//
//	...end of paragraph.
//
//	Police Report
//	The officer noted...
func splitPseudoSections(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); {
		if text[i] != '\n' || i+1 >= len(text) || text[i+1] != '\n' {
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == '\n' {
			j++
		}
		if opensPseudoSection(text[j:]) {
			out = appendTrimmed(out, text[start:i])
			start = j
		}
		i = j
	}
	return appendTrimmed(out, text[start:])
}

func opensPseudoSection(rest string) bool {
	if rest == "" || rest[0] < 'A' || rest[0] > 'Z' {
		return false
	}
	nl := strings.IndexByte(rest, '\n')
	return nl > 0 && nl <= maxPseudoHeaderLen
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}
