package document

import (
	"regexp"
	"strings"
	"time"
)

// Metadata is what ExtractMetadata finds in a document's text.
type Metadata struct {
	ClaimID        string    `json:"claim_id,omitempty"`
	Timestamps     []string  `json:"timestamps,omitempty"`
	FirstTimestamp string    `json:"first_timestamp,omitempty"`
	LastTimestamp  string    `json:"last_timestamp,omitempty"`
	Entities       *Entities `json:"entities,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	Pages          int       `json:"pages,omitempty"`
}

// Entities are pattern-matched values found in the text.
type Entities struct {
	Money  []string `json:"money,omitempty"`
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

func (e *Entities) empty() bool {
	return len(e.Money) == 0 && len(e.Emails) == 0 && len(e.Phones) == 0
}

var (
	claimIDRegexes = []*regexp.Regexp{
		regexp.MustCompile(`[Cc]laim\s*[#:]?\s*(\d+)`),
		regexp.MustCompile(`[Cc]ase\s*[#:]?\s*(\d+)`),
		regexp.MustCompile(`[Ii][Dd]:\s*(\d+)`),
	}

	moneyRegex = regexp.MustCompile(`\$\d{1,3}(?:,\d{3})*(?:\.\d{2})?|\$\d+(?:\.\d{2})?`)
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRegex = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// timestampLayouts pairs a pattern with the layouts that parse its match,
// most specific first.
var timestampLayouts = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`),
		[]string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"},
	},
	{
		regexp.MustCompile(`\b\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4},?\s+(?:at\s+)?\d{1,2}:\d{2}(?::\d{2})?`),
		[]string{"2 January 2006 15:04:05", "2 January 2006 15:04", "2 Jan 2006 15:04:05", "2 Jan 2006 15:04"},
	},
	{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		[]string{"2006-01-02"},
	},
	{
		regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
		[]string{"01/02/2006"},
	},
	{
		regexp.MustCompile(`\b\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4}\b`),
		[]string{"2 January 2006", "2 Jan 2006"},
	},
}

var dateNoise = strings.NewReplacer(",", "", " at ", " ")

// ParseTimestamp returns the first timestamp in line.
func ParseTimestamp(line string) (time.Time, bool) {
	for _, tl := range timestampLayouts {
		m := tl.re.FindString(line)
		if m == "" {
			continue
		}
		m = strings.Join(strings.Fields(dateNoise.Replace(m)), " ")
		for _, layout := range tl.layouts {
			if ts, err := time.Parse(layout, m); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// FirstTimestamp returns the first timestamp found in text in RFC 3339 form,
// or "".
func FirstTimestamp(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if ts, ok := ParseTimestamp(line); ok {
			return ts.Format(time.RFC3339)
		}
	}
	return ""
}

// ExtractEntities finds money amounts, emails and US-style phone numbers.
func ExtractEntities(text string) Entities {
	return Entities{
		Money:  moneyRegex.FindAllString(text, -1),
		Emails: emailRegex.FindAllString(text, -1),
		Phones: phoneRegex.FindAllString(text, -1),
	}
}

// ExtractClaimID returns the first claim, case or ID number in text.
func ExtractClaimID(text string) string {
	for _, re := range claimIDRegexes {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractMetadata scans text line by line for timestamps (one per line) and
// once for entities and the claim ID.
func ExtractMetadata(text string) Metadata {
	var meta Metadata

	for _, line := range strings.Split(text, "\n") {
		if ts, ok := ParseTimestamp(line); ok {
			meta.Timestamps = append(meta.Timestamps, ts.Format(time.RFC3339))
		}
	}
	if n := len(meta.Timestamps); n > 0 {
		meta.FirstTimestamp = meta.Timestamps[0]
		meta.LastTimestamp = meta.Timestamps[n-1]
	}

	if e := ExtractEntities(text); !e.empty() {
		meta.Entities = &e
	}
	meta.ClaimID = ExtractClaimID(text)
	return meta
}
