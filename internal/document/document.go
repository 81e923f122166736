// Package document loads claim documents and splits them into the ordered,
// headed sections that hierarchical chunking runs over.
package document

import "fmt"

// Section is one headed region of a document. Sections are immutable once
// parsed and their IDs are unique within a document.
type Section struct {
	ID     string `json:"section_id"`
	Number int    `json:"section_number"`
	Header string `json:"header"`
	Text   string `json:"text"`
	// StartLine is the 0-based line of the header in the source text.
	StartLine int `json:"start_line"`
}

// Document is a loaded source document.
type Document struct {
	ID       string    `json:"document_id"`
	ClaimID  string    `json:"claim_id,omitempty"`
	Path     string    `json:"path,omitempty"`
	Text     string    `json:"-"`
	Sections []Section `json:"sections"`
	Metadata Metadata  `json:"metadata"`
}

// New builds a document from raw text, parsing sections and metadata.
// The claim ID found in the text is used when claimID is empty.
func New(id, claimID, text string) *Document {
	meta := ExtractMetadata(text)
	if claimID == "" {
		claimID = meta.ClaimID
	}
	return &Document{
		ID:       id,
		ClaimID:  claimID,
		Text:     text,
		Sections: ParseSections(text),
		Metadata: meta,
	}
}

// Section returns the section with the given id.
func (d *Document) Section(id string) (Section, bool) {
	for _, s := range d.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Validate reports duplicate section IDs.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Sections))
	for _, s := range d.Sections {
		if s.ID == "" {
			return fmt.Errorf("section at line %d has no id", s.StartLine)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
