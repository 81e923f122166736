package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// LoadFile reads a .txt, .md or .pdf file into a Document. Markdown
// headings become section boundaries; plain text and PDF text go through
// ParseSections.
func LoadFile(path, id, claimID string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound, "document not found: "+path, err)
	}

	var (
		doc *Document
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", "":
		doc, err = loadText(path, id, claimID)
	case ".md", ".markdown":
		doc, err = loadMarkdown(path, id, claimID)
	case ".pdf":
		doc, err = loadPDF(path, id, claimID)
	default:
		return nil, ragerrors.New(ragerrors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported document format %q", filepath.Ext(path)), nil).
			WithSuggestion("convert the document to .txt, .md or .pdf")
	}
	if err != nil {
		return nil, err
	}

	doc.Path = path
	doc.Metadata.FileName = filepath.Base(path)
	if err := doc.Validate(); err != nil {
		return nil, ragerrors.ValidationError("invalid document structure in "+path, err)
	}
	return doc, nil
}

func loadText(path, id, claimID string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound, "failed to read "+path, err)
	}
	return New(id, claimID, string(data)), nil
}

func loadPDF(path, id, claimID string) (*Document, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeUnsupportedFormat, "failed to open PDF "+path, err)
	}
	defer f.Close()

	content, pages, err := collectPages(path, reader.NumPage(), func(i int) (string, bool, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", false, nil
		}
		t, err := page.GetPlainText(nil)
		return t, true, err
	})
	if err != nil {
		return nil, err
	}

	doc := New(id, claimID, content)
	doc.Metadata.Pages = pages
	return doc, nil
}

// collectPages joins the text of pages 1..n. A page whose text cannot be
// extracted is logged and skipped; if no page yields text and at least one
// failed, the first failure is returned.
func collectPages(path string, n int, text func(page int) (string, bool, error)) (string, int, error) {
	var (
		buf      strings.Builder
		pages    int
		firstErr error
	)
	for i := 1; i <= n; i++ {
		content, ok, err := text(i)
		if err != nil {
			slog.Warn("pdf_page_skipped",
				slog.String("path", path),
				slog.Int("page", i),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = ragerrors.New(ragerrors.ErrCodeUnsupportedFormat,
					fmt.Sprintf("failed to extract text from page %d of %s", i, path), err)
			}
			continue
		}
		if !ok {
			continue
		}
		buf.WriteString(content)
		buf.WriteString("\n")
		pages++
	}
	if pages == 0 && firstErr != nil {
		return "", 0, firstErr
	}
	return buf.String(), pages, nil
}

func loadMarkdown(path, id, claimID string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound, "failed to read "+path, err)
	}
	return ParseMarkdown(id, claimID, src), nil
}

// ParseMarkdown builds a document whose sections follow the Markdown
// headings. A "Section N – Title" heading keeps its own number; other
// headings are numbered in order. Blocks before the first heading form
// section_0.
func ParseMarkdown(id, claimID string, src []byte) *Document {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		sections []Section
		current  *Section
		blocks   []string
		plain    []string
		seq      int
	)
	flush := func() {
		if current != nil && len(blocks) > 0 {
			current.Text = strings.Join(blocks, "\n\n")
			sections = append(sections, *current)
		}
		blocks = nil
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			header := blockText(h, src)
			number := 0
			if m := explicitSectionRegex.FindStringSubmatch(header); m != nil {
				number, _ = strconv.Atoi(m[1])
			} else {
				seq++
				number = seq
			}
			current = &Section{
				ID:        fmt.Sprintf("section_%d", number),
				Number:    number,
				Header:    header,
				StartLine: lineOf(h, src),
			}
			plain = append(plain, header)
			continue
		}

		t := blockText(n, src)
		if t == "" {
			continue
		}
		if current == nil {
			current = &Section{ID: "section_0", Number: 0, Header: "Preamble"}
		}
		blocks = append(blocks, t)
		plain = append(plain, t)
	}
	flush()

	body := strings.Join(plain, "\n\n")
	meta := ExtractMetadata(body)
	if claimID == "" {
		claimID = meta.ClaimID
	}
	if len(sections) == 0 {
		sections = []Section{{ID: "section_1", Number: 1, Header: "Main Content", Text: body}}
	}

	return &Document{ID: id, ClaimID: claimID, Text: body, Sections: sections, Metadata: meta}
}

// blockText returns the source text of a block and its descendants, one
// line per source line.
func blockText(n ast.Node, src []byte) string {
	var lines []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		segs := c.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
				lines = append(lines, line)
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(lines, "\n")
}

func lineOf(n ast.Node, src []byte) int {
	if n.Lines().Len() == 0 {
		return 0
	}
	return bytes.Count(src[:n.Lines().At(0).Start], []byte("\n"))
}
