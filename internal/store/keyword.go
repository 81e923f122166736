package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// KeywordDoc is what the keyword index stores for one chunk.
type KeywordDoc struct {
	ID        string
	Text      string
	Level     string
	SectionID string
}

// KeywordHit is a keyword search result.
type KeywordHit struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// keywordFields lists the metadata keys the index can filter on.
var keywordFields = []string{"level", "section_id"}

// bleveDoc is the indexed document body.
type bleveDoc struct {
	Text      string `json:"text"`
	Level     string `json:"level"`
	SectionID string `json:"section_id"`
}

// KeywordIndex is a bleve full-text index over chunk text, used for exact
// term lookups (claim numbers, names, times) that embeddings blur.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// OpenKeywordIndex opens or creates the index at path. An empty path
// creates an in-memory index. A corrupt on-disk index is cleared and
// recreated empty.
func OpenKeywordIndex(path string) (*KeywordIndex, error) {
	m, err := keywordMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		idx, err = bleve.Open(path)
		switch {
		case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
			idx, err = bleve.New(path, m)
		case err != nil:
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot be removed: %w", path, rmErr)
			}
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return &KeywordIndex{index: idx, path: path}, nil
}

// keywordMapping analyzes text with the English analyzer and keeps the
// filter fields as exact keywords.
func keywordMapping() (*mapping.IndexMappingImpl, error) {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.IncludeTermVectors = true

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	for _, f := range keywordFields {
		doc.AddFieldMappingsAt(f, exact)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m, nil
}

// Index adds or replaces docs in one batch.
func (k *KeywordIndex) Index(_ context.Context, docs []KeywordDoc) error {
	if len(docs) == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := k.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, bleveDoc{Text: d.Text, Level: d.Level, SectionID: d.SectionID}); err != nil {
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute keyword batch: %w", err)
	}
	return nil
}

// Search matches queryStr against chunk text. Clauses of where on level
// and section_id are applied as exact filters; other keys are ignored.
func (k *KeywordIndex) Search(ctx context.Context, queryStr string, where Where, limit int) ([]KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []KeywordHit{}, nil
	}

	match := bleve.NewMatchQuery(queryStr)
	match.SetField("text")
	clauses := []query.Query{match}
	for _, f := range keywordFields {
		if v, ok := where[f]; ok {
			tq := bleve.NewTermQuery(fmt.Sprint(v))
			tq.SetField(f)
			clauses = append(clauses, tq)
		}
	}

	var q query.Query = match
	if len(clauses) > 1 {
		q = bleve.NewConjunctionQuery(clauses...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true

	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, KeywordHit{ID: h.ID, Score: h.Score, MatchedTerms: matchedTerms(h)})
	}
	return hits, nil
}

// Delete removes docs by id.
func (k *KeywordIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}
	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return k.index.Batch(batch)
}

// Reset removes every document.
func (k *KeywordIndex) Reset(ctx context.Context) error {
	ids, err := k.AllIDs(ctx)
	if err != nil {
		return err
	}
	return k.Delete(ctx, ids)
}

// AllIDs lists every indexed document id.
func (k *KeywordIndex) AllIDs(ctx context.Context) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}

	n, err := k.index.DocCount()
	if err != nil || n == 0 {
		return nil, err
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(n)
	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword documents: %w", err)
	}
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// Count returns the number of indexed documents.
func (k *KeywordIndex) Count() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return 0
	}
	n, _ := k.index.DocCount()
	return int(n)
}

func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}

func matchedTerms(hit *search.DocumentMatch) []string {
	var terms []string
	for term := range hit.Locations["text"] {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms
}
