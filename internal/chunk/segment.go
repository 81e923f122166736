package chunk

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/Aman-CERP/claimrag/internal/tokenize"
)

// Options configures a Segmenter.
type Options struct {
	Budgets      map[Level]Budget
	OverlapRatio float64
}

// DefaultOptions returns the standard budgets and 20% overlap.
func DefaultOptions() Options {
	return Options{
		Budgets: map[Level]Budget{
			Small:  SmallBudget,
			Medium: MediumBudget,
			Large:  LargeBudget,
		},
		OverlapRatio: DefaultOverlapRatio,
	}
}

// Segmenter turns one section's text into ordered, overlapping chunks for
// a level. It keeps no per-call state and is safe for concurrent use when
// its tokenizer is.
type Segmenter struct {
	tok  tokenize.Tokenizer
	opts Options
}

// NewSegmenter validates opts and returns a Segmenter. Missing budgets fall
// back to the defaults.
func NewSegmenter(tok tokenize.Tokenizer, opts Options) (*Segmenter, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	budgets := DefaultOptions().Budgets
	maps.Copy(budgets, opts.Budgets)
	for level, b := range budgets {
		if b.Min <= 0 || b.Max < b.Min {
			return nil, fmt.Errorf("invalid %s budget %d..%d", level, b.Min, b.Max)
		}
	}
	if opts.OverlapRatio < 0 || opts.OverlapRatio >= 1 {
		return nil, fmt.Errorf("overlap ratio must be in [0, 1), got %g", opts.OverlapRatio)
	}
	opts.Budgets = budgets
	return &Segmenter{tok: tok, opts: opts}, nil
}

// Budget returns the budget used for level.
func (s *Segmenter) Budget(level Level) Budget {
	return s.opts.Budgets[level]
}

// Tokenizer returns the tokenizer used for budget arithmetic.
func (s *Segmenter) Tokenizer() tokenize.Tokenizer {
	return s.tok
}

// Segment splits text at level's boundaries and greedily packs the pieces
// into chunks. Each chunk gets a copy of metadata; identity fields are left
// for the Assembler. Empty text yields no chunks.
func (s *Segmenter) Segment(text string, level Level, metadata map[string]any) (chunks []*Chunk, err error) {
	if !level.Valid() {
		return nil, fmt.Errorf("invalid chunk level %q", level)
	}
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("%s segmentation panicked: %v", level, r)
		}
	}()

	text = NormalizeText(text)
	if text == "" {
		return nil, nil
	}

	acc := s.newAccumulator(level)
	switch level {
	case Small:
		for _, para := range splitParagraphs(text) {
			for _, sentence := range splitSentences(para) {
				acc.push(sentence)
				acc.closeAtTarget()
			}
		}
	case Medium:
		for _, para := range splitParagraphs(text) {
			if acc.count(para) > acc.budget.Max {
				for _, sentence := range splitSentences(para) {
					acc.push(sentence)
				}
			} else {
				acc.push(para)
			}
			acc.closeAtTarget()
		}
	case Large:
		pieces := splitPseudoSections(text)
		if len(pieces) == 1 {
			pieces = splitParagraphs(text)
		}
		for _, piece := range pieces {
			if acc.count(piece) > acc.budget.Max {
				for _, para := range splitParagraphs(piece) {
					acc.push(para)
				}
			} else {
				acc.push(piece)
			}
			acc.closeAtTarget()
		}
	}
	acc.finish()

	chunks = make([]*Chunk, len(acc.out))
	for i, t := range acc.out {
		meta := maps.Clone(metadata)
		if meta == nil {
			meta = make(map[string]any)
		}
		chunks[i] = &Chunk{
			Text:     t,
			Tokens:   s.tok.Count(t),
			Index:    i,
			Level:    level,
			Metadata: meta,
		}
	}
	return chunks, nil
}

// OverlapTail returns the decoded last ceil(ratio*n) tokens of text, where n
// is its token count.
func (s *Segmenter) OverlapTail(text string) string {
	ids := s.tok.Encode(text)
	k := overlapTokens(len(ids), s.opts.OverlapRatio)
	if k == 0 {
		return ""
	}
	return strings.TrimSpace(s.tok.Decode(ids[len(ids)-k:]))
}

func overlapTokens(n int, ratio float64) int {
	if n == 0 || ratio <= 0 {
		return 0
	}
	// the epsilon keeps 15*0.2 from rounding up to 4
	k := int(math.Ceil(float64(n)*ratio - 1e-9))
	return min(k, n)
}

// accumulator is the greedy packing buffer shared by all levels.
type accumulator struct {
	seg    *Segmenter
	budget Budget
	sep    string

	parts  []string
	tokens int
	// fresh is set once the buffer holds more than the overlap seed.
	fresh bool
	out   []string
}

func (s *Segmenter) newAccumulator(level Level) *accumulator {
	sep := "\n\n"
	if level == Small {
		sep = " "
	}
	return &accumulator{seg: s, budget: s.opts.Budgets[level], sep: sep}
}

func (a *accumulator) count(text string) int {
	return a.seg.tok.Count(text)
}

// push appends a segment, first closing the buffer if the segment would
// push it past the max budget. A buffer that is empty or holds only the
// overlap seed is never closed; the segment joins it even when that
// passes max.
func (a *accumulator) push(segment string) {
	n := a.count(segment)
	if a.tokens+n > a.budget.Max && a.fresh {
		a.close()
	}
	a.parts = append(a.parts, segment)
	a.tokens += n
	a.fresh = true
}

func (a *accumulator) closeAtTarget() {
	if a.tokens >= a.budget.Target() {
		a.close()
	}
}

// close emits the buffer and seeds the next one with its overlap tail.
func (a *accumulator) close() {
	text := strings.Join(a.parts, a.sep)
	a.out = append(a.out, text)

	a.parts, a.tokens, a.fresh = a.parts[:0], 0, false
	if tail := a.seg.OverlapTail(text); tail != "" {
		a.parts = append(a.parts, tail)
		a.tokens = a.count(tail)
	}
}

// finish emits any non-empty leftover, including a lone overlap seed.
func (a *accumulator) finish() {
	if len(a.parts) > 0 {
		a.out = append(a.out, strings.Join(a.parts, a.sep))
	}
}
