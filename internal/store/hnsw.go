package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig tunes the in-memory graph.
type HNSWConfig struct {
	// M is the max connections per layer.
	M int
	// EfSearch is the query-time search width.
	EfSearch int
	// ExactScanThreshold is the largest filtered candidate set that is
	// scanned exhaustively instead of through the graph.
	ExactScanThreshold int
	// FilterWidening multiplies N for filtered graph searches before
	// post-filtering.
	FilterWidening int
}

func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:                  16,
		EfSearch:           64,
		ExactScanThreshold: 2048,
		FilterWidening:     8,
	}
}

// HNSWCollection is a Collection backed by a coder/hnsw graph. Records live
// in memory. When opened over a SQLiteRecordStore every Add and Reset is
// written through, and the graph is rebuilt from the store on open.
type HNSWCollection struct {
	mu     sync.RWMutex
	name   string
	cfg    HNSWConfig
	dims   int
	graph  *hnsw.Graph[uint64]
	closed bool

	records map[string]*Record
	keys    map[string]uint64 // record id -> graph key
	ids     map[uint64]string // graph key -> record id
	nextKey uint64

	persist *SQLiteRecordStore
}

var _ Collection = (*HNSWCollection)(nil)

// NewHNSWCollection returns an empty in-memory collection.
func NewHNSWCollection(name string, cfg HNSWConfig) *HNSWCollection {
	def := DefaultHNSWConfig()
	if cfg.M <= 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	if cfg.ExactScanThreshold <= 0 {
		cfg.ExactScanThreshold = def.ExactScanThreshold
	}
	if cfg.FilterWidening <= 0 {
		cfg.FilterWidening = def.FilterWidening
	}
	c := &HNSWCollection{name: name, cfg: cfg}
	c.resetLocked()
	return c
}

// OpenHNSWCollection loads collection name from rs and indexes it.
func OpenHNSWCollection(ctx context.Context, name string, rs *SQLiteRecordStore, cfg HNSWConfig) (*HNSWCollection, error) {
	c := NewHNSWCollection(name, cfg)
	records, err := rs.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.addLocked(records); err != nil {
		return nil, fmt.Errorf("failed to index stored records of %s: %w", name, err)
	}
	c.persist = rs

	slog.Debug("collection_loaded",
		slog.String("collection", name),
		slog.Int("records", len(records)),
		slog.Int("dimensions", c.dims))
	return c, nil
}

func (c *HNSWCollection) resetLocked() {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = c.cfg.M
	g.EfSearch = c.cfg.EfSearch
	g.Ml = 0.25

	c.graph = g
	c.dims = 0
	c.records = make(map[string]*Record)
	c.keys = make(map[string]uint64)
	c.ids = make(map[uint64]string)
	c.nextKey = 0
}

func (c *HNSWCollection) Name() string { return c.name }

// Dimensions is the vector length, or 0 while the collection is empty.
func (c *HNSWCollection) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

func (c *HNSWCollection) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("collection %s is closed", c.name)
	}

	dims := c.dims
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record without id in collection %s", c.name)
		}
		if dims == 0 {
			dims = len(r.Embedding)
		}
		if len(r.Embedding) != dims || dims == 0 {
			return DimensionMismatchError(c.name, dims, len(r.Embedding))
		}
	}

	if c.persist != nil {
		if err := c.persist.Upsert(ctx, c.name, records); err != nil {
			return err
		}
	}
	return c.addLocked(records)
}

// addLocked indexes records whose dimensions were already checked.
// Replaced records are orphaned in the graph rather than deleted; orphan
// keys have no id mapping and are skipped by queries.
func (c *HNSWCollection) addLocked(records []Record) error {
	for _, r := range records {
		if c.dims == 0 {
			c.dims = len(r.Embedding)
		} else if len(r.Embedding) != c.dims {
			return DimensionMismatchError(c.name, c.dims, len(r.Embedding))
		}

		if old, ok := c.keys[r.ID]; ok {
			delete(c.ids, old)
			delete(c.keys, r.ID)
		}

		vec := normalized(r.Embedding)
		stored := r
		stored.Embedding = vec
		stored.Metadata = cloneMeta(r.Metadata)
		c.records[r.ID] = &stored

		key := c.nextKey
		c.nextKey++
		c.keys[r.ID] = key
		c.ids[key] = r.ID

		// Zero vectors have no direction; they are reachable by exact scan only.
		if !isZero(vec) {
			c.graph.Add(hnsw.MakeNode(key, vec))
		}
	}
	return nil
}

// Query returns up to req.N nearest records satisfying req.Where.
func (c *HNSWCollection) Query(_ context.Context, req QueryRequest) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("collection %s is closed", c.name)
	}
	if req.N <= 0 || len(c.records) == 0 {
		return []Match{}, nil
	}
	if len(req.Embedding) != c.dims {
		return nil, DimensionMismatchError(c.name, c.dims, len(req.Embedding))
	}
	q := normalized(req.Embedding)

	if len(req.Where) == 0 {
		matches := c.graphSearch(q, req.N, nil)
		if len(matches) < min(req.N, len(c.records)) {
			return c.exactScan(q, req.N, nil), nil
		}
		return matches[:min(len(matches), req.N)], nil
	}

	candidates := 0
	for _, r := range c.records {
		if req.Where.Matches(r.Metadata) {
			candidates++
		}
	}
	if candidates == 0 {
		return []Match{}, nil
	}
	if candidates <= c.cfg.ExactScanThreshold {
		return c.exactScan(q, req.N, req.Where), nil
	}

	matches := c.graphSearch(q, req.N*c.cfg.FilterWidening, req.Where)
	if len(matches) < min(req.N, candidates) {
		return c.exactScan(q, req.N, req.Where), nil
	}
	return matches[:min(len(matches), req.N)], nil
}

// graphSearch runs an approximate search for k live nodes, drops hits
// failing where and returns the rest nearest first.
func (c *HNSWCollection) graphSearch(q []float32, k int, where Where) []Match {
	if c.graph.Len() == 0 {
		return nil
	}
	orphans := c.graph.Len() - len(c.keys)
	k = min(k+max(orphans, 0), c.graph.Len())

	var out []Match
	for _, node := range c.graph.Search(q, k) {
		id, ok := c.ids[node.Key]
		if !ok {
			continue
		}
		r := c.records[id]
		if where != nil && !where.Matches(r.Metadata) {
			continue
		}
		out = append(out, c.match(r, q))
	}
	sortMatches(out)
	return out
}

// exactScan scores every record satisfying where.
func (c *HNSWCollection) exactScan(q []float32, n int, where Where) []Match {
	out := make([]Match, 0, min(n, len(c.records)))
	for _, r := range c.records {
		if where != nil && !where.Matches(r.Metadata) {
			continue
		}
		out = append(out, c.match(r, q))
	}
	sortMatches(out)
	return out[:min(len(out), n)]
}

func (c *HNSWCollection) match(r *Record, q []float32) Match {
	return Match{
		ID:       r.ID,
		Document: r.Document,
		Metadata: cloneMeta(r.Metadata),
		Distance: cosineDistance(q, r.Embedding),
	}
}

// Get returns matching records in insertion order.
func (c *HNSWCollection) Get(_ context.Context, where Where) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("collection %s is closed", c.name)
	}

	type keyed struct {
		key uint64
		rec Record
	}
	var hits []keyed
	for id, r := range c.records {
		if where.Matches(r.Metadata) {
			rec := *r
			rec.Metadata = cloneMeta(r.Metadata)
			hits = append(hits, keyed{c.keys[id], rec})
		}
	}
	slices.SortFunc(hits, func(a, b keyed) int { return cmp.Compare(a.key, b.key) })

	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func (c *HNSWCollection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Stats reports live records and graph nodes, including orphans left by
// replaced records. A closed collection reports zero for both.
func (c *HNSWCollection) Stats() (records, graphNodes int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.graph == nil {
		return 0, 0
	}
	return len(c.records), c.graph.Len()
}

// Reset drops every record, including the persisted copy.
func (c *HNSWCollection) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persist != nil {
		if err := c.persist.DeleteCollection(ctx, c.name); err != nil {
			return err
		}
	}
	c.resetLocked()
	return nil
}

// Close releases the graph. The record store is owned by the caller.
func (c *HNSWCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.graph = nil
	c.records = nil
	return nil
}

func sortMatches(m []Match) {
	slices.SortStableFunc(m, func(a, b Match) int {
		if a.Distance != b.Distance {
			return cmp.Compare(a.Distance, b.Distance)
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// cosineDistance of unit vectors; a zero vector is at distance 1 from
// everything.
func cosineDistance(a, b []float32) float32 {
	if isZero(a) || isZero(b) {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(1 - dot)
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
