package matcher

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

const (
	// DefaultTolerance is the maximum cosine distance accepted as a match.
	DefaultTolerance = 0.6

	// Registries up to this size are scanned exhaustively, so the nearest
	// entry is always found. Larger ones go through the HNSW index, whose
	// top searchK candidates are re-ranked exactly.
	exactScanLimit = 2048
	searchK        = 16
	hnswM          = 16
)

// Entry is one reference embedding of a known identity.
type Entry struct {
	Identity  string
	Embedding []float32
}

// Result is the classification of one detected face.
type Result struct {
	Box        image.Rectangle
	Identity   string
	Known      bool
	Distance   float64
	Confidence float64
}

// Matcher compares face embeddings against the known-identity registry.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	tolerance float64
	entries   []Entry
	graph     *hnsw.Graph[int]
	mu        sync.Mutex // hnsw search is not documented as concurrency-safe
}

// NewMatcher builds a matcher over entries. Entry order is the tie-break order.
func NewMatcher(entries []Entry, tolerance float64) (*Matcher, error) {
	return newMatcher(entries, tolerance, exactScanLimit)
}

func newMatcher(entries []Entry, tolerance float64, scanLimit int) (*Matcher, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("tolerance must be positive, got %v", tolerance)
	}

	m := &Matcher{tolerance: tolerance}
	dim := 0
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(e.Embedding)
		} else if len(e.Embedding) != dim {
			return nil, fmt.Errorf("entry %d (%s): embedding dim %d, want %d", i, e.Identity, len(e.Embedding), dim)
		}
		emb := make([]float32, len(e.Embedding))
		copy(emb, e.Embedding)
		m.entries = append(m.entries, Entry{Identity: e.Identity, Embedding: emb})
	}

	if len(m.entries) > scanLimit {
		g := hnsw.NewGraph[int]()
		g.M = hnswM
		g.Ml = 1.0 / float64(hnswM)
		g.EfSearch = 4 * searchK
		g.Distance = hnsw.CosineDistance
		for i, e := range m.entries {
			g.Add(hnsw.MakeNode(i, e.Embedding))
		}
		m.graph = g
	}
	return m, nil
}

// Size returns the number of reference embeddings.
func (m *Matcher) Size() int { return len(m.entries) }

// Tolerance returns the configured match tolerance.
func (m *Matcher) Tolerance() float64 { return m.tolerance }

// Identities returns the distinct identity names in registry order.
func (m *Matcher) Identities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.entries {
		if !seen[e.Identity] {
			seen[e.Identity] = true
			out = append(out, e.Identity)
		}
	}
	return out
}

// Match classifies one embedding. Box is left for the caller to fill.
func (m *Matcher) Match(embedding []float32) Result {
	best, dist := m.nearest(embedding)
	res := Result{Distance: dist, Confidence: Confidence(dist)}
	if best >= 0 && dist <= m.tolerance {
		res.Identity = m.entries[best].Identity
		res.Known = true
	}
	return res
}

// nearest returns the index and distance of the closest entry, or -1 when
// the registry is empty. Equal distances keep the lower index.
func (m *Matcher) nearest(query []float32) (int, float64) {
	if len(m.entries) == 0 {
		return -1, math.Inf(1)
	}

	candidates := m.candidates(query)
	best, bestDist := -1, math.Inf(1)
	for _, i := range candidates {
		d := CosineDistance(query, m.entries[i].Embedding)
		if d < bestDist || (d == bestDist && i < best) {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (m *Matcher) candidates(query []float32) []int {
	if m.graph == nil {
		idx := make([]int, len(m.entries))
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	m.mu.Lock()
	nodes := m.graph.Search(query, searchK)
	m.mu.Unlock()

	idx := make([]int, 0, len(nodes))
	for _, n := range nodes {
		idx = append(idx, n.Key)
	}
	return idx
}

// Confidence maps a distance to a percentage in [0, 100].
func Confidence(distance float64) float64 {
	if math.IsInf(distance, 0) || math.IsNaN(distance) {
		return 0
	}
	c := (1 - distance) * 100
	return math.Max(0, math.Min(100, c))
}

// CosineDistance returns 1 - cos(a, b). Mismatched or zero vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// ErrNoFace is returned when an image holds no detectable face.
var ErrNoFace = errors.New("no face detected")
