package matcher

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unit builds a normalized 4-d vector.
func unit(v ...float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] / n
	}
	return out
}

func TestMatchKnownWithinTolerance(t *testing.T) {
	m, err := NewMatcher([]Entry{
		{Identity: "alice", Embedding: unit(1, 0, 0, 0)},
		{Identity: "bob", Embedding: unit(0, 1, 0, 0)},
	}, DefaultTolerance)
	require.NoError(t, err)

	res := m.Match(unit(1, 0.1, 0, 0))
	assert.True(t, res.Known)
	assert.Equal(t, "alice", res.Identity)
	assert.Less(t, res.Distance, 0.01)
	assert.Greater(t, res.Confidence, 99.0)
}

func TestMatchUnknownBeyondTolerance(t *testing.T) {
	m, err := NewMatcher([]Entry{{Identity: "alice", Embedding: unit(1, 0, 0, 0)}}, DefaultTolerance)
	require.NoError(t, err)

	res := m.Match(unit(0, 0, 1, 0))
	assert.False(t, res.Known)
	assert.Empty(t, res.Identity)
	assert.InDelta(t, 1.0, res.Distance, 1e-6)
	assert.InDelta(t, 0.0, res.Confidence, 1e-6)
}

func TestMatchAcceptsDistanceEqualToTolerance(t *testing.T) {
	m, err := NewMatcher([]Entry{{Identity: "alice", Embedding: unit(1, 0, 0, 0)}}, 1.0)
	require.NoError(t, err)

	// orthogonal vectors sit at exactly distance 1
	res := m.Match(unit(0, 1, 0, 0))
	assert.True(t, res.Known)
}

func TestMatchMinimumDistanceWins(t *testing.T) {
	m, err := NewMatcher([]Entry{
		{Identity: "far", Embedding: unit(1, 1, 0, 0)},
		{Identity: "near", Embedding: unit(1, 0.2, 0, 0)},
	}, DefaultTolerance)
	require.NoError(t, err)

	res := m.Match(unit(1, 0, 0, 0))
	assert.Equal(t, "near", res.Identity)
}

func TestMatchEqualDistanceKeepsRegistryOrder(t *testing.T) {
	same := unit(1, 0, 0, 0)
	m, err := NewMatcher([]Entry{
		{Identity: "first", Embedding: same},
		{Identity: "second", Embedding: same},
	}, DefaultTolerance)
	require.NoError(t, err)

	assert.Equal(t, "first", m.Match(same).Identity)
}

func TestMatchEmptyRegistry(t *testing.T) {
	m, err := NewMatcher(nil, DefaultTolerance)
	require.NoError(t, err)

	res := m.Match(unit(1, 0, 0, 0))
	assert.False(t, res.Known)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestNewMatcherRejectsMixedDims(t *testing.T) {
	_, err := NewMatcher([]Entry{
		{Identity: "a", Embedding: []float32{1, 0}},
		{Identity: "b", Embedding: []float32{1, 0, 0}},
	}, DefaultTolerance)
	require.Error(t, err)
}

func TestConfidenceRange(t *testing.T) {
	for _, d := range []float64{-0.5, 0, 0.08, 0.6, 1, 1.7, 2, math.Inf(1)} {
		c := Confidence(d)
		assert.GreaterOrEqual(t, c, 0.0, "distance %v", d)
		assert.LessOrEqual(t, c, 100.0, "distance %v", d)
	}
	assert.InDelta(t, 92.0, Confidence(0.08), 1e-9)
}

func randomUnit(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for j := range v {
		v[j] = rng.Float32()*2 - 1
	}
	return unit(v...)
}

func randomEntries(rng *rand.Rand, n, dim int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{Identity: fmt.Sprintf("person-%03d", i), Embedding: randomUnit(rng, dim)}
	}
	return entries
}

func TestHouseholdRegistryFindsTrueNearest(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entries := randomEntries(rng, 500, 32)

	m, err := NewMatcher(entries, DefaultTolerance)
	require.NoError(t, err)
	require.Nil(t, m.graph)

	for q := 0; q < 50; q++ {
		query := randomUnit(rng, 32)
		best, bestDist := -1, math.Inf(1)
		for i, e := range entries {
			if d := CosineDistance(query, e.Embedding); d < bestDist {
				best, bestDist = i, d
			}
		}

		res := m.Match(query)
		assert.InDelta(t, bestDist, res.Distance, 1e-12, "query %d", q)
		if bestDist <= DefaultTolerance {
			assert.Equal(t, entries[best].Identity, res.Identity, "query %d", q)
		}
	}
}

func TestLargeRegistryUsesIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	entries := randomEntries(rng, 200, 32)

	m, err := newMatcher(entries, 0.2, 64)
	require.NoError(t, err)
	require.NotNil(t, m.graph)

	for _, i := range []int{0, 57, 199} {
		res := m.Match(entries[i].Embedding)
		assert.True(t, res.Known)
		assert.Equal(t, entries[i].Identity, res.Identity)
	}
}

func TestIdentitiesDeduplicates(t *testing.T) {
	m, err := NewMatcher([]Entry{
		{Identity: "alice", Embedding: unit(1, 0)},
		{Identity: "bob", Embedding: unit(0, 1)},
		{Identity: "alice", Embedding: unit(1, 1)},
	}, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, m.Identities())
}
