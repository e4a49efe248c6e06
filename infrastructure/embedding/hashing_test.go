package embedding

import (
	"context"
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Similarity(t *testing.T) {
	e := NewHashEmbedder(0)
	vecs, err := e.Embed(context.Background(), []string{
		"Photosynthesis converts light energy into chemical energy.",
		"photosynthesis converts LIGHT energy into chemical energy",
		"The stock market fell sharply on Tuesday.",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Len(t, vecs[0], DefaultDimension)

	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
	assert.Less(t, cosine(vecs[0], vecs[2]), 0.5)
	assert.Equal(t, 0.0, cosine(vecs[0], vecs[3]))
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := NewHashEmbedder(64)
	f := func(s string) bool {
		vecs, err := e.Embed(context.Background(), []string{s})
		if err != nil || len(vecs[0]) != 64 {
			return false
		}
		var sum float64
		for _, x := range vecs[0] {
			sum += float64(x) * float64(x)
		}
		return sum == 0 || math.Abs(sum-1) < 1e-4
	}
	assert.NoError(t, quick.Check(f, nil))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	a, _ := NewHashEmbedder(32).Embed(context.Background(), []string{"the quick brown fox"})
	b, _ := NewHashEmbedder(32).Embed(context.Background(), []string{"the quick brown fox"})
	assert.Equal(t, a, b)
}

func TestHashEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
