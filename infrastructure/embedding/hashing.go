// Package embedding provides an offline ports.Embedder.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-qgen/internal/ports"
)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 512

// HashEmbedder maps text to L2-normalized vectors by feature hashing of
// word unigrams and bigrams. Cosine similarity then tracks shared
// vocabulary. It needs no network access and is deterministic.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing dim-sized vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

// Embed implements ports.Embedder.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

// Model identifies the embedder in cache keys.
func (e *HashEmbedder) Model() string { return "hashing" }

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for i, w := range words {
		e.add(vec, w, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// add hashes feature into a bucket with a hash-derived sign so that
// collisions cancel rather than accumulate.
func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

var _ ports.Embedder = (*HashEmbedder)(nil)
