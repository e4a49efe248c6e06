package testutils

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/ahrav/go-qgen/internal/ports"
)

// embedDim is the dimension of BagOfWordsEmbedder vectors.
const embedDim = 256

// BagOfWordsEmbedder maps text to hashed word-count vectors, so cosine
// similarity tracks word overlap. Vectors can be pinned per text with Set.
type BagOfWordsEmbedder struct {
	mu     sync.Mutex
	pinned map[string][]float32
	err    error
	calls  int
}

// NewBagOfWordsEmbedder creates a BagOfWordsEmbedder.
func NewBagOfWordsEmbedder() *BagOfWordsEmbedder {
	return &BagOfWordsEmbedder{pinned: make(map[string][]float32)}
}

// Set pins the vector returned for text.
func (e *BagOfWordsEmbedder) Set(text string, vec []float32) *BagOfWordsEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
	return e
}

// SetError makes every subsequent call fail with err. Nil clears it.
func (e *BagOfWordsEmbedder) SetError(err error) *BagOfWordsEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	return e
}

// Calls returns the number of Embed calls made.
func (e *BagOfWordsEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed implements ports.Embedder.
func (e *BagOfWordsEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.pinned[t]; ok {
			out[i] = v
			continue
		}
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, embedDim)
	for _, w := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%embedDim]++
	}
	return vec
}

// Words lower-cases text and splits it into letter and digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ ports.Embedder = (*BagOfWordsEmbedder)(nil)
