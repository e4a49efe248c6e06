package generation

import (
	"context"
	"fmt"

	"github.com/ahrav/go-qgen/internal/ports"
)

// DeduplicationFilter flags questions too close to ones already accepted.
type DeduplicationFilter struct {
	threshold float64
	embedder  ports.Embedder
}

// NewDeduplicationFilter creates a DeduplicationFilter.
func NewDeduplicationFilter(threshold float64, embedder ports.Embedder) *DeduplicationFilter {
	return &DeduplicationFilter{threshold: threshold, embedder: embedder}
}

// IsDuplicate reports whether candidate exceeds the threshold in lexical
// similarity to any accepted question, or failing that in embedding
// similarity. An empty accepted set is never a duplicate and is answered
// without calling the embedder.
func (f *DeduplicationFilter) IsDuplicate(ctx context.Context, candidate string, accepted []string) (bool, error) {
	if len(accepted) == 0 {
		return false, nil
	}
	for _, q := range accepted {
		if LexicalSimilarity(candidate, q) > f.threshold {
			return true, nil
		}
	}

	vecs, err := f.embedder.Embed(ctx, append([]string{candidate}, accepted...))
	if err != nil {
		return false, fmt.Errorf("embed questions: %w", err)
	}
	if len(vecs) != len(accepted)+1 {
		return false, fmt.Errorf("embed questions: got %d vectors for %d inputs", len(vecs), len(accepted)+1)
	}
	return MaxCosine(vecs[0], vecs[1:]) > f.threshold, nil
}
