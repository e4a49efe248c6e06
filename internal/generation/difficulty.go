package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

const (
	difficultAbove = 0.9
	mediumAbove    = 0.7

	// fallbackSimilarity is reported when scoring fails.
	fallbackSimilarity = 0.8
)

// DifficultyFor maps the answer-distractor similarity to a label.
func DifficultyFor(similarity float64) domain.Difficulty {
	switch {
	case similarity > difficultAbove:
		return domain.DifficultyDifficult
	case similarity > mediumAbove:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyEasy
	}
}

// DifficultyScorer rates an MCQ by how close its distractors sit to the
// answer in embedding space.
type DifficultyScorer struct {
	embedder ports.Embedder
}

// NewDifficultyScorer creates a DifficultyScorer.
func NewDifficultyScorer(embedder ports.Embedder) *DifficultyScorer {
	return &DifficultyScorer{embedder: embedder}
}

// Score returns the label for the highest cosine similarity between the
// answer and any distractor. With no distractors the item is Easy at 0. On
// failure the value is (Medium, 0.8) and the outcome is failed.
func (s *DifficultyScorer) Score(ctx context.Context, answer string, distractors []string) Outcome[Rating] {
	if len(distractors) == 0 {
		return OK(Rating{Difficulty: domain.DifficultyEasy})
	}
	fallback := Rating{Difficulty: domain.DifficultyMedium, Similarity: fallbackSimilarity}

	vecs, err := s.embedder.Embed(ctx, append([]string{answer}, distractors...))
	if err != nil {
		return Failed(fallback, fmt.Errorf("embed options: %w", err))
	}
	if len(vecs) != len(distractors)+1 {
		return Failed(fallback, errors.New("embed options: vector count mismatch"))
	}

	sim := MaxCosine(vecs[0], vecs[1:])
	return OK(Rating{Difficulty: DifficultyFor(sim), Similarity: sim})
}

// Rating is a difficulty label with the similarity it was derived from.
type Rating struct {
	Difficulty domain.Difficulty
	Similarity float64
}
