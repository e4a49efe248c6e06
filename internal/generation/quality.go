package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// Rejection reasons reported by the QualityGate.
const (
	ReasonOK                 = "ok"
	ReasonQuestionTooShort   = "question too short"
	ReasonTooShort           = "too short"
	ReasonNotRelevant        = "not relevant"
	ReasonNotGrounded        = "not grounded"
	ReasonTooRepetitive      = "too repetitive"
	ReasonFormattingArtifact = "formatting artifact"
	ReasonIncoherent         = "incoherent"
)

// Assessment is the verdict on a question-answer pair.
type Assessment struct {
	Accepted bool
	Reason   string
}

func reject(reason string) Assessment { return Assessment{Reason: reason} }

// QualityGate screens generated descriptive items. Rules run in a fixed
// order and the first failing rule decides the reason.
type QualityGate struct {
	cfg      QualityConfig
	embedder ports.Embedder
}

// NewQualityGate creates a QualityGate.
func NewQualityGate(cfg QualityConfig, embedder ports.Embedder) *QualityGate {
	return &QualityGate{cfg: cfg, embedder: embedder}
}

// Assess applies the rules to question and answer, with passage as the
// grounding source. The error is non-nil only when embedding fails.
func (g *QualityGate) Assess(ctx context.Context, question, answer, passage string) (Assessment, error) {
	if WordCount(question) < g.cfg.QuestionMinWords {
		return reject(ReasonQuestionTooShort), nil
	}
	if WordCount(answer) < g.cfg.AnswerMinWords {
		return reject(ReasonTooShort), nil
	}

	var sents []string
	inputs := []string{question, answer, passage}
	if s := SplitSentences(answer); len(s) >= g.cfg.CoherenceMinSentences {
		sents = s
		inputs = append(inputs, sents...)
	}
	vecs, err := g.embedder.Embed(ctx, inputs)
	if err != nil {
		return Assessment{}, fmt.Errorf("embed for quality: %w", err)
	}
	if len(vecs) != len(inputs) {
		return Assessment{}, fmt.Errorf("embed for quality: got %d vectors for %d inputs", len(vecs), len(inputs))
	}

	if Cosine(vecs[0], vecs[1]) < g.cfg.MinRelevance {
		return reject(ReasonNotRelevant), nil
	}
	if Cosine(vecs[1], vecs[2]) < g.cfg.MinGrounding {
		return reject(ReasonNotGrounded), nil
	}
	if g.repetitive(answer) {
		return reject(ReasonTooRepetitive), nil
	}
	if CountJoinedWords(answer) >= g.cfg.MaxFormattingArtifacts {
		return reject(ReasonFormattingArtifact), nil
	}
	if len(sents) > 0 && averagePairwise(vecs[3:]) < g.cfg.MinCoherence {
		return reject(ReasonIncoherent), nil
	}
	return Assessment{Accepted: true, Reason: ReasonOK}, nil
}

func (g *QualityGate) repetitive(answer string) bool {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(answer)) {
		if IsStopword(w) {
			continue
		}
		counts[w]++
		if counts[w] > g.cfg.MaxTokenRepeats {
			return true
		}
	}
	return false
}

// averagePairwise is the mean cosine similarity over all unordered pairs.
func averagePairwise(vecs [][]float32) float64 {
	sum, pairs := 0.0, 0
	for i := range vecs {
		for j := i + 1; j < len(vecs); j++ {
			sum += Cosine(vecs[i], vecs[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1
	}
	return sum / float64(pairs)
}
