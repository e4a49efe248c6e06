package generation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/ports"
)

var answerTemplates = []string{
	"Answer this question in detail based on the given information. Question: %s Context: %s Answer:",
	"Using only the provided context, answer this question thoroughly. Question: %s Context: %s Answer:",
	"Based on the following information, provide a comprehensive answer to this question. Question: %s Context: %s Answer:",
}

// selectionSlack is how far the neighbor-expanded selection may exceed n
// before it is cut back.
const selectionSlack = 4

// AnswerSynthesizer writes reference answers for descriptive questions.
type AnswerSynthesizer struct {
	cfg      Config
	gen      ports.TextGenerator
	embedder ports.Embedder
	rng      *rand.Rand
	log      *zap.Logger
}

// NewAnswerSynthesizer creates an AnswerSynthesizer.
func NewAnswerSynthesizer(
	cfg Config,
	gen ports.TextGenerator,
	embedder ports.Embedder,
	rng *rand.Rand,
	log *zap.Logger,
) *AnswerSynthesizer {
	return &AnswerSynthesizer{cfg: cfg, gen: gen, embedder: embedder, rng: rng, log: log}
}

// SelectRelevantSentences returns the part of the document most relevant to
// question. Documents of at most n sentences come back whole. Otherwise the
// n sentences closest to the question are kept together with their direct
// neighbors; if that grows past n+4 sentences the least similar are dropped.
// The kept sentences are joined in document order.
//
// If embedding fails the whole document is returned with a failed outcome.
func (a *AnswerSynthesizer) SelectRelevantSentences(ctx context.Context, question string, sentences []string, n int) Outcome[string] {
	whole := strings.Join(sentences, " ")
	if len(sentences) <= n {
		return OK(whole)
	}

	vecs, err := a.embedder.Embed(ctx, append([]string{question}, sentences...))
	if err != nil {
		return Failed(whole, fmt.Errorf("embed sentences: %w", err))
	}
	if len(vecs) != len(sentences)+1 {
		return Failed(whole, fmt.Errorf("embed sentences: got %d vectors for %d inputs", len(vecs), len(sentences)+1))
	}
	sims := make([]float64, len(sentences))
	for i := range sentences {
		sims[i] = Cosine(vecs[0], vecs[i+1])
	}

	bySim := func(idx []int) {
		sort.SliceStable(idx, func(x, y int) bool { return sims[idx[x]] > sims[idx[y]] })
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	bySim(order)

	chosen := make(map[int]bool)
	for _, i := range order[:n] {
		chosen[i] = true
		if i > 0 {
			chosen[i-1] = true
		}
		if i < len(sentences)-1 {
			chosen[i+1] = true
		}
	}

	kept := make([]int, 0, len(chosen))
	for i := range chosen {
		kept = append(kept, i)
	}
	sort.Ints(kept)
	if len(kept) > n+selectionSlack {
		bySim(kept)
		kept = kept[:n+selectionSlack]
		sort.Ints(kept)
	}

	parts := make([]string, len(kept))
	for j, i := range kept {
		parts[j] = sentences[i]
	}
	return OK(strings.Join(parts, " "))
}

// Generate writes an answer to question grounded in the document sentences.
// The raw completion is cleaned of lead-ins and spacing artifacts. An empty
// completion yields an empty outcome.
func (a *AnswerSynthesizer) Generate(ctx context.Context, question string, sentences []string) Outcome[string] {
	selected := a.SelectRelevantSentences(ctx, question, sentences, a.cfg.SelectedSentences)
	if selected.Status == StatusFailed {
		a.log.Debug("sentence selection degraded", zap.Error(selected.Err))
	}

	prompt := fmt.Sprintf(answerTemplates[a.rng.Intn(len(answerTemplates))], question, selected.Value)
	outs, err := a.gen.Generate(ctx, prompt, ports.GenerationOptions{
		Candidates: 1,
		MaxTokens:  a.cfg.AnswerMaxTokens,
		MinWords:   a.cfg.AnswerMinWords,
	})
	if err != nil {
		return Failed("", fmt.Errorf("generate answer: %w", err))
	}
	if len(outs) == 0 || strings.TrimSpace(outs[0]) == "" {
		return Empty("")
	}
	return OK(CleanAnswer(outs[0]))
}
