package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// Summarizer condenses a document for use as fallback context.
type Summarizer struct {
	cfg Config
	gen ports.TextGenerator
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(cfg Config, gen ports.TextGenerator) *Summarizer {
	return &Summarizer{cfg: cfg, gen: gen}
}

// Summarize returns a summary of text with every sentence capitalized. When
// the generator fails or returns nothing, the first two chunks stand in for
// the summary and the outcome records why.
func (s *Summarizer) Summarize(ctx context.Context, text string, chunks []string) Outcome[string] {
	fallback := strings.Join(chunks[:min(2, len(chunks))], " ")

	outs, err := s.gen.Generate(ctx, "summarize: "+strings.TrimSpace(text), ports.GenerationOptions{
		Candidates: 1,
		MaxTokens:  s.cfg.SummaryMaxTokens,
		MinWords:   s.cfg.SummaryMinWords,
	})
	if err != nil {
		return Failed(fallback, fmt.Errorf("summarize: %w", err))
	}
	if len(outs) == 0 || strings.TrimSpace(outs[0]) == "" {
		return Empty(fallback)
	}
	return OK(CapitalizeSentences(outs[0]))
}
