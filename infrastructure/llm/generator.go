package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// DefaultSystemPrompt is the system instruction used by NewClient.
const DefaultSystemPrompt = "You write exam questions and reference answers. " +
	"Reply with the requested text only, without preamble or labels."

// Generator adapts a CoreLLM to ports.TextGenerator.
type Generator struct {
	core   CoreLLM
	system string
}

var _ ports.TextGenerator = (*Generator)(nil)

// NewGenerator returns a Generator sending system as the system instruction
// of every request.
func NewGenerator(core CoreLLM, system string) *Generator {
	return &Generator{core: core, system: system}
}

// Generate requests opts.Candidates completions. A MinWords floor is
// appended to the system instruction since no provider enforces it.
// Blank completions are dropped.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) ([]string, error) {
	req := Request{
		Prompt:      prompt,
		System:      g.system,
		Candidates:  max(opts.Candidates, 1),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.MinWords > 0 {
		floor := fmt.Sprintf("Use at least %d words.", opts.MinWords)
		req.System = strings.TrimSpace(req.System + " " + floor)
	}

	resp, err := g.core.DoRequest(ctx, req)
	if err != nil {
		return nil, ports.NewModelError(g.core.GetModel(), "generate", err)
	}

	out := make([]string, 0, len(resp.Texts))
	for _, t := range resp.Texts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// Model returns the model name of the underlying provider.
func (g *Generator) Model() string { return g.core.GetModel() }
