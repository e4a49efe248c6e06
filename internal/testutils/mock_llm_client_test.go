package testutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

func TestMockGenerator_Generate(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		opts     ports.GenerationOptions
		expected []string
	}{
		{
			name:     "matches first pattern",
			prompt:   "context: plants answer: light Generate a question for this answer.",
			opts:     ports.GenerationOptions{Candidates: 5},
			expected: []string{"What do plants absorb?", "What powers photosynthesis?"},
		},
		{
			name:     "truncates to requested candidates",
			prompt:   "Generate a question for this answer",
			opts:     ports.GenerationOptions{Candidates: 1},
			expected: []string{"What do plants absorb?"},
		},
		{
			name:     "falls back for unmatched prompt",
			prompt:   "summarize: plants",
			expected: []string{"Plants make food."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewMockGenerator("test-model").
				AddResponse(MockResponse{
					Pattern:     "generate a question for this answer",
					Completions: []string{"What do plants absorb?", "What powers photosynthesis?"},
				}).
				SetFallback("Plants make food.")

			got, err := gen.Generate(context.Background(), tt.prompt, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, 1, gen.CallCount())
			assert.Equal(t, tt.prompt, gen.Calls()[0].Prompt)
		})
	}
}

func TestMockGenerator_FuncAndErrors(t *testing.T) {
	ctx := context.Background()
	gen := NewMockGenerator("m").SetFunc(func(prompt string) []string { return []string{"echo " + prompt} })

	got, err := gen.Generate(ctx, "hi", ports.GenerationOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo hi"}, got)

	_, err = gen.Generate(ctx, "", ports.GenerationOptions{})
	assert.Error(t, err)

	boom := errors.New("boom")
	gen.SetError(boom)
	_, err = gen.Generate(ctx, "hi", ports.GenerationOptions{})
	assert.ErrorIs(t, err, boom)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = gen.Generate(cctx, "hi", ports.GenerationOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	gen.Reset()
	assert.Zero(t, gen.CallCount())
	assert.Equal(t, "m", gen.Model())
}

func TestBagOfWordsEmbedder(t *testing.T) {
	e := NewBagOfWordsEmbedder().Set("pinned", []float32{1, 0})
	vecs, err := e.Embed(context.Background(), []string{"Plants grow.", "plants GROW", "pinned"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[1])
	assert.Equal(t, []float32{1, 0}, vecs[2])
	assert.Equal(t, 1, e.Calls())

	e.SetError(errors.New("down"))
	_, err = e.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestRuleAnnotator(t *testing.T) {
	a := NewRuleAnnotator().
		Tag("VBZ", "absorbs").
		Entity("Marie Curie", domain.EntityPerson).
		Entity("Paris", domain.EntityLocation)

	ann, err := a.Annotate(context.Background(), "Chlorophyll absorbs light. Marie Curie worked in Paris.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Chlorophyll absorbs light.", "Marie Curie worked in Paris."}, ann.Sentences)
	assert.Equal(t, []string{"Chlorophyll"}, ann.Subjects)
	require.Len(t, ann.Entities, 2)
	assert.Equal(t, "Marie Curie", ann.Entities[0].Text)
	assert.Equal(t, domain.EntityLocation, ann.Entities[1].Type)

	assert.Equal(t, domain.Token{Text: "Chlorophyll", Tag: "NN", Sentence: 0}, ann.Tokens[0])
	assert.Equal(t, domain.Token{Text: "absorbs", Tag: "VBZ", Sentence: 0}, ann.Tokens[1])
	assert.Equal(t, domain.Token{Text: ".", Tag: ".", Sentence: 0}, ann.Tokens[3])
	assert.Equal(t, "DT", ann.Tokens[7].Tag, "function word %q", ann.Tokens[7].Text)
}

func TestMapPhraseSpaceAndOntology(t *testing.T) {
	ctx := context.Background()
	s := NewMapPhraseSpace().Add("Machine Learning", ports.SenseNoun, "deep_learning", "statistics")

	key, ok, err := s.BestSense(ctx, "machine learning", []ports.Sense{ports.SenseNoun})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "machine_learning", key.Phrase)

	_, ok, err = s.BestSense(ctx, "machine learning", []ports.Sense{ports.SensePerson})
	require.NoError(t, err)
	assert.False(t, ok)

	nbs, err := s.MostSimilar(ctx, key, 1)
	require.NoError(t, err)
	require.Len(t, nbs, 1)
	assert.Equal(t, "deep_learning", nbs[0].Key.Phrase)

	o := &MapOntology{Siblings: map[string][]string{"oak": {"maple", "pine"}}}
	sib, err := o.CoHyponyms(ctx, "Oak")
	require.NoError(t, err)
	assert.Equal(t, []string{"maple", "pine"}, sib)
}
