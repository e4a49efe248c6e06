package generation

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/testutils"
)

func newTestSynthesizer(gen *testutils.MockGenerator, ann *testutils.RuleAnnotator) *QuestionSynthesizer {
	return NewQuestionSynthesizer(DefaultConfig(), gen, ann, rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestForAnswer_PicksLongestCleanCandidate(t *testing.T) {
	gen := testutils.NewMockGenerator("q").AddResponse(testutils.MockResponse{
		Pattern: "generate a question for this answer",
		Completions: []string{
			"question: what converts light into chemical energy",
			"What question has this answer?",
			"Short?",
			"What converts light?",
		},
	})
	s := newTestSynthesizer(gen, testutils.NewRuleAnnotator())

	out := s.ForAnswer(context.Background(), photosynthesisText, "Photosynthesis")
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "What converts light into chemical energy?", out.Value)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 5, calls[0].Options.Candidates)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, "context: "+photosynthesisText))
}

func TestForAnswer_CyclesTemplatesThenFallsBack(t *testing.T) {
	gen := testutils.NewMockGenerator("q").SetFallback("What question is it?", "Too short")
	s := newTestSynthesizer(gen, testutils.NewRuleAnnotator())

	out := s.ForAnswer(context.Background(), photosynthesisText, "chlorophyll")
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "What is chlorophyll?", out.Value)

	calls := gen.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].Prompt, "Generate a question for this answer.")
	assert.Contains(t, calls[1].Prompt, "Create a question whose answer is")
	assert.Contains(t, calls[2].Prompt, "Generate a question that has the answer")
}

func TestForAnswer_Fallbacks(t *testing.T) {
	ann := testutils.NewRuleAnnotator().Entity("Marie Curie", domain.EntityPerson)
	tests := []struct {
		answer string
		want   string
	}{
		{"Marie Curie", "Who is Marie Curie?"},
		{"chloroplasts", "What are chloroplasts?"},
		{"biomass", "What is biomass?"},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			s := newTestSynthesizer(testutils.NewMockGenerator("q"), ann)
			assert.Equal(t, tt.want, s.ForAnswer(context.Background(), "ctx", tt.answer).Value)
		})
	}
}

func TestForAnswer_GeneratorErrorStillYieldsFallback(t *testing.T) {
	gen := testutils.NewMockGenerator("q").SetError(errors.New("quota"))
	out := newTestSynthesizer(gen, testutils.NewRuleAnnotator()).
		ForAnswer(context.Background(), "ctx", "light")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "What is light?", out.Value)
	assert.Equal(t, 3, gen.CallCount())
}

func TestForAnswer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newTestSynthesizer(testutils.NewMockGenerator("q"), testutils.NewRuleAnnotator()).
		ForAnswer(ctx, "ctx", "light")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, out.Value)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestForSegment_StripsImperativeAndPicksLongest(t *testing.T) {
	gen := testutils.NewMockGenerator("q").SetFallback(
		"Generate a question about this: what role does chlorophyll play in plants",
		"Why?",
		"How do leaves work?",
	)
	out := newTestSynthesizer(gen, testutils.NewRuleAnnotator()).
		ForSegment(context.Background(), "Chlorophyll absorbs light.")

	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "What role does chlorophyll play in plants?", out.Value)

	prompt := gen.Calls()[0].Prompt
	assert.True(t, strings.HasSuffix(prompt, ": Chlorophyll absorbs light."))
}

func TestForSegment_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		ann     *testutils.RuleAnnotator
		segment string
		want    string
	}{
		{
			name:    "subject",
			ann:     testutils.NewRuleAnnotator().Tag("VBZ", "absorbs"),
			segment: "Chlorophyll absorbs light.",
			want:    "What is the significance of Chlorophyll in this context?",
		},
		{
			name:    "entity",
			ann:     testutils.NewRuleAnnotator().Entity("Paris", domain.EntityLocation),
			segment: "The museums of Paris.",
			want:    "What is Paris and why is it important?",
		},
		{
			name:    "generic",
			ann:     testutils.NewRuleAnnotator(),
			segment: "Nothing notable here.",
			want:    genericSegmentQuestion,
		},
		{
			name:    "annotator failure",
			ann:     testutils.NewRuleAnnotator().SetError(errors.New("nlp down")),
			segment: "Chlorophyll absorbs light.",
			want:    genericSegmentQuestion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testutils.NewMockGenerator("q").SetFallback("Why?")
			out := newTestSynthesizer(gen, tt.ann).ForSegment(context.Background(), tt.segment)
			assert.Equal(t, StatusOK, out.Status)
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestForSegment_GeneratorError(t *testing.T) {
	gen := testutils.NewMockGenerator("q").SetError(errors.New("quota"))
	out := newTestSynthesizer(gen, testutils.NewRuleAnnotator()).
		ForSegment(context.Background(), "Nothing notable here.")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, genericSegmentQuestion, out.Value)
}
