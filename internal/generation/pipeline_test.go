package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/testutils"
)

const pipelineDoc = "Photosynthesis is the process plants use to turn light into chemical energy. " +
	"Chlorophyll in the leaves absorbs light from the sun during the day. " +
	"The absorbed light energy splits water molecules inside the chloroplasts. " +
	"Oxygen is released into the air as a product of this reaction. " +
	"Carbon dioxide enters the leaves through small pores called stomata. " +
	"The Calvin cycle uses carbon dioxide to build glucose for the plant. " +
	"Glucose stores chemical energy that the plant uses to grow. " +
	"Plants also store extra glucose as starch in their roots. " +
	"Animals depend on plants for food and for the oxygen they breathe. " +
	"Without photosynthesis most life on Earth could not exist at all. " +
	"Scientists study photosynthesis to design better solar energy systems. " +
	"Farmers rely on healthy photosynthesis to grow productive crops each season."

const pipelineAnswer = "Plants turn light into chemical energy in their leaves. This energy is stored as glucose in plants."

type pipelineFixture struct {
	questions  *testutils.MockGenerator
	answers    *testutils.MockGenerator
	summarizer *testutils.MockGenerator
	embedder   *testutils.BagOfWordsEmbedder
	annotator  *testutils.RuleAnnotator
}

func newPipelineFixture() *pipelineFixture {
	n := 0
	return &pipelineFixture{
		questions: testutils.NewMockGenerator("questions").SetFunc(func(string) []string {
			n++
			return []string{fmt.Sprintf("How do plants turn light into energy in step %d?", n)}
		}),
		answers:    testutils.NewMockGenerator("answers").SetFallback(pipelineAnswer),
		summarizer: testutils.NewMockGenerator("summary").SetFallback("plants turn light into energy. they store it as glucose."),
		embedder:   testutils.NewBagOfWordsEmbedder(),
		annotator: testutils.NewRuleAnnotator().
			Tag("VBZ", "absorbs", "splits", "enters", "uses", "stores").
			Tag("VBP", "use", "store", "depend", "rely", "study").
			Tag("VB", "turn", "build", "grow", "breathe", "exist", "design").
			Tag("VBN", "released", "called").
			Tag("JJ", "chemical", "small", "extra", "better", "solar", "healthy", "productive").
			Entity("Calvin cycle", domain.EntityEvent).
			Entity("Earth", domain.EntityLocation),
	}
}

func (f *pipelineFixture) models() Models {
	return Models{
		Questions:  f.questions,
		Answers:    f.answers,
		Summarizer: f.summarizer,
		Embedder:   f.embedder,
		Annotator:  f.annotator,
	}
}

func testPipelineConfig() Config {
	cfg := DefaultConfig()
	// Generated questions differ only in a step number.
	cfg.DuplicateThreshold = 0.99
	return cfg
}

func newTestPipeline(t *testing.T, f *pipelineFixture) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testPipelineConfig(), f.models(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func assertValidMCQ(t *testing.T, item domain.MCQItem) {
	t.Helper()
	require.NoError(t, item.Validate())
	assert.Len(t, item.Options, domain.OptionCount)
	assert.Equal(t, item.CorrectAnswer, item.Options[item.CorrectIndex])
	for _, d := range item.Distractors() {
		assert.NotEqual(t, Fold(item.CorrectAnswer), Fold(d))
	}
	assert.NotEmpty(t, item.Context)
}

func TestPipeline_GeneratesValidMCQs(t *testing.T) {
	f := newPipelineFixture()
	res, err := newTestPipeline(t, f).Generate(context.Background(), domain.GenerationRequest{
		Text:     pipelineDoc,
		MCQCount: 2,
		Seed:     7,
	})
	require.NoError(t, err)
	require.Len(t, res.MCQs, 2)
	assert.Empty(t, res.Descriptive)

	for _, item := range res.MCQs {
		assertValidMCQ(t, item)
	}
	assert.NotEqual(t, res.MCQs[0].Question, res.MCQs[1].Question)
	assert.GreaterOrEqual(t, res.Stats.MCQAttempts, 2)
}

func TestPipeline_MCQLoopVisitsEachCandidateOnce(t *testing.T) {
	f := newPipelineFixture()
	res, err := newTestPipeline(t, f).Generate(context.Background(), domain.GenerationRequest{
		Text:     pipelineDoc,
		MCQCount: 100,
		Seed:     7,
	})
	require.NoError(t, err)

	ann := annotate(t, newPipelineFixture().annotator, pipelineDoc)
	candidates := NewCandidateExtractor(testPipelineConfig(), zap.NewNop()).Extract(ann).Value
	require.NotEmpty(t, candidates)

	assert.Equal(t, len(candidates), res.Stats.MCQAttempts)
	assert.LessOrEqual(t, len(res.MCQs), res.Stats.MCQAttempts)
	assert.NotEmpty(t, res.MCQs)
}

func TestPipeline_GeneratesDescriptiveItems(t *testing.T) {
	f := newPipelineFixture()
	res, err := newTestPipeline(t, f).Generate(context.Background(), domain.GenerationRequest{
		Text:             pipelineDoc,
		DescriptiveCount: 2,
		Seed:             11,
	})
	require.NoError(t, err)
	require.Len(t, res.Descriptive, 2)
	assert.Empty(t, res.MCQs)

	for _, item := range res.Descriptive {
		require.NoError(t, item.Validate())
		assert.Equal(t, pipelineAnswer, item.Answer)
		assert.Equal(t, domain.DifficultyMedium, item.Difficulty)
		assert.Equal(t, 23, item.Complexity)
		assert.NotEmpty(t, item.Context)
	}
	assert.Equal(t, 2, f.answers.CallCount())
	assert.Zero(t, f.summarizer.CallCount())
}

func TestPipeline_SummaryComputedOnce(t *testing.T) {
	f := newPipelineFixture()
	// Nothing usable from the model: every segment falls back to the same
	// generic question, so the run exhausts its pool and the summary pass.
	f.questions = testutils.NewMockGenerator("questions")
	f.annotator = testutils.NewRuleAnnotator()

	res, err := newTestPipeline(t, f).Generate(context.Background(), domain.GenerationRequest{
		Text:             pipelineDoc,
		DescriptiveCount: 3,
		Seed:             3,
	})
	require.NoError(t, err)
	assert.Less(t, len(res.Descriptive), 3)
	assert.Equal(t, 1, f.summarizer.CallCount())
	assert.Positive(t, res.Stats.DescriptiveAttempts)
}

func TestPipeline_SoftFailuresAreCounted(t *testing.T) {
	f := newPipelineFixture()
	f.embedder.SetError(errors.New("embedder down"))

	res, err := newTestPipeline(t, f).Generate(context.Background(), domain.GenerationRequest{
		Text:     pipelineDoc,
		MCQCount: 3,
		Seed:     5,
	})
	require.NoError(t, err)

	// The first item needs no duplicate check; every later one fails it.
	require.Len(t, res.MCQs, 1)
	assertValidMCQ(t, res.MCQs[0])
	assert.Equal(t, domain.DifficultyMedium, res.MCQs[0].Difficulty)
	assert.InDelta(t, 0.8, res.MCQs[0].Similarity, 1e-9)

	assert.Equal(t, 1, res.Stats.Failures[StageDistractors])
	assert.Equal(t, 1, res.Stats.Failures[StageDifficulty])
	assert.Equal(t, res.Stats.MCQAttempts-1, res.Stats.Rejections[ReasonDedupFailed])
}

func TestPipeline_SameSeedSameOutput(t *testing.T) {
	req := domain.GenerationRequest{Text: pipelineDoc, MCQCount: 3, DescriptiveCount: 2, Seed: 42}

	first, err := newTestPipeline(t, newPipelineFixture()).Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := newTestPipeline(t, newPipelineFixture()).Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.MCQs, second.MCQs)
	assert.Equal(t, first.Descriptive, second.Descriptive)
}

func TestPipeline_HardFailures(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		req     domain.GenerationRequest
		setup   func(*pipelineFixture)
		wantErr error
	}{
		{
			name:    "empty text",
			ctx:     context.Background(),
			req:     domain.GenerationRequest{Text: "  \n ", MCQCount: 1},
			wantErr: domain.ErrEmptyInput,
		},
		{
			name:    "nothing requested",
			ctx:     context.Background(),
			req:     domain.GenerationRequest{Text: pipelineDoc},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "only short sentences",
			ctx:     context.Background(),
			req:     domain.GenerationRequest{Text: "Too short. Also short. Tiny one.", MCQCount: 1},
			wantErr: domain.ErrUnusableInput,
		},
		{
			name:    "annotator down",
			ctx:     context.Background(),
			req:     domain.GenerationRequest{Text: pipelineDoc, MCQCount: 1},
			setup:   func(f *pipelineFixture) { f.annotator.SetError(errors.New("nlp down")) },
			wantErr: domain.ErrModelsUnavailable,
		},
		{
			name:    "canceled",
			ctx:     canceled,
			req:     domain.GenerationRequest{Text: pipelineDoc, MCQCount: 1},
			wantErr: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			res, err := newTestPipeline(t, f).Generate(tt.ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	f := newPipelineFixture()

	m := f.models()
	m.Embedder = nil
	_, err := NewPipeline(DefaultConfig(), m, nil)
	assert.ErrorIs(t, err, domain.ErrModelsUnavailable)
	assert.Contains(t, err.Error(), "embedder")

	cfg := DefaultConfig()
	cfg.MMRLambda = 2
	_, err = NewPipeline(cfg, f.models(), nil)
	assert.Error(t, err)

	p, err := NewPipeline(DefaultConfig(), f.models(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p.log)
}

func TestModels_SummarizerFallsBackToAnswers(t *testing.T) {
	f := newPipelineFixture()
	m := f.models()
	assert.Same(t, f.summarizer, m.summarizer())

	m.Summarizer = nil
	assert.Same(t, f.answers, m.summarizer())
}

func TestOutcome_Note(t *testing.T) {
	stats := domain.NewRunStats()
	log := zap.NewNop()

	OK(1).note(stats, log, StageAnswer, "x")
	Empty(0).note(stats, log, StageAnswer, "x")
	Failed(0, errors.New("boom")).note(stats, log, StageAnswer, "x")
	Failed(0, errors.New("boom")).note(nil, log, StageAnswer, "x")

	assert.Equal(t, 1, stats.Failures[StageAnswer])
	assert.Equal(t, 1, stats.Empty[StageAnswer])
	assert.Equal(t, 1, stats.TotalFailures())

	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "empty", StatusEmpty.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
