package generation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/testutils"
)

func newTestAnswerer(gen *testutils.MockGenerator, emb *testutils.BagOfWordsEmbedder) *AnswerSynthesizer {
	return NewAnswerSynthesizer(DefaultConfig(), gen, emb, rand.New(rand.NewSource(1)), zap.NewNop())
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence number %d.", i)
	}
	return out
}

func TestSelectRelevantSentences_ShortDocumentIsWhole(t *testing.T) {
	emb := testutils.NewBagOfWordsEmbedder()
	a := newTestAnswerer(testutils.NewMockGenerator("a"), emb)

	out := a.SelectRelevantSentences(context.Background(), "q", numbered(3), 3)
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, strings.Join(numbered(3), " "), out.Value)
	assert.Zero(t, emb.Calls())
}

func TestSelectRelevantSentences_ExpandsAndTrims(t *testing.T) {
	sents := numbered(10)
	emb := testutils.NewBagOfWordsEmbedder().Set("q", []float32{1, 0})
	for i, s := range sents {
		emb.Set(s, []float32{0, 1})
		switch i {
		case 1:
			emb.Set(s, []float32{1, 0})
		case 4:
			emb.Set(s, []float32{0.9, 0.1})
		case 7:
			emb.Set(s, []float32{0.8, 0.2})
		}
	}
	a := newTestAnswerer(testutils.NewMockGenerator("a"), emb)

	out := a.SelectRelevantSentences(context.Background(), "q", sents, 3)
	require.Equal(t, StatusOK, out.Status)

	// Neighbors of 1, 4 and 7 give nine sentences; the two least similar
	// of the later ones are cut to stay within n+4.
	var want []string
	for _, i := range []int{0, 1, 2, 3, 4, 5, 7} {
		want = append(want, sents[i])
	}
	assert.Equal(t, strings.Join(want, " "), out.Value)
}

func TestSelectRelevantSentences_EmbedFailure(t *testing.T) {
	emb := testutils.NewBagOfWordsEmbedder().SetError(errors.New("embedder down"))
	a := newTestAnswerer(testutils.NewMockGenerator("a"), emb)

	out := a.SelectRelevantSentences(context.Background(), "q", numbered(10), 3)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, strings.Join(numbered(10), " "), out.Value)
}

func TestAnswerSynthesizer_Generate(t *testing.T) {
	gen := testutils.NewMockGenerator("a").SetFallback("Answer: Light is energy.It travels fast.")
	a := newTestAnswerer(gen, testutils.NewBagOfWordsEmbedder())

	out := a.Generate(context.Background(), "What is light?", SplitSentences(photosynthesisText))
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "Light is energy. It travels fast.", out.Value)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Question: What is light?")
	assert.Contains(t, calls[0].Prompt, "Chlorophyll absorbs light energy")
	assert.Equal(t, 1, calls[0].Options.Candidates)
	assert.Equal(t, 250, calls[0].Options.MaxTokens)
	assert.Equal(t, 50, calls[0].Options.MinWords)
}

func TestAnswerSynthesizer_GenerateEmptyAndError(t *testing.T) {
	sents := SplitSentences(photosynthesisText)

	out := newTestAnswerer(testutils.NewMockGenerator("a").SetFallback("   "), testutils.NewBagOfWordsEmbedder()).
		Generate(context.Background(), "What is light?", sents)
	assert.Equal(t, StatusEmpty, out.Status)

	out = newTestAnswerer(testutils.NewMockGenerator("a").SetError(errors.New("quota")), testutils.NewBagOfWordsEmbedder()).
		Generate(context.Background(), "What is light?", sents)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, out.Value)
}

func TestSummarizer(t *testing.T) {
	chunks := []string{"First chunk.", "Second chunk.", "Third chunk."}

	gen := testutils.NewMockGenerator("s").SetFallback("plants grow. they need light.")
	out := NewSummarizer(DefaultConfig(), gen).Summarize(context.Background(), " Plants grow. ", chunks)
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "Plants grow. They need light.", out.Value)
	assert.Equal(t, "summarize: Plants grow.", gen.Calls()[0].Prompt)
	assert.Equal(t, 75, gen.Calls()[0].Options.MinWords)

	out = NewSummarizer(DefaultConfig(), testutils.NewMockGenerator("s")).
		Summarize(context.Background(), "text", chunks)
	assert.Equal(t, StatusEmpty, out.Status)
	assert.Equal(t, "First chunk. Second chunk.", out.Value)

	out = NewSummarizer(DefaultConfig(), testutils.NewMockGenerator("s").SetError(errors.New("quota"))).
		Summarize(context.Background(), "text", chunks[:1])
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "First chunk.", out.Value)
}
