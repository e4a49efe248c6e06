package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
	"github.com/ahrav/go-qgen/internal/testutils"
)

func newTestEngine(
	phrases ports.PhraseSpace,
	ontology ports.Ontology,
	emb *testutils.BagOfWordsEmbedder,
	ann *testutils.RuleAnnotator,
) *DistractorEngine {
	return NewDistractorEngine(DefaultConfig(), phrases, ontology, emb, ann, zap.NewNop())
}

func assertNoAnswer(t *testing.T, answer string, got []string) {
	t.Helper()
	seen := make(map[string]bool)
	for _, d := range got {
		assert.NotEqual(t, Fold(answer), Fold(d), "distractor repeats the answer")
		assert.False(t, seen[Fold(d)], "duplicate distractor %q", d)
		seen[Fold(d)] = true
	}
}

func TestDistractors_WidensWithContextNouns(t *testing.T) {
	e := newTestEngine(nil, nil, testutils.NewBagOfWordsEmbedder(), photosynthesisAnnotator())

	out := e.Build(context.Background(), "photosynthesis", photosynthesisText)
	require.Equal(t, StatusOK, out.Status)
	require.Len(t, out.Value, 3)
	assertNoAnswer(t, "photosynthesis", out.Value)
	assert.ElementsMatch(t, []string{"Light", "Energy", "Chemical"}, out.Value)
}

func TestDistractors_WidensWithSameTypeEntitiesFirst(t *testing.T) {
	ann := testutils.NewRuleAnnotator().
		Entity("Paris", domain.EntityLocation).
		Entity("London", domain.EntityLocation).
		Entity("Berlin", domain.EntityLocation)
	e := newTestEngine(nil, nil, testutils.NewBagOfWordsEmbedder(), ann)

	out := e.Build(context.Background(), "Paris", "Paris and London and Berlin are capitals.")
	require.Equal(t, StatusOK, out.Status)
	assert.ElementsMatch(t, []string{"London", "Berlin", "Capitals"}, out.Value)
}

func TestDistractors_PhraseSpaceFilters(t *testing.T) {
	phrases := testutils.NewMapPhraseSpace().
		Add("Python", ports.SenseProduct, "java", "javascript", "pythons", "ruby", "perl")
	key := phrases.Keys["python"]
	phrases.Neighbors[key] = append(phrases.Neighbors[key], ports.Neighbor{
		Key:   ports.PhraseKey{Phrase: "boa", Sense: ports.SenseNoun},
		Score: 0.5,
	})
	e := newTestEngine(phrases, nil, testutils.NewBagOfWordsEmbedder(), testutils.NewRuleAnnotator())

	out := e.Build(context.Background(), "Python", "Python and Ruby are languages.")
	require.Equal(t, StatusOK, out.Status)
	// Pythons is too close in spelling, Ruby is a context word and Boa has
	// another sense.
	assert.ElementsMatch(t, []string{"Java", "Javascript", "Perl"}, out.Value)
}

func TestDistractors_FromPhraseSpaceRespectsThreshold(t *testing.T) {
	phrases := testutils.NewMapPhraseSpace().
		Add("machine learning", ports.SenseNoun, "neural_networks", "machine_learnings", "statistics")
	e := newTestEngine(phrases, nil, testutils.NewBagOfWordsEmbedder(), testutils.NewRuleAnnotator())

	got, err := e.fromPhraseSpace(context.Background(), "machine learning", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Neural Networks", "Statistics"}, got)
	for _, term := range got {
		assert.Less(t, LexicalSimilarity("machine learning", term), 0.6)
	}
}

func TestDistractors_OntologyAndAnswerExclusion(t *testing.T) {
	onto := &testutils.MapOntology{Siblings: map[string][]string{
		"oak": {"OAK", "maple", "Maple", "pine", "birch", "red_cedar"},
	}}
	e := newTestEngine(nil, onto, testutils.NewBagOfWordsEmbedder(), testutils.NewRuleAnnotator())

	out := e.Build(context.Background(), "oak", "The oak grows slowly.")
	require.Equal(t, StatusOK, out.Status)
	require.Len(t, out.Value, 3)
	assertNoAnswer(t, "oak", out.Value)
	for _, d := range out.Value {
		assert.Contains(t, []string{"Maple", "Pine", "Birch", "Red Cedar"}, d)
	}
}

func TestDistractors_RankingFailureKeepsPoolOrder(t *testing.T) {
	onto := &testutils.MapOntology{Siblings: map[string][]string{
		"oak": {"maple", "pine", "birch", "cedar"},
	}}
	emb := testutils.NewBagOfWordsEmbedder().SetError(errors.New("embedder down"))
	e := newTestEngine(nil, onto, emb, testutils.NewRuleAnnotator())

	out := e.Build(context.Background(), "oak", "The oak grows slowly.")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, []string{"Maple", "Pine", "Birch"}, out.Value)
}

func TestDistractors_FailingSourceStillContributes(t *testing.T) {
	srcErr := errors.New("vectors unavailable")
	phrases := testutils.NewMapPhraseSpace()
	phrases.Err = srcErr
	onto := &testutils.MapOntology{Siblings: map[string][]string{
		"oak": {"maple", "pine", "birch"},
	}}
	e := newTestEngine(phrases, onto, testutils.NewBagOfWordsEmbedder(), testutils.NewRuleAnnotator())

	out := e.Build(context.Background(), "oak", "The oak grows slowly.")
	assert.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, srcErr)
	assert.ElementsMatch(t, []string{"Maple", "Pine", "Birch"}, out.Value)
}

func TestDistractors_NothingFound(t *testing.T) {
	e := newTestEngine(nil, nil, testutils.NewBagOfWordsEmbedder(), testutils.NewRuleAnnotator())

	out := e.Build(context.Background(), "oak", "")
	assert.Equal(t, StatusEmpty, out.Status)
	assert.Empty(t, out.Value)
}

func TestTermPool(t *testing.T) {
	p := newTermPool("Oak")
	p.addAll([]string{"oak", " Maple ", "maple", "", "Pine"})
	assert.Equal(t, []string{"Maple", "Pine"}, p.terms)
	assert.Equal(t, 2, p.len())
}
