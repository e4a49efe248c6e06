package generation

import (
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Hello World", Capitalize("hello World"))
	assert.Equal(t, "ÉCole", Capitalize("éCole"))
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "42 apples", Capitalize("42 apples"))
}

func TestTitleCaseAndFold(t *testing.T) {
	assert.Equal(t, "Machine Learning", TitleCase("machine learning"))
	assert.Equal(t, "photosynthesis", Fold("  PhotoSynthesis "))
}

func TestEchoesInstruction(t *testing.T) {
	tests := []struct {
		q    string
		echo bool
	}{
		{"What question has the answer light?", true},
		{"Generate a specific question for this context", true},
		{"Which question is asked here?", true},
		{"What is the question for this answer?", true},
		{"Which pigment absorbs sunlight in leaves?", false},
		{"What converts light into chemical energy?", false},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			assert.Equal(t, tt.echo, EchoesInstruction(tt.q))
		})
	}
}

func TestQuestionCleanup(t *testing.T) {
	assert.Equal(t, "What is light?", StripQuestionPrefix("question: What is light?"))
	assert.Equal(t, "What is light?", StripQuestionPrefix("Question: What is light?"))

	assert.Equal(t, "What do plants need?",
		StripImperative("Generate a question about plants: What do plants need?"))
	assert.Equal(t, "What do plants need?", StripImperative("What do plants need?"))

	assert.Equal(t, "What is light?", AsQuestion("what is light"))
	assert.Equal(t, "What is light?", AsQuestion("  What is light?  "))
	assert.Equal(t, "", AsQuestion("   "))
}

func TestAsQuestionProperty(t *testing.T) {
	f := func(s string) bool {
		q := AsQuestion(s)
		if strings.TrimSpace(s) == "" {
			return q == ""
		}
		return strings.HasSuffix(q, "?")
	}
	assert.NoError(t, quick.Check(f, nil))
}

func TestLongestByWords(t *testing.T) {
	assert.Equal(t, "one two three", LongestByWords([]string{"one", "one two three", "four five six"}))
	assert.Equal(t, "", LongestByWords(nil))
}

func TestFallbackMCQQuestion(t *testing.T) {
	tests := []struct {
		answer   string
		isPerson bool
		want     string
	}{
		{"Marie Curie", true, "Who is Marie Curie?"},
		{"plants", false, "What are plants?"},
		{"glass", false, "What is glass?"},
		{"energy", false, "What is energy?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackMCQQuestion(tt.answer, tt.isPerson))
	}
}

func TestCleanAnswer(t *testing.T) {
	assert.Equal(t, "Plants absorb light Energy quickly",
		CleanAnswer("Answer: Plants absorb lightEnergy quickly"))
	assert.Equal(t, "Plants grow. They need light.", CleanAnswer("Plants grow.They need light."))
	assert.Equal(t, "Plants grow.", CapitalizeSentences("plants grow."))
}

func TestCountJoinedWords(t *testing.T) {
	assert.Equal(t, 0, CountJoinedWords("Plants grow in Spring"))
	assert.Equal(t, 2, CountJoinedWords("plantsGrow inSpring"))
}

func TestUsableCandidate(t *testing.T) {
	assert.False(t, UsableCandidate("a"))
	assert.False(t, UsableCandidate("?!"))
	assert.False(t, UsableCandidate("  "))
	assert.True(t, UsableCandidate("AI"))
	assert.True(t, IsPunctuationOnly("--"))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"Plants need light.", "Water helps too."},
		SplitSentences("Plants need light. Water helps too."))
	assert.Empty(t, SplitSentences("   "))
	assert.Equal(t, []string{"One.", "Two?", "Three"}, naiveSentences("One. Two? Three"))
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, 12, Complexity("Plants need light. Water helps too."))
	assert.Equal(t, 0, Complexity(""))

	long := strings.TrimSpace(strings.Repeat("word ", 60)) + "."
	assert.Equal(t, 100, Complexity(long))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Plants use Chlorophyll.", "chlorophyll"))
	assert.False(t, ContainsFold("Plants use light.", "water"))
}

func TestIsStopword(t *testing.T) {
	assert.True(t, IsStopword("the"))
	assert.True(t, IsStopword("The"))
	assert.False(t, IsStopword("photosynthesis"))
}
