// Package domain holds the value types exchanged between the question
// generation pipeline and its callers. Nothing in this package performs I/O
// or holds state across requests.
package domain

import (
	"fmt"
	"strings"
)

// OptionCount is the number of options on every multiple-choice item.
const OptionCount = 4

// Difficulty labels an emitted item. MCQ items use Easy, Medium and
// Difficult; descriptive items use Medium and Hard.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "Easy"
	DifficultyMedium    Difficulty = "Medium"
	DifficultyDifficult Difficulty = "Difficult"
	DifficultyHard      Difficulty = "Hard"
)

// ContextChunk is a contiguous excerpt of the source text built by merging
// whole sentences.
type ContextChunk struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// KeySegment is a short window of sentences centered on a high-scoring
// sentence, used as input for descriptive questions.
type KeySegment struct {
	Text string `json:"text"`
	// Start and End are sentence indices, End exclusive.
	Start int `json:"start"`
	End   int `json:"end"`
}

// CandidateSource tags where a candidate answer came from.
type CandidateSource string

const (
	SourceKeyphrase CandidateSource = "keyphrase"
	SourceKeyword   CandidateSource = "keyword"
)

// CandidateAnswer names a term an MCQ can be built around.
type CandidateAnswer struct {
	Text   string          `json:"text"`
	Source CandidateSource `json:"source"`
}

// MCQItem is an accepted multiple-choice question.
type MCQItem struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	CorrectIndex  int        `json:"correct_index"`
	Difficulty    Difficulty `json:"difficulty"`
	// Similarity is the highest answer to distractor cosine similarity.
	Similarity float64 `json:"similarity"`
	Context    string  `json:"context"`
}

// Validate checks the structural invariants every emitted MCQ must hold.
// The returned error wraps ErrInvalidItem.
func (m MCQItem) Validate() error {
	verr := NewValidationError("mcq")

	if !strings.HasSuffix(m.Question, "?") {
		verr.AddError("question must end with '?'")
	}
	if len(m.Options) != OptionCount {
		verr.AddError(fmt.Sprintf("expected %d options, got %d", OptionCount, len(m.Options)))
	}

	seen := make(map[string]struct{}, len(m.Options))
	correct := 0
	for _, opt := range m.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if _, dup := seen[key]; dup {
			verr.AddError(fmt.Sprintf("duplicate option %q", opt))
		}
		seen[key] = struct{}{}
		if strings.EqualFold(opt, m.CorrectAnswer) {
			correct++
		}
	}
	if correct != 1 {
		verr.AddError(fmt.Sprintf("correct answer must appear exactly once, found %d", correct))
	}

	if m.CorrectIndex < 0 || m.CorrectIndex >= len(m.Options) {
		verr.AddError(fmt.Sprintf("correct index %d out of range", m.CorrectIndex))
	} else if m.Options[m.CorrectIndex] != m.CorrectAnswer {
		verr.AddError("option at correct index does not match correct answer")
	}

	switch m.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
	default:
		verr.AddError(fmt.Sprintf("unexpected difficulty %q", m.Difficulty))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Distractors returns the options other than the correct answer, in option
// order.
func (m MCQItem) Distractors() []string {
	out := make([]string, 0, len(m.Options))
	for i, opt := range m.Options {
		if i != m.CorrectIndex {
			out = append(out, opt)
		}
	}
	return out
}

// DescriptiveItem is an accepted open-ended question with a reference answer.
type DescriptiveItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// Complexity is in [0, 100].
	Complexity int        `json:"complexity"`
	Difficulty Difficulty `json:"difficulty"`
	Context    string     `json:"context"`
}

// Validate checks the structural invariants of a descriptive item.
func (d DescriptiveItem) Validate() error {
	verr := NewValidationError("descriptive")
	if !strings.HasSuffix(d.Question, "?") {
		verr.AddError("question must end with '?'")
	}
	if strings.TrimSpace(d.Answer) == "" {
		verr.AddError("answer is empty")
	}
	if d.Complexity < 0 || d.Complexity > 100 {
		verr.AddError(fmt.Sprintf("complexity %d out of range", d.Complexity))
	}
	if d.Difficulty != DifficultyMedium && d.Difficulty != DifficultyHard {
		verr.AddError(fmt.Sprintf("unexpected difficulty %q", d.Difficulty))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
