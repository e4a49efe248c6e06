package generation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds every tunable of the pipeline. Zero values are not valid;
// start from DefaultConfig.
type Config struct {
	// MaxAttempts bounds the prompt templates tried per MCQ question.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=10"`
	// QuestionCandidates is the number of completions requested per prompt.
	QuestionCandidates int `yaml:"question_candidates" validate:"min=1,max=20"`

	// MMRLambda trades relevance against diversity when ranking distractors.
	MMRLambda float64 `yaml:"mmr_lambda" validate:"probability"`
	// MMRPoolSize caps how many distractors MMR ranks before truncation.
	MMRPoolSize int `yaml:"mmr_pool_size" validate:"min=3,max=20"`
	// NeighborCount is the number of phrase-space neighbors fetched.
	NeighborCount int `yaml:"neighbor_count" validate:"min=1,max=200"`
	// LexicalFilterThreshold rejects neighbors too close in spelling to a
	// term already accepted.
	LexicalFilterThreshold float64 `yaml:"lexical_filter_threshold" validate:"probability"`

	// DuplicateThreshold is the lexical and semantic similarity above which
	// a question counts as a duplicate.
	DuplicateThreshold float64 `yaml:"duplicate_threshold" validate:"probability"`

	// ChunkWordCap bounds the word count of a context chunk.
	ChunkWordCap int `yaml:"chunk_word_cap" validate:"min=10,max=2000"`
	// MinSentenceWords drops shorter sentences before chunking.
	MinSentenceWords int `yaml:"min_sentence_words" validate:"min=1,max=50"`
	// MinSegmentWords and MaxSegmentWords bound key segment length.
	MinSegmentWords int `yaml:"min_segment_words" validate:"min=1"`
	MaxSegmentWords int `yaml:"max_segment_words" validate:"gtfield=MinSegmentWords"`
	// SegmentLimit caps the number of key segments ranked per document.
	SegmentLimit int `yaml:"segment_limit" validate:"min=1,max=1000"`

	// MaxKeyphrases caps ranked keyphrases taken as candidates.
	MaxKeyphrases int `yaml:"max_keyphrases" validate:"min=1,max=200"`
	// MaxKeywords caps the frequency fallback used when ranking yields nothing.
	MaxKeywords int `yaml:"max_keywords" validate:"min=1,max=200"`

	// SelectedSentences is the number of sentences picked as answer context.
	SelectedSentences int `yaml:"selected_sentences" validate:"min=1,max=100"`
	// AnswerMinWords and AnswerMaxTokens bound generated answers.
	AnswerMinWords  int `yaml:"answer_min_words" validate:"min=0,max=500"`
	AnswerMaxTokens int `yaml:"answer_max_tokens" validate:"min=16,max=4096"`
	// SummaryMinWords and SummaryMaxTokens bound generated summaries.
	SummaryMinWords  int `yaml:"summary_min_words" validate:"min=0,max=500"`
	SummaryMaxTokens int `yaml:"summary_max_tokens" validate:"min=16,max=4096"`

	// SupplementaryAttempts bounds the extra descriptive pass over the summary.
	SupplementaryAttempts int `yaml:"supplementary_attempts" validate:"min=0,max=20"`

	Quality QualityConfig `yaml:"quality"`
}

// QualityConfig holds the acceptance thresholds for descriptive items.
type QualityConfig struct {
	QuestionMinWords       int     `yaml:"question_min_words" validate:"min=0"`
	AnswerMinWords         int     `yaml:"answer_min_words" validate:"min=0"`
	MinRelevance           float64 `yaml:"min_relevance" validate:"min=-1,max=1"`
	MinGrounding           float64 `yaml:"min_grounding" validate:"min=-1,max=1"`
	MaxTokenRepeats        int     `yaml:"max_token_repeats" validate:"min=1"`
	MaxFormattingArtifacts int     `yaml:"max_formatting_artifacts" validate:"min=1"`
	MinCoherence           float64 `yaml:"min_coherence" validate:"min=-1,max=1"`
	CoherenceMinSentences  int     `yaml:"coherence_min_sentences" validate:"min=2"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:            3,
		QuestionCandidates:     5,
		MMRLambda:              0.2,
		MMRPoolSize:            5,
		NeighborCount:          40,
		LexicalFilterThreshold: 0.6,
		DuplicateThreshold:     0.85,
		ChunkWordCap:           200,
		MinSentenceWords:       5,
		MinSegmentWords:        40,
		MaxSegmentWords:        250,
		SegmentLimit:           100,
		MaxKeyphrases:          30,
		MaxKeywords:            15,
		SelectedSentences:      8,
		AnswerMinWords:         50,
		AnswerMaxTokens:        250,
		SummaryMinWords:        75,
		SummaryMaxTokens:       300,
		SupplementaryAttempts:  5,
		Quality:                DefaultQualityConfig(),
	}
}

// DefaultQualityConfig returns the tuned quality thresholds.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		QuestionMinWords:       3,
		AnswerMinWords:         8,
		MinRelevance:           0.15,
		MinGrounding:           0.25,
		MaxTokenRepeats:        10,
		MaxFormattingArtifacts: 4,
		MinCoherence:           0.2,
		CoherenceMinSentences:  3,
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	v := validator.New()
	if err := RegisterValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid generation config: %w", err)
	}
	return nil
}

// RegisterValidators adds the custom tags Config relies on to v.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("probability", validateProbability); err != nil {
		return fmt.Errorf("failed to register probability validator: %w", err)
	}
	return nil
}

// validateProbability accepts floats in [0, 1].
func validateProbability(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f >= 0 && f <= 1
}
