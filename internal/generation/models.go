package generation

import (
	"fmt"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

// Models bundles the shared model handles a pipeline run reads from. The
// handles are safe for concurrent use and never mutated by the pipeline.
type Models struct {
	// Questions writes MCQ and descriptive questions.
	Questions ports.TextGenerator
	// Answers writes descriptive reference answers.
	Answers ports.TextGenerator
	// Summarizer condenses documents. Nil falls back to Answers.
	Summarizer ports.TextGenerator

	Embedder  ports.Embedder
	Annotator ports.Annotator

	// Phrases and Ontology feed the distractor engine and are optional.
	Phrases  ports.PhraseSpace
	Ontology ports.Ontology
}

// Validate checks that every required handle is present.
func (m Models) Validate() error {
	var missing []string
	if m.Questions == nil {
		missing = append(missing, "question generator")
	}
	if m.Answers == nil {
		missing = append(missing, "answer generator")
	}
	if m.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if m.Annotator == nil {
		missing = append(missing, "annotator")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", domain.ErrModelsUnavailable, missing)
	}
	return nil
}

func (m Models) summarizer() ports.TextGenerator {
	if m.Summarizer != nil {
		return m.Summarizer
	}
	return m.Answers
}
