package generation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
)

// CandidateExtractor gathers answer candidates from an annotated document.
type CandidateExtractor struct {
	cfg Config
	log *zap.Logger
}

// NewCandidateExtractor creates a CandidateExtractor.
func NewCandidateExtractor(cfg Config, log *zap.Logger) *CandidateExtractor {
	return &CandidateExtractor{cfg: cfg, log: log}
}

// Keyphrases ranks keyphrases. A panic inside the ranker is recovered and
// reported as a failed outcome with no phrases.
func (e *CandidateExtractor) Keyphrases(ann *domain.Annotation) (out Outcome[[]string]) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed[[]string](nil, fmt.Errorf("keyphrase ranking panicked: %v", r))
		}
	}()

	phrases := RankKeyphrases(ann, e.cfg.MaxKeyphrases)
	if len(phrases) == 0 {
		return Empty(phrases)
	}
	return OK(phrases)
}

// Keywords returns the ranked keyphrases, or the most frequent content words
// of text when ranking yields nothing.
func (e *CandidateExtractor) Keywords(ann *domain.Annotation, text string) []string {
	if kp := e.Keyphrases(ann); len(kp.Value) > 0 {
		return kp.Value
	}
	return FrequentKeywords(text, e.cfg.MaxKeywords)
}

// Extract returns the union of ranked keyphrases and named entities of the
// answer-eligible types, deduplicated case-insensitively. The outcome is
// failed when keyphrase ranking failed, even if entities were found.
func (e *CandidateExtractor) Extract(ann *domain.Annotation) Outcome[[]domain.CandidateAnswer] {
	kp := e.Keyphrases(ann)

	seen := make(map[string]bool)
	var out []domain.CandidateAnswer
	add := func(text string, src domain.CandidateSource) {
		key := Fold(text)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, domain.CandidateAnswer{Text: text, Source: src})
	}

	for _, p := range kp.Value {
		add(p, domain.SourceKeyphrase)
	}
	if ann != nil {
		for _, ent := range ann.Entities {
			if domain.AnswerEntityTypes[ent.Type] {
				add(ent.Text, domain.CandidateSource(ent.Type))
			}
		}
	}

	if kp.Status == StatusFailed {
		return Failed(out, kp.Err)
	}
	if len(out) == 0 {
		return Empty(out)
	}
	return OK(out)
}
