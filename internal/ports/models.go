package ports

import (
	"context"

	"github.com/ahrav/go-qgen/internal/domain"
)

// GenerationOptions tunes a single text generation call.
type GenerationOptions struct {
	// Candidates is the number of alternative completions requested.
	// Values below 1 are treated as 1.
	Candidates int

	// MaxTokens bounds the length of each completion.
	MaxTokens int

	// MinWords asks the model for completions of at least this many words.
	// Backends that cannot enforce it fold it into the prompt.
	MinWords int

	// Temperature controls sampling randomness. Nil uses the backend default.
	Temperature *float64
}

// TextGenerator produces natural-language completions for a prompt.
// Implementations must be safe for concurrent use.
type TextGenerator interface {
	// Generate returns up to opts.Candidates completions. An empty slice with
	// a nil error means the model produced nothing usable.
	Generate(ctx context.Context, prompt string, opts GenerationOptions) ([]string, error)

	// Model returns the identifier of the underlying model.
	Model() string
}

// Embedder maps text spans to dense vectors. Vectors returned for one call
// share a dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Annotator performs sentence splitting, part-of-speech tagging, named
// entity recognition and subject detection.
type Annotator interface {
	Annotate(ctx context.Context, text string) (*domain.Annotation, error)
}

// Sense is a coarse semantic category in a phrase space.
type Sense string

// Sense categories recognized by the distractor engine.
const (
	SenseNoun      Sense = "NOUN"
	SensePerson    Sense = "PERSON"
	SenseProduct   Sense = "PRODUCT"
	SenseLoc       Sense = "LOC"
	SenseOrg       Sense = "ORG"
	SenseEvent     Sense = "EVENT"
	SenseNorp      Sense = "NORP"
	SenseWorkOfArt Sense = "WORK OF ART"
	SenseFac       Sense = "FAC"
	SenseGPE       Sense = "GPE"
	SenseNum       Sense = "NUM"
	SenseFacility  Sense = "FACILITY"
)

// PhraseKey identifies a phrase under one sense. Phrase uses underscores
// between words.
type PhraseKey struct {
	Phrase string
	Sense  Sense
}

// Neighbor is a phrase-space hit with its similarity to the query.
type Neighbor struct {
	Key   PhraseKey
	Score float64
}

// PhraseSpace is a distributional vector space over sense-tagged phrases.
type PhraseSpace interface {
	// BestSense returns the highest-frequency key for term among senses.
	// ok is false when the term is unknown under every sense.
	BestSense(ctx context.Context, term string, senses []Sense) (key PhraseKey, ok bool, err error)

	// MostSimilar returns the n nearest neighbors of key, best first.
	MostSimilar(ctx context.Context, key PhraseKey, n int) ([]Neighbor, error)
}

// Ontology is a lexical taxonomy.
type Ontology interface {
	// CoHyponyms returns the siblings of term under the first hypernym of its
	// first noun sense. The term itself is excluded.
	CoHyponyms(ctx context.Context, term string) ([]string, error)
}
