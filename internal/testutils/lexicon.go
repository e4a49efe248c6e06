package testutils

import (
	"context"
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// MapPhraseSpace is an in-memory ports.PhraseSpace.
type MapPhraseSpace struct {
	// Keys maps lower-cased terms to their best-sense key.
	Keys map[string]ports.PhraseKey
	// Neighbors lists the neighbors of each key, best first.
	Neighbors map[ports.PhraseKey][]ports.Neighbor
	// Err, when set, fails every call.
	Err error
}

// NewMapPhraseSpace creates an empty MapPhraseSpace.
func NewMapPhraseSpace() *MapPhraseSpace {
	return &MapPhraseSpace{
		Keys:      make(map[string]ports.PhraseKey),
		Neighbors: make(map[ports.PhraseKey][]ports.Neighbor),
	}
}

// Add registers term under sense with the given neighbors, each assumed to
// share the sense.
func (s *MapPhraseSpace) Add(term string, sense ports.Sense, neighbors ...string) *MapPhraseSpace {
	key := ports.PhraseKey{Phrase: strings.ReplaceAll(strings.ToLower(term), " ", "_"), Sense: sense}
	s.Keys[strings.ToLower(term)] = key
	for i, n := range neighbors {
		s.Neighbors[key] = append(s.Neighbors[key], ports.Neighbor{
			Key:   ports.PhraseKey{Phrase: n, Sense: sense},
			Score: 1 - float64(i)*0.01,
		})
	}
	return s
}

// BestSense implements ports.PhraseSpace.
func (s *MapPhraseSpace) BestSense(_ context.Context, term string, senses []ports.Sense) (ports.PhraseKey, bool, error) {
	if s.Err != nil {
		return ports.PhraseKey{}, false, s.Err
	}
	key, ok := s.Keys[strings.ToLower(term)]
	if !ok {
		return ports.PhraseKey{}, false, nil
	}
	for _, sense := range senses {
		if sense == key.Sense {
			return key, true, nil
		}
	}
	return ports.PhraseKey{}, false, nil
}

// MostSimilar implements ports.PhraseSpace.
func (s *MapPhraseSpace) MostSimilar(_ context.Context, key ports.PhraseKey, n int) ([]ports.Neighbor, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := s.Neighbors[key]
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// MapOntology is an in-memory ports.Ontology.
type MapOntology struct {
	// Siblings maps lower-cased terms to their co-hyponyms.
	Siblings map[string][]string
	// Err, when set, fails every call.
	Err error
}

// CoHyponyms implements ports.Ontology.
func (o *MapOntology) CoHyponyms(_ context.Context, term string) ([]string, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Siblings[strings.ToLower(term)], nil
}

var (
	_ ports.PhraseSpace = (*MapPhraseSpace)(nil)
	_ ports.Ontology    = (*MapOntology)(nil)
)
