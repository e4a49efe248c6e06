package lexicon

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MemoryOntology is an in-process taxonomy loaded from YAML.
type MemoryOntology struct {
	synsets []Synset
	byID    map[string]int
	// children maps a hypernym id to its hyponym indexes in file order.
	children map[string][]int
	// senses maps a lemma to the synsets listing it, in file order.
	senses map[string][]int
}

type ontologyFile struct {
	Synsets []Synset `yaml:"synsets" validate:"dive"`
}

// LoadMemoryOntology reads a YAML taxonomy file.
func LoadMemoryOntology(path string) (*MemoryOntology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ontology: %w", err)
	}
	defer f.Close()
	return ReadMemoryOntology(f)
}

// ReadMemoryOntology decodes a taxonomy of the form
//
//	synsets:
//	  - id: dog.n.01
//	    lemmas: [dog, domestic_dog]
//	    hypernyms: [canine.n.02]
//
// File order is sense order: the first synset listing a lemma is its
// primary sense.
func ReadMemoryOntology(r io.Reader) (*MemoryOntology, error) {
	var file ontologyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode ontology: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid ontology: %w", err)
	}
	return NewMemoryOntology(file.Synsets)
}

// NewMemoryOntology indexes synsets. Hypernym references must resolve.
func NewMemoryOntology(synsets []Synset) (*MemoryOntology, error) {
	o := &MemoryOntology{
		synsets:  synsets,
		byID:     make(map[string]int, len(synsets)),
		children: make(map[string][]int),
		senses:   make(map[string][]int),
	}
	for i, s := range synsets {
		if _, dup := o.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate synset %q", s.ID)
		}
		o.byID[s.ID] = i
		for _, l := range s.Lemmas {
			key := lemmaKey(l)
			o.senses[key] = append(o.senses[key], i)
		}
	}
	for i, s := range synsets {
		for _, h := range s.Hypernyms {
			if _, ok := o.byID[h]; !ok {
				return nil, fmt.Errorf("synset %q: unknown hypernym %q", s.ID, h)
			}
			o.children[h] = append(o.children[h], i)
		}
	}
	return o, nil
}

// CoHyponyms implements ports.Ontology.
func (o *MemoryOntology) CoHyponyms(ctx context.Context, term string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := o.senses[lemmaKey(term)]
	if len(idx) == 0 {
		return nil, nil
	}
	primary := o.synsets[idx[0]]
	if len(primary.Hypernyms) == 0 {
		return nil, nil
	}

	kids := o.children[primary.Hypernyms[0]]
	names := make([]string, 0, len(kids))
	for _, k := range kids {
		if k == idx[0] {
			continue
		}
		names = append(names, o.synsets[k].Lemmas[0])
	}
	return siblings(term, names), nil
}

// Synsets returns the loaded synsets in file order.
func (o *MemoryOntology) Synsets() []Synset { return o.synsets }
