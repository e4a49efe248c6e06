// Package lexicon provides the lexical resources the distractor engine
// draws on: a sense-tagged phrase space and a hypernym taxonomy.
package lexicon

import (
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// Synset is one taxonomy node. Lemmas are ordered by frequency and use
// underscores between words.
type Synset struct {
	ID        string   `yaml:"id" validate:"required"`
	Lemmas    []string `yaml:"lemmas" validate:"required,min=1,dive,required"`
	Hypernyms []string `yaml:"hypernyms"`
}

// lemmaKey folds a term into the lemma spelling.
func lemmaKey(term string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(term)), " ", "_")
}

// siblings drops term and repeats from names, keeping order.
func siblings(term string, names []string) []string {
	self := lemmaKey(term)
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := lemmaKey(n)
		if key == "" || key == self || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

var (
	_ ports.Ontology    = (*MemoryOntology)(nil)
	_ ports.Ontology    = (*Neo4jOntology)(nil)
	_ ports.PhraseSpace = (*VectorTable)(nil)
)
