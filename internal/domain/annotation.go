package domain

import "strings"

// EntityType classifies a named entity mention.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORG"
	EntityLocation     EntityType = "LOC"
	EntityProduct      EntityType = "PRODUCT"
	EntityEvent        EntityType = "EVENT"
	EntityDate         EntityType = "DATE"
	EntityOther        EntityType = "OTHER"
)

// AnswerEntityTypes are the entity types eligible as MCQ answers.
var AnswerEntityTypes = map[EntityType]bool{
	EntityPerson:       true,
	EntityOrganization: true,
	EntityLocation:     true,
	EntityProduct:      true,
	EntityEvent:        true,
	EntityDate:         true,
}

// Token is a single word or punctuation mark with its Penn Treebank tag.
type Token struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
	// Sentence is the index of the sentence containing the token.
	Sentence int `json:"sentence"`
}

// IsNoun reports whether the token is a common or proper noun.
func (t Token) IsNoun() bool {
	return len(t.Tag) >= 2 && t.Tag[:2] == "NN"
}

// IsProperNoun reports whether the token is a proper noun.
func (t Token) IsProperNoun() bool {
	return t.Tag == "NNP" || t.Tag == "NNPS"
}

// IsAdjective reports whether the token is an adjective.
func (t Token) IsAdjective() bool {
	return len(t.Tag) >= 2 && t.Tag[:2] == "JJ"
}

// IsVerb reports whether the token is a verb.
func (t Token) IsVerb() bool {
	return len(t.Tag) >= 2 && t.Tag[:2] == "VB"
}

// Entity is a named entity mention.
type Entity struct {
	Text string     `json:"text"`
	Type EntityType `json:"type"`
}

// Annotation is the linguistic analysis of a text span.
type Annotation struct {
	Sentences []string `json:"sentences"`
	Tokens    []Token  `json:"tokens"`
	Entities  []Entity `json:"entities"`
	// Subjects holds the grammatical subjects found in the text, in order.
	Subjects []string `json:"subjects"`
}

// EntityTypeOf returns the type of the first entity whose text matches term
// case-insensitively.
func (a *Annotation) EntityTypeOf(term string) (EntityType, bool) {
	if a == nil {
		return "", false
	}
	for _, e := range a.Entities {
		if strings.EqualFold(e.Text, term) {
			return e.Type, true
		}
	}
	return "", false
}

// Nouns returns the noun tokens in document order.
func (a *Annotation) Nouns() []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, t := range a.Tokens {
		if t.IsNoun() {
			out = append(out, t.Text)
		}
	}
	return out
}
