// Package nlp implements ports.Annotator on top of the prose NLP library.
package nlp

import (
	"context"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

const modelName = "prose"

// entityTypes maps prose NER labels onto domain entity types.
var entityTypes = map[string]domain.EntityType{
	"PERSON":  domain.EntityPerson,
	"ORG":     domain.EntityOrganization,
	"GPE":     domain.EntityLocation,
	"LOC":     domain.EntityLocation,
	"PRODUCT": domain.EntityProduct,
	"EVENT":   domain.EntityEvent,
	"DATE":    domain.EntityDate,
}

// ProseAnnotator segments, tags and extracts entities with prose. Subjects
// are approximated as the first noun phrase before the first verb of a sentence.
type ProseAnnotator struct {
	log *zap.Logger
}

// NewProseAnnotator creates a ProseAnnotator.
func NewProseAnnotator(log *zap.Logger) *ProseAnnotator {
	return &ProseAnnotator{log: logger.OrNop(log).Named("annotator")}
}

// Annotate implements ports.Annotator.
func (a *ProseAnnotator) Annotate(ctx context.Context, text string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, ports.NewModelError(modelName, "segment", err)
	}

	ann := &domain.Annotation{}
	seen := make(map[string]bool)
	for _, s := range doc.Sentences() {
		sentence := strings.TrimSpace(s.Text)
		if sentence == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sdoc, err := prose.NewDocument(sentence, prose.WithSegmentation(false))
		if err != nil {
			return nil, ports.NewModelError(modelName, "annotate", err)
		}

		idx := len(ann.Sentences)
		ann.Sentences = append(ann.Sentences, sentence)

		tokens := sdoc.Tokens()
		for _, tok := range tokens {
			ann.Tokens = append(ann.Tokens, domain.Token{Text: tok.Text, Tag: tok.Tag, Sentence: idx})
		}
		for _, ent := range sdoc.Entities() {
			typ, ok := entityTypes[ent.Label]
			if !ok {
				typ = domain.EntityOther
			}
			key := string(typ) + "\x00" + strings.ToLower(ent.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			ann.Entities = append(ann.Entities, domain.Entity{Text: ent.Text, Type: typ})
		}
		if subj := subjectOf(tokens); subj != "" {
			ann.Subjects = append(ann.Subjects, subj)
		}
	}

	a.log.Debug("annotated text",
		zap.Int("sentences", len(ann.Sentences)),
		zap.Int("tokens", len(ann.Tokens)),
		zap.Int("entities", len(ann.Entities)))
	return ann, nil
}

// subjectOf returns the first noun phrase before the first verb. A phrase
// is an optional run of adjectives followed by nouns.
func subjectOf(tokens []prose.Token) string {
	var phrase, head []string
	nouns := 0
	flush := func() {
		if nouns > 0 && head == nil {
			head = phrase
		}
		phrase, nouns = nil, 0
	}
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok.Tag, "VB") || tok.Tag == "MD":
			flush()
			return strings.Join(head, " ")
		case strings.HasPrefix(tok.Tag, "NN"):
			phrase = append(phrase, tok.Text)
			nouns++
		case strings.HasPrefix(tok.Tag, "JJ") && nouns == 0:
			phrase = append(phrase, tok.Text)
		default:
			flush()
		}
	}
	return ""
}

var _ ports.Annotator = (*ProseAnnotator)(nil)
