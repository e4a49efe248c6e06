package testutils

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

// functionWords are tagged DT by RuleAnnotator unless overridden.
var functionWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "by": true, "which": true, "that": true,
	"into": true, "of": true, "and": true, "or": true, "to": true, "in": true,
	"on": true, "for": true, "with": true, "as": true, "at": true, "it": true,
	"its": true, "this": true, "from": true, "what": true, "who": true,
}

// RuleAnnotator is a deterministic ports.Annotator. Sentences end at
// terminal punctuation; words are tagged from Tags, falling back to DT for
// function words and NN for everything else. Entities are found by
// case-insensitive search for the keys of Entities.
type RuleAnnotator struct {
	// Tags maps lower-cased words to Penn Treebank tags.
	Tags map[string]string
	// Entities maps entity surface forms to their types.
	Entities map[string]domain.EntityType

	mu    sync.Mutex
	err   error
	calls int
}

// NewRuleAnnotator creates a RuleAnnotator with no rules.
func NewRuleAnnotator() *RuleAnnotator {
	return &RuleAnnotator{
		Tags:     make(map[string]string),
		Entities: make(map[string]domain.EntityType),
	}
}

// Tag sets the tag for each word.
func (a *RuleAnnotator) Tag(tag string, words ...string) *RuleAnnotator {
	for _, w := range words {
		a.Tags[strings.ToLower(w)] = tag
	}
	return a
}

// Entity registers an entity surface form.
func (a *RuleAnnotator) Entity(text string, typ domain.EntityType) *RuleAnnotator {
	a.Entities[text] = typ
	return a
}

// SetError makes every subsequent call fail with err. Nil clears it.
func (a *RuleAnnotator) SetError(err error) *RuleAnnotator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

// Calls returns the number of Annotate calls made.
func (a *RuleAnnotator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Annotate implements ports.Annotator.
func (a *RuleAnnotator) Annotate(ctx context.Context, text string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.calls++
	err := a.err
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ann := &domain.Annotation{Sentences: SplitSentences(text)}
	for si, sent := range ann.Sentences {
		var subject string
		sawVerb := false
		for _, field := range strings.Fields(sent) {
			word := strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
			if word == "" {
				continue
			}
			tag := a.tagOf(word)
			ann.Tokens = append(ann.Tokens, domain.Token{Text: word, Tag: tag, Sentence: si})
			if last := field[len(field)-1]; last == '.' || last == '?' || last == '!' || last == ',' {
				ann.Tokens = append(ann.Tokens, domain.Token{Text: string(last), Tag: string(last), Sentence: si})
			}
			switch {
			case strings.HasPrefix(tag, "VB"):
				sawVerb = true
			case strings.HasPrefix(tag, "NN") && !sawVerb && subject == "":
				subject = word
			}
		}
		if subject != "" && sawVerb {
			ann.Subjects = append(ann.Subjects, subject)
		}
	}

	lower := strings.ToLower(text)
	for surface, typ := range a.Entities {
		if i := strings.Index(lower, strings.ToLower(surface)); i >= 0 {
			ann.Entities = append(ann.Entities, domain.Entity{Text: text[i : i+len(surface)], Type: typ})
		}
	}
	sortEntities(ann.Entities, lower)
	return ann, nil
}

func (a *RuleAnnotator) tagOf(word string) string {
	lower := strings.ToLower(word)
	if tag, ok := a.Tags[lower]; ok {
		return tag
	}
	if functionWords[lower] {
		return "DT"
	}
	return "NN"
}

// sortEntities orders entities by first mention.
func sortEntities(ents []domain.Entity, lower string) {
	pos := func(e domain.Entity) int { return strings.Index(lower, strings.ToLower(e.Text)) }
	sort.Slice(ents, func(i, j int) bool {
		if pi, pj := pos(ents[i]), pos(ents[j]); pi != pj {
			return pi < pj
		}
		return len(ents[i].Text) > len(ents[j].Text)
	})
}

// SplitSentences splits after '.', '?' or '!' followed by whitespace.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '?' && c != '!' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

var _ ports.Annotator = (*RuleAnnotator)(nil)
