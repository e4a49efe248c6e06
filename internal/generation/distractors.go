package generation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

// distractorCount is the number of wrong options per MCQ.
const distractorCount = domain.OptionCount - 1

// distractorSenses are the phrase-space categories an answer may be matched
// under.
var distractorSenses = []ports.Sense{
	ports.SenseNoun, ports.SensePerson, ports.SenseProduct, ports.SenseLoc,
	ports.SenseOrg, ports.SenseEvent, ports.SenseNorp, ports.SenseWorkOfArt,
	ports.SenseFac, ports.SenseGPE, ports.SenseNum, ports.SenseFacility,
}

// DistractorEngine builds plausible wrong options for an answer. The phrase
// space and ontology are optional; without them the engine relies on the
// terms found in the local context.
type DistractorEngine struct {
	cfg       Config
	phrases   ports.PhraseSpace
	ontology  ports.Ontology
	embedder  ports.Embedder
	annotator ports.Annotator
	log       *zap.Logger
}

// NewDistractorEngine creates a DistractorEngine. phrases and ontology may
// be nil.
func NewDistractorEngine(
	cfg Config,
	phrases ports.PhraseSpace,
	ontology ports.Ontology,
	embedder ports.Embedder,
	annotator ports.Annotator,
	log *zap.Logger,
) *DistractorEngine {
	return &DistractorEngine{
		cfg:       cfg,
		phrases:   phrases,
		ontology:  ontology,
		embedder:  embedder,
		annotator: annotator,
		log:       log,
	}
}

// Build returns up to three distractors for answer. Candidates come from the
// phrase space and the ontology, widened with same-type entities and then
// nouns from passage when fewer than three were found, and are finally
// ordered by MMR against passage plus the answer.
//
// The result never contains the answer, compared case-insensitively, and
// never repeats a term. A failing source marks the outcome failed but the
// other sources still contribute.
func (d *DistractorEngine) Build(ctx context.Context, answer, passage string) Outcome[[]string] {
	var errs []error

	pool := newTermPool(answer)

	similar, err := d.fromPhraseSpace(ctx, answer, passage)
	if err != nil {
		errs = append(errs, err)
	}
	pool.addAll(similar)

	siblings, err := d.fromOntology(ctx, answer)
	if err != nil {
		errs = append(errs, err)
	}
	pool.addAll(siblings)

	if pool.len() < distractorCount {
		if err := d.widen(ctx, answer, passage, pool); err != nil {
			errs = append(errs, err)
		}
	}

	terms := pool.terms
	if len(terms) > 0 {
		ranked, err := d.rank(ctx, answer, passage, terms)
		if err != nil {
			errs = append(errs, err)
		} else {
			terms = ranked
		}
	}
	if len(terms) > distractorCount {
		terms = terms[:distractorCount]
	}

	if len(errs) > 0 {
		return Failed(terms, errors.Join(errs...))
	}
	if len(terms) == 0 {
		return Empty(terms)
	}
	return OK(terms)
}

// fromPhraseSpace returns neighbors of answer under its best sense. A
// neighbor is kept only when it shares that sense, is not a word of passage
// and stays below the lexical threshold against every term kept so far,
// the answer included.
func (d *DistractorEngine) fromPhraseSpace(ctx context.Context, answer, passage string) ([]string, error) {
	if d.phrases == nil {
		return nil, nil
	}
	key, ok, err := d.phrases.BestSense(ctx, answer, distractorSenses)
	if err != nil {
		return nil, fmt.Errorf("phrase space sense lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}
	neighbors, err := d.phrases.MostSimilar(ctx, key, d.cfg.NeighborCount)
	if err != nil {
		return nil, fmt.Errorf("phrase space neighbors: %w", err)
	}

	contextWords := make(map[string]bool)
	for _, w := range strings.Fields(passage) {
		contextWords[w] = true
	}

	accepted := []string{answer}
	for _, nb := range neighbors {
		if nb.Key.Sense != key.Sense {
			continue
		}
		term := TitleCase(strings.ReplaceAll(nb.Key.Phrase, "_", " "))
		if contextWords[term] || slices.Contains(accepted, term) {
			continue
		}
		if MaxLexicalSimilarity(accepted, term) >= d.cfg.LexicalFilterThreshold {
			continue
		}
		accepted = append(accepted, term)
	}
	return accepted[1:], nil
}

func (d *DistractorEngine) fromOntology(ctx context.Context, answer string) ([]string, error) {
	if d.ontology == nil {
		return nil, nil
	}
	siblings, err := d.ontology.CoHyponyms(ctx, answer)
	if err != nil {
		return nil, fmt.Errorf("ontology co-hyponyms: %w", err)
	}
	out := make([]string, 0, len(siblings))
	for _, s := range siblings {
		out = append(out, TitleCase(strings.ReplaceAll(s, "_", " ")))
	}
	return out, nil
}

// widen tops pool up from passage: first entities sharing a type with the
// answer, then nouns.
func (d *DistractorEngine) widen(ctx context.Context, answer, passage string, pool *termPool) error {
	ann, err := d.annotator.Annotate(ctx, passage)
	if err != nil {
		return fmt.Errorf("annotate context: %w", err)
	}

	labels := make(map[domain.EntityType]bool)
	if t, ok := ann.EntityTypeOf(answer); ok {
		labels[t] = true
	} else if own, err := d.annotator.Annotate(ctx, answer); err == nil {
		for _, e := range own.Entities {
			labels[e.Type] = true
		}
	}

	for _, e := range ann.Entities {
		if pool.len() >= distractorCount {
			return nil
		}
		if labels[e.Type] {
			pool.add(e.Text)
		}
	}
	for _, n := range ann.Nouns() {
		if pool.len() >= distractorCount {
			return nil
		}
		pool.add(n)
	}
	return nil
}

// rank orders terms by MMR against passage plus the capitalized answer and
// keeps the top min(len, MMRPoolSize).
func (d *DistractorEngine) rank(ctx context.Context, answer, passage string, terms []string) ([]string, error) {
	anchorText := passage + " " + Capitalize(answer)
	inputs := append([]string{anchorText}, terms...)
	vecs, err := d.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed distractors: %w", err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("embed distractors: got %d vectors for %d inputs", len(vecs), len(inputs))
	}

	picked := mmrSelect(vecs[0], vecs[1:], min(len(terms), d.cfg.MMRPoolSize), d.cfg.MMRLambda)
	out := make([]string, 0, len(picked))
	for _, i := range picked {
		out = append(out, Capitalize(terms[i]))
	}
	return out, nil
}

// termPool is an insertion-ordered set of terms, case-insensitive, that
// refuses the answer it was built for.
type termPool struct {
	answer string
	seen   map[string]bool
	terms  []string
}

func newTermPool(answer string) *termPool {
	return &termPool{answer: Fold(answer), seen: make(map[string]bool)}
}

func (p *termPool) add(term string) {
	term = strings.TrimSpace(term)
	key := Fold(term)
	if key == "" || key == p.answer || p.seen[key] {
		return
	}
	p.seen[key] = true
	p.terms = append(p.terms, term)
}

func (p *termPool) addAll(terms []string) {
	for _, t := range terms {
		p.add(t)
	}
}

func (p *termPool) len() int { return len(p.terms) }
