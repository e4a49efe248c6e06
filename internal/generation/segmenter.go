package generation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

// Segmenter turns a sentence stream into context chunks and ranked key
// segments.
type Segmenter struct {
	cfg      Config
	embedder ports.Embedder
	rng      *rand.Rand
	log      *zap.Logger
}

// NewSegmenter creates a Segmenter. rng drives the random window radius.
func NewSegmenter(cfg Config, embedder ports.Embedder, rng *rand.Rand, log *zap.Logger) *Segmenter {
	return &Segmenter{cfg: cfg, embedder: embedder, rng: rng, log: log}
}

// Chunk drops sentences shorter than MinSentenceWords and greedily packs the
// rest into chunks of at most ChunkWordCap words, flushing whenever the next
// sentence would overflow. A sentence longer than the cap on its own is
// split on word boundaries.
func (s *Segmenter) Chunk(sentences []string) []domain.ContextChunk {
	var (
		chunks []domain.ContextChunk
		cur    []string
		words  int
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, domain.ContextChunk{Text: strings.Join(cur, " "), WordCount: words})
		cur, words = nil, 0
	}

	for _, sent := range sentences {
		n := WordCount(sent)
		if n < s.cfg.MinSentenceWords {
			continue
		}
		for _, piece := range splitOversize(sent, s.cfg.ChunkWordCap) {
			pn := WordCount(piece)
			if words+pn > s.cfg.ChunkWordCap {
				flush()
			}
			cur = append(cur, piece)
			words += pn
		}
	}
	flush()
	return chunks
}

func splitOversize(sent string, limit int) []string {
	fields := strings.Fields(sent)
	if len(fields) <= limit {
		return []string{sent}
	}
	var out []string
	for start := 0; start < len(fields); start += limit {
		end := min(start+limit, len(fields))
		out = append(out, strings.Join(fields[start:end], " "))
	}
	return out
}

type scoredSentence struct {
	idx   int
	score float64
}

// KeySegments ranks sentences by keyword hits plus three times their
// semantic similarity to the joined keywords, then grows a window of one to
// three sentences on each side of every top sentence. Windows that reuse
// more than half their radius in already-taken sentences, or fall outside
// the segment length bounds, are skipped. When fewer than target/2 windows
// survive, fixed three-sentence windows at stride two fill in.
//
// If embedding fails the ranking uses keyword hits alone and the outcome is
// marked failed.
func (s *Segmenter) KeySegments(ctx context.Context, sentences, keywords []string, target int) Outcome[[]domain.KeySegment] {
	if len(sentences) == 0 || target <= 0 {
		return Empty[[]domain.KeySegment](nil)
	}

	semantic, embedErr := s.semanticScores(ctx, sentences, keywords)

	ranked := make([]scoredSentence, len(sentences))
	for i, sent := range sentences {
		hits := 0
		for _, kw := range keywords {
			if ContainsFold(sent, kw) {
				hits++
			}
		}
		ranked[i] = scoredSentence{idx: i, score: float64(hits) + 3*semantic[i]}
	}
	// Equal scores go to the later sentence.
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].idx > ranked[b].idx
	})

	used := make(map[int]bool)
	seen := make(map[string]bool)
	var segments []domain.KeySegment

	for _, r := range ranked {
		if len(segments) >= target {
			break
		}
		if used[r.idx] {
			continue
		}
		radius := s.rng.Intn(3) + 1
		start := max(0, r.idx-radius)
		end := min(len(sentences), r.idx+radius+1)

		overlap := 0
		for i := start; i < end; i++ {
			if used[i] {
				overlap++
			}
		}
		if overlap > radius/2 {
			continue
		}

		text := strings.Join(sentences[start:end], " ")
		if !s.withinBounds(text) {
			continue
		}
		segments = append(segments, domain.KeySegment{Text: text, Start: start, End: end})
		seen[text] = true
		for i := start; i < end; i++ {
			used[i] = true
		}
	}

	if len(segments) < target/2 {
		for _, w := range s.StrideWindows(sentences, 2) {
			if len(segments) >= target {
				break
			}
			if !seen[w.Text] {
				segments = append(segments, w)
				seen[w.Text] = true
			}
		}
	}

	if embedErr != nil {
		return Failed(segments, embedErr)
	}
	if len(segments) == 0 {
		return Empty(segments)
	}
	return OK(segments)
}

// StrideWindows returns every in-bounds window of three consecutive
// sentences, starting every stride sentences.
func (s *Segmenter) StrideWindows(sentences []string, stride int) []domain.KeySegment {
	var out []domain.KeySegment
	for i := 0; i+3 <= len(sentences); i += stride {
		text := strings.Join(sentences[i:i+3], " ")
		if s.withinBounds(text) {
			out = append(out, domain.KeySegment{Text: text, Start: i, End: i + 3})
		}
	}
	return out
}

func (s *Segmenter) withinBounds(text string) bool {
	n := WordCount(text)
	return n >= s.cfg.MinSegmentWords && n <= s.cfg.MaxSegmentWords
}

// semanticScores embeds every sentence and the joined keywords in one call.
// On failure it returns zero scores and the error.
func (s *Segmenter) semanticScores(ctx context.Context, sentences, keywords []string) ([]float64, error) {
	scores := make([]float64, len(sentences))
	if len(keywords) == 0 {
		return scores, nil
	}

	inputs := append(append(make([]string, 0, len(sentences)+1), sentences...), strings.Join(keywords, " "))
	vecs, err := s.embedder.Embed(ctx, inputs)
	if err != nil {
		return scores, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vecs) != len(inputs) {
		return scores, fmt.Errorf("embed sentences: got %d vectors for %d inputs", len(vecs), len(inputs))
	}

	anchor := vecs[len(vecs)-1]
	for i := range sentences {
		scores[i] = Cosine(vecs[i], anchor)
	}
	return scores, nil
}
