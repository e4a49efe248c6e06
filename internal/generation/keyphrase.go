package generation

import (
	"math"
	"sort"
	"strings"

	"github.com/ahrav/go-qgen/internal/domain"
)

const (
	textRankDamping    = 0.85
	textRankIterations = 50
	textRankTolerance  = 1e-5
	cooccurrenceWindow = 3
	maxPhraseWords     = 4
)

// bracketTokens are the Penn Treebank escapes for brackets.
var bracketTokens = map[string]bool{
	"-lrb-": true, "-rrb-": true, "-lcb-": true,
	"-rcb-": true, "-lsb-": true, "-rsb-": true,
}

// isContentToken reports whether a token may take part in a keyphrase:
// nouns, proper nouns and adjectives that are not stopwords or punctuation.
func isContentToken(t domain.Token) bool {
	if !t.IsNoun() && !t.IsAdjective() {
		return false
	}
	w := strings.ToLower(t.Text)
	return !bracketTokens[w] && !IsStopword(w) && !IsPunctuationOnly(w)
}

// RankKeyphrases runs TextRank over the annotated tokens and returns up to n
// phrases, best first. Word scores come from PageRank over a co-occurrence
// graph of content words; a phrase is a maximal run of content words inside
// one sentence and scores the mean of its words.
func RankKeyphrases(ann *domain.Annotation, n int) []string {
	if ann == nil || len(ann.Tokens) == 0 || n <= 0 {
		return nil
	}

	toks := ann.Tokens
	content := make([]bool, len(toks))
	for i, t := range toks {
		content[i] = isContentToken(t)
	}

	graph := make(map[string]map[string]float64)
	link := func(a, b string) {
		if a == b {
			return
		}
		if graph[a] == nil {
			graph[a] = make(map[string]float64)
		}
		if graph[b] == nil {
			graph[b] = make(map[string]float64)
		}
		graph[a][b]++
		graph[b][a]++
	}
	for i := range toks {
		if !content[i] {
			continue
		}
		wi := strings.ToLower(toks[i].Text)
		if graph[wi] == nil {
			graph[wi] = make(map[string]float64)
		}
		for j := i + 1; j < len(toks) && j < i+cooccurrenceWindow; j++ {
			if content[j] && toks[j].Sentence == toks[i].Sentence {
				link(wi, strings.ToLower(toks[j].Text))
			}
		}
	}

	scores := pageRank(graph)

	type phrase struct {
		text  string
		score float64
		first int
	}
	byKey := make(map[string]*phrase)
	flush := func(start, end int) {
		for start < end {
			stop := min(end, start+maxPhraseWords)
			words := make([]string, 0, stop-start)
			sum := 0.0
			for k := start; k < stop; k++ {
				words = append(words, toks[k].Text)
				sum += scores[strings.ToLower(toks[k].Text)]
			}
			text := strings.Join(words, " ")
			key := strings.ToLower(text)
			if _, ok := byKey[key]; !ok {
				byKey[key] = &phrase{text: text, score: sum / float64(len(words)), first: start}
			}
			start = stop
		}
	}

	start := -1
	for i := range toks {
		boundary := !content[i] || (start >= 0 && toks[i].Sentence != toks[start].Sentence)
		if boundary && start >= 0 {
			flush(start, i)
			start = -1
		}
		if content[i] && start < 0 {
			start = i
		}
	}
	if start >= 0 {
		flush(start, len(toks))
	}

	phrases := make([]*phrase, 0, len(byKey))
	for _, p := range byKey {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(a, b int) bool {
		if phrases[a].score != phrases[b].score {
			return phrases[a].score > phrases[b].score
		}
		return phrases[a].first < phrases[b].first
	})

	out := make([]string, 0, min(n, len(phrases)))
	for _, p := range phrases {
		if len(out) == n {
			break
		}
		out = append(out, p.text)
	}
	return out
}

// pageRank computes weighted PageRank scores over an undirected graph.
func pageRank(graph map[string]map[string]float64) map[string]float64 {
	nodes := make([]string, 0, len(graph))
	for w := range graph {
		nodes = append(nodes, w)
	}
	sort.Strings(nodes)

	// Neighbors are visited in sorted order so float sums are reproducible.
	adj := make(map[string][]string, len(nodes))
	outWeight := make(map[string]float64, len(nodes))
	for _, w := range nodes {
		for nb := range graph[w] {
			adj[w] = append(adj[w], nb)
		}
		sort.Strings(adj[w])
		for _, nb := range adj[w] {
			outWeight[w] += graph[w][nb]
		}
	}

	scores := make(map[string]float64, len(nodes))
	for _, w := range nodes {
		scores[w] = 1
	}

	for iter := 0; iter < textRankIterations; iter++ {
		delta := 0.0
		next := make(map[string]float64, len(nodes))
		for _, w := range nodes {
			rank := 0.0
			for _, nb := range adj[w] {
				if outWeight[nb] > 0 {
					rank += graph[w][nb] / outWeight[nb] * scores[nb]
				}
			}
			next[w] = (1 - textRankDamping) + textRankDamping*rank
			delta += math.Abs(next[w] - scores[w])
		}
		scores = next
		if delta < textRankTolerance {
			break
		}
	}
	return scores
}

// FrequentKeywords returns up to n of the most frequent lower-cased words
// longer than three characters that are not stopwords. Ties keep first
// occurrence order.
func FrequentKeywords(text string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) <= 3 || IsStopword(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}
