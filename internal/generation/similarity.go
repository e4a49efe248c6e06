package generation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Cosine returns the cosine similarity of a and b. Mismatched or zero
// vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MaxCosine returns the highest cosine similarity between v and any of vs,
// or 0 when vs is empty.
func MaxCosine(v []float32, vs [][]float32) float64 {
	best := 0.0
	for i, w := range vs {
		if s := Cosine(v, w); i == 0 || s > best {
			best = s
		}
	}
	return best
}

// LexicalSimilarity is 1 minus the Levenshtein distance normalized by the
// longer string's rune count, compared case-insensitively. Two empty strings
// are identical.
func LexicalSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// MaxLexicalSimilarity returns the highest LexicalSimilarity between s and
// any of set, or 0 when set is empty.
func MaxLexicalSimilarity(set []string, s string) float64 {
	best := 0.0
	for _, t := range set {
		if v := LexicalSimilarity(t, s); v > best {
			best = v
		}
	}
	return best
}

// mmrSelect picks up to k indices of vecs by Maximal Marginal Relevance
// against anchor. The first pick is the most relevant item; each later pick
// maximizes lambda*relevance - (1-lambda)*max similarity to the picks so far.
func mmrSelect(anchor []float32, vecs [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(vecs) == 0 {
		return nil
	}
	if k > len(vecs) {
		k = len(vecs)
	}

	relevance := make([]float64, len(vecs))
	first := 0
	for i, v := range vecs {
		relevance[i] = Cosine(v, anchor)
		if relevance[i] > relevance[first] {
			first = i
		}
	}

	selected := make([]int, 0, k)
	selected = append(selected, first)
	used := make([]bool, len(vecs))
	used[first] = true

	for len(selected) < k {
		bestIdx := -1
		bestVal := math.Inf(-1)
		for i := range vecs {
			if used[i] {
				continue
			}
			redundancy := math.Inf(-1)
			for _, j := range selected {
				if s := Cosine(vecs[i], vecs[j]); s > redundancy {
					redundancy = s
				}
			}
			if val := lambda*relevance[i] - (1-lambda)*redundancy; val > bestVal {
				bestVal = val
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, bestIdx)
	}
	return selected
}
