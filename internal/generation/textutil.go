package generation

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/neurosnap/sentences.v1"
	"gopkg.in/neurosnap/sentences.v1/english"
)

// Heuristics applied to model output. Each is a pure function over strings.

var (
	// echoPatterns match questions that parrot the instruction instead of
	// asking about the answer.
	echoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)generate a specific question for`),
		regexp.MustCompile(`(?i)specific question for`),
		regexp.MustCompile(`(?i)question for this answer`),
		regexp.MustCompile(`(?i)what question`),
		regexp.MustCompile(`(?i)which question`),
	}

	imperativeLeadIn = regexp.MustCompile(`(?i)^(generate|create|form|ask|write|make).*?:`)
	answerLeadIn     = regexp.MustCompile(`^(The answer is|Answer:|Based on the context|According to the context)`)
	joinedWords      = regexp.MustCompile(`([a-z])([A-Z])`)
	unspacedPeriod   = regexp.MustCompile(`\.([a-zA-Z])`)
)

// WordCount returns the number of whitespace-separated fields in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Capitalize upper-cases the first rune of s and leaves the rest untouched.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TitleCase upper-cases the first letter of every word. Casers carry state,
// so each call builds its own.
func TitleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Fold lower-cases s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Lower(language.English).String(strings.TrimSpace(s))
}

// IsPunctuationOnly reports whether s has no letters or digits.
func IsPunctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// UsableCandidate reports whether a term can serve as an MCQ answer.
func UsableCandidate(s string) bool {
	s = strings.TrimSpace(s)
	return utf8.RuneCountInString(s) >= 2 && !IsPunctuationOnly(s)
}

// EchoesInstruction reports whether a generated question repeats the
// prompt's own instruction language.
func EchoesInstruction(q string) bool {
	for _, p := range echoPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// StripQuestionPrefix removes "question:" labels a model may emit.
func StripQuestionPrefix(q string) string {
	q = strings.TrimSpace(strings.ReplaceAll(q, "question:", ""))
	return strings.TrimSpace(strings.ReplaceAll(q, "Question:", ""))
}

// StripImperative removes a leading instruction such as "Generate a
// question about X:".
func StripImperative(q string) string {
	return strings.TrimSpace(imperativeLeadIn.ReplaceAllString(q, ""))
}

// AsQuestion forces a trailing question mark and a leading capital.
func AsQuestion(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return q
	}
	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return Capitalize(q)
}

// LongestByWords returns the candidate with the most words. Ties keep the
// earliest candidate.
func LongestByWords(cands []string) string {
	best, bestN := "", -1
	for _, c := range cands {
		if n := WordCount(c); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// FallbackMCQQuestion builds a template question directly from the answer.
func FallbackMCQQuestion(answer string, isPerson bool) string {
	switch {
	case isPerson:
		return "Who is " + answer + "?"
	case strings.HasSuffix(answer, "s") && !strings.HasSuffix(answer, "ss"):
		return "What are " + answer + "?"
	default:
		return "What is " + answer + "?"
	}
}

// CleanAnswer removes boilerplate lead-ins and repairs spacing artifacts in
// a generated answer.
func CleanAnswer(a string) string {
	a = CapitalizeSentences(a)
	a = strings.TrimSpace(answerLeadIn.ReplaceAllString(a, ""))
	a = joinedWords.ReplaceAllString(a, "$1 $2")
	return unspacedPeriod.ReplaceAllString(a, ". $1")
}

// CapitalizeSentences capitalizes the first letter of every sentence.
func CapitalizeSentences(text string) string {
	sents := SplitSentences(text)
	for i, s := range sents {
		sents[i] = Capitalize(s)
	}
	return strings.Join(sents, " ")
}

// CountJoinedWords counts lower-upper letter adjacencies, which indicate
// words glued together by the generator.
func CountJoinedWords(s string) int {
	return len(joinedWords.FindAllStringIndex(s, -1))
}

var (
	splitterOnce sync.Once
	splitter     *sentences.DefaultSentenceTokenizer
	splitterErr  error
)

// SplitSentences segments text into trimmed, non-empty sentences using the
// punkt model for English.
func SplitSentences(text string) []string {
	splitterOnce.Do(func() {
		splitter, splitterErr = english.NewSentenceTokenizer(nil)
	})
	if splitterErr != nil {
		return naiveSentences(text)
	}

	var out []string
	for _, s := range splitter.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// naiveSentences splits after terminal punctuation followed by a space.
func naiveSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n') {
			if t := strings.TrimSpace(text[start : i+1]); t != "" {
				out = append(out, t)
			}
			start = i + 1
		}
	}
	if t := strings.TrimSpace(text[start:]); t != "" {
		out = append(out, t)
	}
	return out
}

// ContainsFold reports whether needle occurs in haystack, ignoring case.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Complexity scores an answer by sentence length and count, capped at 100.
func Complexity(answer string) int {
	sents := SplitSentences(answer)
	if len(sents) == 0 {
		return 0
	}
	words := 0
	for _, s := range sents {
		words += WordCount(s)
	}
	avg := float64(words) / float64(len(sents))
	score := 2*avg + 3*float64(len(sents))
	if score > 100 {
		score = 100
	}
	return int(score)
}
