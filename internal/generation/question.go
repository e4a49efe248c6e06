package generation

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/ports"
)

var answerPromptTemplates = []string{
	"context: %s answer: %s Generate a question for this answer.",
	"Based on this context: %s Create a question whose answer is: %s",
	"From the text: %s Generate a question that has the answer: %s",
}

var segmentPromptTemplates = []string{
	"generate an educational question based on this text: %s",
	"create a factual question that tests knowledge from this text: %s",
	"form a clear question about an important concept in this text: %s",
	"ask a question that would help someone understand this material: %s",
	"generate a question that assesses understanding of this content: %s",
}

const (
	questionMaxTokens      = 100
	minQuestionChars       = 10
	genericSegmentQuestion = "What is the main concept discussed in this context?"
)

// QuestionSynthesizer turns a context, and optionally a target answer, into a
// question.
type QuestionSynthesizer struct {
	cfg       Config
	gen       ports.TextGenerator
	annotator ports.Annotator
	rng       *rand.Rand
	log       *zap.Logger
}

// NewQuestionSynthesizer creates a QuestionSynthesizer.
func NewQuestionSynthesizer(
	cfg Config,
	gen ports.TextGenerator,
	annotator ports.Annotator,
	rng *rand.Rand,
	log *zap.Logger,
) *QuestionSynthesizer {
	return &QuestionSynthesizer{cfg: cfg, gen: gen, annotator: annotator, rng: rng, log: log}
}

// ForAnswer asks for a question whose answer is answer, cycling through the
// prompt templates for up to MaxAttempts attempts. When no attempt yields an
// acceptable question it falls back to a template built from the answer.
// The value is always a usable question unless ctx is done.
func (q *QuestionSynthesizer) ForAnswer(ctx context.Context, passage, answer string) Outcome[string] {
	var lastErr error
	for attempt := 0; attempt < q.cfg.MaxAttempts; attempt++ {
		prompt := fmt.Sprintf(answerPromptTemplates[attempt%len(answerPromptTemplates)], passage, answer)
		cands, err := q.gen.Generate(ctx, prompt, ports.GenerationOptions{
			Candidates: q.cfg.QuestionCandidates,
			MaxTokens:  questionMaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Failed("", ctx.Err())
			}
			lastErr = err
			q.log.Debug("question attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if best := pickAnswerQuestion(cands); best != "" {
			return OK(best)
		}
	}

	fallback := FallbackMCQQuestion(answer, q.isPerson(ctx, answer))
	if lastErr != nil {
		return Failed(fallback, lastErr)
	}
	return OK(fallback)
}

// pickAnswerQuestion filters raw completions and returns the longest
// acceptable one, or "" when none qualify.
func pickAnswerQuestion(cands []string) string {
	var kept []string
	for _, c := range cands {
		c = StripQuestionPrefix(c)
		if EchoesInstruction(c) || utf8.RuneCountInString(c) <= minQuestionChars {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return ""
	}
	best := AsQuestion(LongestByWords(kept))
	if !strings.Contains(best, "?") || WordCount(best) <= 3 {
		return ""
	}
	return best
}

func (q *QuestionSynthesizer) isPerson(ctx context.Context, answer string) bool {
	ann, err := q.annotator.Annotate(ctx, answer)
	if err != nil {
		return false
	}
	for _, e := range ann.Entities {
		if e.Type == domain.EntityPerson {
			return true
		}
	}
	return false
}

// ForSegment asks for an open-ended question about segment using one
// randomly chosen template. Without an acceptable completion it falls back
// to the segment's first subject, then its first entity, then a generic
// question.
func (q *QuestionSynthesizer) ForSegment(ctx context.Context, segment string) Outcome[string] {
	prompt := fmt.Sprintf(segmentPromptTemplates[q.rng.Intn(len(segmentPromptTemplates))], segment)
	cands, err := q.gen.Generate(ctx, prompt, ports.GenerationOptions{
		Candidates: q.cfg.QuestionCandidates,
		MaxTokens:  questionMaxTokens,
	})
	if err != nil && ctx.Err() != nil {
		return Failed("", ctx.Err())
	}
	if err == nil {
		if best := pickSegmentQuestion(cands); best != "" {
			return OK(best)
		}
	}

	fallback := q.segmentFallback(ctx, segment)
	if err != nil {
		return Failed(fallback, err)
	}
	return OK(fallback)
}

func pickSegmentQuestion(cands []string) string {
	var kept []string
	for _, c := range cands {
		c = AsQuestion(StripImperative(c))
		if WordCount(c) > 3 && strings.Contains(c, "?") {
			kept = append(kept, c)
		}
	}
	return LongestByWords(kept)
}

func (q *QuestionSynthesizer) segmentFallback(ctx context.Context, segment string) string {
	ann, err := q.annotator.Annotate(ctx, segment)
	if err != nil {
		return genericSegmentQuestion
	}
	if len(ann.Subjects) > 0 {
		return fmt.Sprintf("What is the significance of %s in this context?", ann.Subjects[0])
	}
	if len(ann.Entities) > 0 {
		return fmt.Sprintf("What is %s and why is it important?", ann.Entities[0].Text)
	}
	return genericSegmentQuestion
}
