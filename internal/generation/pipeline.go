// Package generation implements the question generation pipeline: text
// segmentation, answer candidate extraction, question synthesis, distractor
// construction, answer synthesis and quality filtering.
package generation

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/logger"
)

// Stage names used in RunStats and logs.
const (
	StageCandidates  = "candidates"
	StageSegments    = "segments"
	StageSummary     = "summary"
	StageQuestion    = "question"
	StageDedup       = "dedup"
	StageDistractors = "distractors"
	StageDifficulty  = "difficulty"
	StageAnswer      = "answer"
	StageQuality     = "quality"
)

// Pipeline-level rejection reasons. QualityGate reasons are recorded as is.
const (
	ReasonUnusableCandidate  = "unusable candidate"
	ReasonDegenerateQuestion = "degenerate question"
	ReasonDuplicate          = "duplicate"
	ReasonDedupFailed        = "duplicate check failed"
	ReasonTooFewDistractors  = "too few distractors"
	ReasonEmptyAnswer        = "empty answer"
	ReasonQualityCheckFailed = "quality check failed"
	ReasonInvalidItem        = "invalid item"
)

const (
	minMCQQuestionWords      = 4
	degenerateQuestionPrefix = "what question"
	hardComplexity           = 60
	poolSizeMultiple         = 2
	poolStrideStep           = 3
	logExcerptWords          = 12
)

// Pipeline turns source text into MCQ and descriptive items. It holds only
// read-only shared state and may serve concurrent Generate calls; each call
// builds its own components around a private random source.
type Pipeline struct {
	cfg    Config
	models Models
	log    *zap.Logger
	tracer trace.Tracer
}

// NewPipeline validates cfg and models and returns a Pipeline.
func NewPipeline(cfg Config, models Models, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := models.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		models: models,
		log:    log,
		tracer: otel.Tracer("question-pipeline"),
	}, nil
}

// Generate runs one request to completion. It fails only when the request
// is invalid, the text is unusable or ctx ends; a run that accepts nothing
// returns an empty result and a nil error.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, span := p.tracer.Start(ctx, "Pipeline.Generate", trace.WithAttributes(
		attribute.Int("request.mcq_count", req.MCQCount),
		attribute.Int("request.descriptive_count", req.DescriptiveCount),
		attribute.Int("request.words", WordCount(req.Text)),
		attribute.Int64("request.seed", seed),
	))
	defer span.End()

	r := p.newRun(req.Text, seed)
	res, err := r.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("result.mcqs", len(res.MCQs)),
		attribute.Int("result.descriptive", len(res.Descriptive)),
		attribute.Int("result.soft_failures", res.Stats.TotalFailures()),
	)
	p.log.Info("generation run finished",
		zap.Int64("seed", seed),
		zap.Int("mcqs", len(res.MCQs)),
		zap.Int("descriptive", len(res.Descriptive)),
		zap.Int("mcq_attempts", res.Stats.MCQAttempts),
		zap.Int("descriptive_attempts", res.Stats.DescriptiveAttempts),
		zap.Int("soft_failures", res.Stats.TotalFailures()))
	return res, nil
}

// run is the per-request state. Nothing in it outlives the request.
type run struct {
	cfg    Config
	models Models
	log    *zap.Logger
	tracer trace.Tracer
	rng    *rand.Rand
	stats  *domain.RunStats

	segmenter   *Segmenter
	extractor   *CandidateExtractor
	questions   *QuestionSynthesizer
	distractors *DistractorEngine
	difficulty  *DifficultyScorer
	answers     *AnswerSynthesizer
	summarizer  *Summarizer
	quality     *QualityGate
	dedup       *DeduplicationFilter

	text      string
	ann       *domain.Annotation
	sentences []string
	chunks    []domain.ContextChunk
	summary   *string
}

func (p *Pipeline) newRun(text string, seed int64) *run {
	rng := rand.New(rand.NewSource(seed))
	cfg, m := p.cfg, p.models
	log := p.log.With(zap.Int64("seed", seed))
	return &run{
		cfg:         cfg,
		models:      m,
		log:         log,
		tracer:      p.tracer,
		rng:         rng,
		stats:       domain.NewRunStats(),
		segmenter:   NewSegmenter(cfg, m.Embedder, rng, log.Named("segmenter")),
		extractor:   NewCandidateExtractor(cfg, log.Named("candidates")),
		questions:   NewQuestionSynthesizer(cfg, m.Questions, m.Annotator, rng, log.Named("questions")),
		distractors: NewDistractorEngine(cfg, m.Phrases, m.Ontology, m.Embedder, m.Annotator, log.Named("distractors")),
		difficulty:  NewDifficultyScorer(m.Embedder),
		answers:     NewAnswerSynthesizer(cfg, m.Answers, m.Embedder, rng, log.Named("answers")),
		summarizer:  NewSummarizer(cfg, m.summarizer()),
		quality:     NewQualityGate(cfg.Quality, m.Embedder),
		dedup:       NewDeduplicationFilter(cfg.DuplicateThreshold, m.Embedder),
		text:        text,
	}
}

func (r *run) execute(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	ann, err := r.models.Annotator.Annotate(ctx, r.text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: annotate input: %w", domain.ErrModelsUnavailable, err)
	}
	r.ann = ann
	r.sentences = ann.Sentences
	if len(r.sentences) == 0 {
		r.sentences = SplitSentences(r.text)
	}
	r.chunks = r.segmenter.Chunk(r.sentences)
	if len(r.chunks) == 0 {
		return nil, domain.ErrUnusableInput
	}

	res := &domain.GenerationResult{Stats: r.stats}
	if req.MCQCount > 0 {
		if res.MCQs, err = r.mcqLoop(ctx, req.MCQCount); err != nil {
			return nil, err
		}
	}
	if req.DescriptiveCount > 0 {
		if res.Descriptive, err = r.descriptiveLoop(ctx, req.DescriptiveCount); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// summaryText computes the document summary on first use.
func (r *run) summaryText(ctx context.Context) string {
	if r.summary == nil {
		texts := make([]string, len(r.chunks))
		for i, c := range r.chunks {
			texts[i] = c.Text
		}
		out := r.summarizer.Summarize(ctx, r.text, texts)
		out.note(r.stats, r.log, StageSummary, "")
		r.summary = &out.Value
	}
	return *r.summary
}

// contextFor returns the first chunk mentioning answer, or the summary.
func (r *run) contextFor(ctx context.Context, answer string) string {
	for _, c := range r.chunks {
		if ContainsFold(c.Text, answer) {
			return c.Text
		}
	}
	return r.summaryText(ctx)
}

// answerPool returns the shuffled MCQ answer candidates. Frequent keywords
// stand in when extraction finds nothing.
func (r *run) answerPool() []domain.CandidateAnswer {
	out := r.extractor.Extract(r.ann)
	out.note(r.stats, r.log, StageCandidates, "")
	pool := out.Value
	if len(pool) == 0 {
		for _, kw := range FrequentKeywords(r.text, r.cfg.MaxKeywords) {
			pool = append(pool, domain.CandidateAnswer{Text: kw, Source: domain.SourceKeyword})
		}
	}
	r.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool
}

// mcqLoop visits each candidate at most once and stops at target.
func (r *run) mcqLoop(ctx context.Context, target int) ([]domain.MCQItem, error) {
	ctx, span := r.tracer.Start(ctx, "Pipeline.mcqLoop")
	defer span.End()

	pool := r.answerPool()
	span.SetAttributes(attribute.Int("pool.size", len(pool)))

	var (
		items    []domain.MCQItem
		accepted []string
	)
	for _, cand := range pool {
		if len(items) >= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.stats.MCQAttempts++

		item, reason := r.buildMCQ(ctx, cand.Text, accepted)
		if reason != "" {
			r.stats.Reject(reason)
			r.log.Debug("mcq candidate rejected", zap.String("answer", cand.Text), zap.String("reason", reason))
			continue
		}
		items = append(items, item)
		accepted = append(accepted, item.Question)
	}
	return items, nil
}

// buildMCQ assembles one item for answer. A non-empty reason means the
// candidate was skipped.
func (r *run) buildMCQ(ctx context.Context, answer string, accepted []string) (domain.MCQItem, string) {
	if !UsableCandidate(answer) {
		return domain.MCQItem{}, ReasonUnusableCandidate
	}
	passage := r.contextFor(ctx, answer)

	q := r.questions.ForAnswer(ctx, passage, answer)
	q.note(r.stats, r.log, StageQuestion, answer)
	question := q.Value
	if question == "" || WordCount(question) < minMCQQuestionWords ||
		strings.HasPrefix(Fold(question), degenerateQuestionPrefix) {
		return domain.MCQItem{}, ReasonDegenerateQuestion
	}
	if reason := r.checkDuplicate(ctx, question, accepted); reason != "" {
		return domain.MCQItem{}, reason
	}

	d := r.distractors.Build(ctx, answer, passage)
	d.note(r.stats, r.log, StageDistractors, answer)
	if len(d.Value) < distractorCount {
		return domain.MCQItem{}, ReasonTooFewDistractors
	}
	distractors := d.Value[:distractorCount]

	rating := r.difficulty.Score(ctx, answer, distractors)
	rating.note(r.stats, r.log, StageDifficulty, answer)

	options := append([]string{answer}, distractors...)
	r.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	item := domain.MCQItem{
		Question:      question,
		Options:       options,
		CorrectAnswer: answer,
		CorrectIndex:  slices.Index(options, answer),
		Difficulty:    rating.Value.Difficulty,
		Similarity:    rating.Value.Similarity,
		Context:       passage,
	}
	if err := item.Validate(); err != nil {
		r.log.Warn("assembled mcq failed validation", zap.Error(err))
		return domain.MCQItem{}, ReasonInvalidItem
	}
	return item, ""
}

func (r *run) checkDuplicate(ctx context.Context, question string, accepted []string) string {
	dup, err := r.dedup.IsDuplicate(ctx, question, accepted)
	if err != nil {
		Failed(false, err).note(r.stats, r.log, StageDedup, question)
		return ReasonDedupFailed
	}
	if dup {
		return ReasonDuplicate
	}
	return ""
}

// segmentPool returns at least 2*target shuffled segments when the document
// allows: ranked key segments, then unused chunks, then stride windows.
func (r *run) segmentPool(ctx context.Context, target int) []string {
	keywords := r.extractor.Keywords(r.ann, r.text)
	segs := r.segmenter.KeySegments(ctx, r.sentences, keywords, r.cfg.SegmentLimit)
	segs.note(r.stats, r.log, StageSegments, "")

	want := poolSizeMultiple * target
	pool := make([]string, 0, max(want, len(segs.Value)))
	for _, s := range segs.Value {
		pool = append(pool, s.Text)
	}
	for _, c := range r.chunks {
		if len(pool) >= want {
			break
		}
		if !slices.Contains(pool, c.Text) {
			pool = append(pool, c.Text)
		}
	}
	if len(pool) < want {
		for _, w := range r.segmenter.StrideWindows(r.sentences, poolStrideStep) {
			if len(pool) >= want {
				break
			}
			if !slices.Contains(pool, w.Text) {
				pool = append(pool, w.Text)
			}
		}
	}
	r.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool
}

// descriptiveLoop visits each pooled segment at most once, then makes a
// bounded number of extra attempts against the summary if still short.
func (r *run) descriptiveLoop(ctx context.Context, target int) ([]domain.DescriptiveItem, error) {
	ctx, span := r.tracer.Start(ctx, "Pipeline.descriptiveLoop")
	defer span.End()

	pool := r.segmentPool(ctx, target)
	span.SetAttributes(attribute.Int("pool.size", len(pool)))

	var (
		items    []domain.DescriptiveItem
		accepted []string
	)
	try := func(segment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stats.DescriptiveAttempts++
		item, reason := r.buildDescriptive(ctx, segment, accepted)
		if reason != "" {
			r.stats.Reject(reason)
			r.log.Debug("descriptive segment rejected",
				zap.String("segment", logger.Excerpt(segment, logExcerptWords)), zap.String("reason", reason))
			return nil
		}
		items = append(items, item)
		accepted = append(accepted, item.Question)
		return nil
	}

	for _, seg := range pool {
		if len(items) >= target {
			break
		}
		if err := try(seg); err != nil {
			return nil, err
		}
	}

	if len(items) < target {
		extra := min(r.cfg.SupplementaryAttempts, target-len(items))
		summary := r.summaryText(ctx)
		for i := 0; i < extra && summary != ""; i++ {
			if err := try(summary); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// buildDescriptive assembles one item from segment. The answer is written
// against the whole document.
func (r *run) buildDescriptive(ctx context.Context, segment string, accepted []string) (domain.DescriptiveItem, string) {
	q := r.questions.ForSegment(ctx, segment)
	q.note(r.stats, r.log, StageQuestion, logger.Excerpt(segment, logExcerptWords))
	question := q.Value
	if question == "" {
		return domain.DescriptiveItem{}, ReasonDegenerateQuestion
	}
	if reason := r.checkDuplicate(ctx, question, accepted); reason != "" {
		return domain.DescriptiveItem{}, reason
	}

	a := r.answers.Generate(ctx, question, r.sentences)
	a.note(r.stats, r.log, StageAnswer, question)
	answer := a.Value
	if answer == "" {
		return domain.DescriptiveItem{}, ReasonEmptyAnswer
	}

	verdict, err := r.quality.Assess(ctx, question, answer, r.text)
	if err != nil {
		Failed(verdict, err).note(r.stats, r.log, StageQuality, question)
		return domain.DescriptiveItem{}, ReasonQualityCheckFailed
	}
	if !verdict.Accepted {
		return domain.DescriptiveItem{}, verdict.Reason
	}

	complexity := Complexity(answer)
	difficulty := domain.DifficultyMedium
	if complexity >= hardComplexity {
		difficulty = domain.DifficultyHard
	}
	item := domain.DescriptiveItem{
		Question:   question,
		Answer:     answer,
		Complexity: complexity,
		Difficulty: difficulty,
		Context:    segment,
	}
	if err := item.Validate(); err != nil {
		r.log.Warn("assembled descriptive item failed validation", zap.Error(err))
		return domain.DescriptiveItem{}, ReasonInvalidItem
	}
	return item, ""
}
