package application

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-qgen/infrastructure/cache"
	"github.com/ahrav/go-qgen/infrastructure/embedding"
	"github.com/ahrav/go-qgen/infrastructure/lexicon"
	"github.com/ahrav/go-qgen/infrastructure/llm"
	"github.com/ahrav/go-qgen/infrastructure/nlp"
	"github.com/ahrav/go-qgen/internal/generation"
	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

// tracerName labels spans emitted around LLM requests.
const tracerName = "question-generator"

// BreakerMetrics is implemented by collectors that can also report circuit
// breaker state per provider.
type BreakerMetrics interface {
	CircuitBreaker(provider string) llm.CircuitBreakerMetrics
}

// Dependencies are the process-wide handles a ModelLoader wires in.
type Dependencies struct {
	// Getenv looks up secrets. Nil uses os.Getenv.
	Getenv func(string) string
	// Metrics receives LLM and cache metrics. Optional.
	Metrics ports.MetricsCollector
	// Redis backs the embedding cache when Cache.Kind is "redis".
	Redis redis.UniversalClient
	Log   *zap.Logger
}

func (d Dependencies) getenv(key string) string {
	if d.Getenv == nil {
		return os.Getenv(key)
	}
	return d.Getenv(key)
}

// NewModelLoader returns a loader that builds every model named by cfg.
func NewModelLoader(cfg Config, deps Dependencies) ModelLoader {
	log := logger.OrNop(deps.Log)
	return func(ctx context.Context) (generation.Models, error) {
		reg, err := newLLMRegistry(cfg, deps)
		if err != nil {
			return generation.Models{}, err
		}

		var models generation.Models
		if models.Questions, err = generator(reg, cfg.Models.Questions); err != nil {
			return generation.Models{}, err
		}
		if models.Answers, err = generator(reg, cfg.Models.Answers); err != nil {
			return generation.Models{}, err
		}
		if cfg.Models.Summarizer != "" {
			if models.Summarizer, err = generator(reg, cfg.Models.Summarizer); err != nil {
				return generation.Models{}, err
			}
		}

		if models.Embedder, err = newEmbedder(cfg, reg, deps); err != nil {
			return generation.Models{}, err
		}
		models.Annotator = nlp.NewProseAnnotator(log)

		if path := cfg.Lexicon.VectorsPath; path != "" {
			table, err := lexicon.LoadVectorTable(path)
			if err != nil {
				return generation.Models{}, fmt.Errorf("phrase space: %w", err)
			}
			log.Info("phrase space loaded", zap.String("path", path), zap.Int("rows", table.Len()))
			models.Phrases = table
		}
		if models.Ontology, err = newOntology(ctx, cfg.Lexicon, deps); err != nil {
			return generation.Models{}, err
		}
		if models.Phrases == nil && models.Ontology == nil {
			log.Info("no phrase space or ontology configured; distractors come from the passage only")
		}
		return models, nil
	}
}

func generator(reg *llm.Registry, spec string) (ports.TextGenerator, error) {
	g, err := reg.GetClient(spec)
	if err != nil {
		return nil, fmt.Errorf("text generator %q: %w", spec, err)
	}
	return g, nil
}

// newLLMRegistry gives every provider its own breaker and rate limiter,
// wrapped as tracing, metrics, retry, breaker, rate limit, timeout from
// the outside in.
func newLLMRegistry(cfg Config, deps Dependencies) (*llm.Registry, error) {
	providers := make(map[string]llm.ProviderConfig, len(llm.DefaultProviders))
	for name, pc := range llm.DefaultProviders {
		var mws []llm.Middleware
		if deps.Metrics != nil {
			mws = append(mws, llm.MetricsMiddleware(name, deps.Metrics))
		}
		mws = append(mws, llm.RetryMiddleware(llm.RetryConfig{
			MaxRetries: cfg.LLM.MaxRetries,
			BaseDelay:  cfg.LLM.BaseDelay,
			MaxDelay:   cfg.LLM.MaxDelay,
		}))
		if bm, ok := deps.Metrics.(BreakerMetrics); ok {
			mws = append(mws, llm.CircuitBreakerMiddlewareWithMetrics(cfg.LLM.BreakerFailures, cfg.LLM.BreakerCooldown, bm.CircuitBreaker(name)))
		} else {
			mws = append(mws, llm.CircuitBreakerMiddleware(cfg.LLM.BreakerFailures, cfg.LLM.BreakerCooldown))
		}
		if cfg.LLM.RateLimit > 0 {
			mws = append(mws, llm.RateLimitMiddleware(rate.Limit(cfg.LLM.RateLimit), cfg.LLM.Burst))
		}
		if cfg.LLM.Timeout > 0 {
			mws = append(mws, llm.TimeoutMiddleware(cfg.LLM.Timeout))
		}
		pc.Middleware = mws
		providers[name] = pc
	}

	return llm.NewRegistry(llm.RegistryConfig{
		Providers:         providers,
		DefaultProvider:   "openai",
		DefaultTimeout:    cfg.LLM.Timeout,
		DefaultMiddleware: []llm.Middleware{llm.TracingMiddleware(tracerName)},
		SystemPrompt:      cfg.Models.SystemPrompt,
		Getenv:            deps.getenv,
	})
}

func newEmbedder(cfg Config, reg *llm.Registry, deps Dependencies) (ports.Embedder, error) {
	var (
		base  ports.Embedder
		model string
	)
	switch cfg.Models.Embedder.Kind {
	case "hashing":
		dim := cfg.Models.Embedder.Dimension
		if dim == 0 {
			dim = embedding.DefaultDimension
		}
		h := embedding.NewHashEmbedder(dim)
		base, model = h, fmt.Sprintf("%s-%d", h.Model(), dim)
	default:
		model = cfg.Models.Embedder.Model
		if model == "" {
			model = llm.OpenAIDefaultEmbeddingModel
		}
		e, err := reg.Embedder(model)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		base = e
	}

	opts := []cache.EmbedderOption{
		cache.WithTTL(cfg.Cache.EmbeddingTTL),
		cache.WithLogger(deps.Log),
	}
	if deps.Metrics != nil {
		opts = append(opts, cache.WithMetrics(deps.Metrics))
	}

	switch cfg.Cache.Kind {
	case "memory":
		return cache.NewCachedEmbedder(base, cache.NewMemoryStore(), model, opts...), nil
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("embedding cache: redis client required")
		}
		store := cache.NewRedisStore(deps.Redis, cfg.Cache.Prefix)
		return cache.NewCachedEmbedder(base, store, model, opts...), nil
	default:
		return base, nil
	}
}

func newOntology(ctx context.Context, cfg LexiconConfig, deps Dependencies) (ports.Ontology, error) {
	switch cfg.Ontology {
	case "file":
		o, err := lexicon.LoadMemoryOntology(cfg.OntologyPath)
		if err != nil {
			return nil, fmt.Errorf("ontology: %w", err)
		}
		return o, nil
	case "neo4j":
		o, err := lexicon.NewNeo4jOntology(ctx, lexicon.Neo4jConfig{
			URI:      deps.getenv(cfg.Neo4j.URIEnv),
			User:     deps.getenv(cfg.Neo4j.UserEnv),
			Password: deps.getenv(cfg.Neo4j.PasswordEnv),
			Database: cfg.Neo4j.Database,
			Timeout:  cfg.Neo4j.Timeout,
		}, deps.Log)
		if err != nil {
			return nil, fmt.Errorf("ontology: %w", err)
		}
		return o, nil
	default:
		return nil, nil
	}
}
