package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

// DefaultEmbeddingTTL bounds how long a cached vector lives.
const DefaultEmbeddingTTL = 24 * time.Hour

// MetricEmbeddingCache counts lookups by result ("hit" or "miss").
const MetricEmbeddingCache = "embedding_cache_total"

// EmbedderOption configures a CachedEmbedder.
type EmbedderOption func(*CachedEmbedder)

// WithTTL overrides DefaultEmbeddingTTL.
func WithTTL(ttl time.Duration) EmbedderOption {
	return func(e *CachedEmbedder) { e.ttl = ttl }
}

// WithMetrics reports hit and miss counts to collector.
func WithMetrics(collector ports.MetricsCollector) EmbedderOption {
	return func(e *CachedEmbedder) { e.metrics = collector }
}

// WithLogger sets the logger for cache faults.
func WithLogger(log *zap.Logger) EmbedderOption {
	return func(e *CachedEmbedder) { e.log = logger.OrNop(log).Named("embedding_cache") }
}

// CachedEmbedder stores vectors from next keyed by model and a SHA-256 of
// the text. Cache faults are logged and bypassed. Concurrent requests for
// the same set of misses share one upstream call.
type CachedEmbedder struct {
	next    ports.Embedder
	store   ports.CacheStore
	model   string
	ttl     time.Duration
	metrics ports.MetricsCollector
	log     *zap.Logger
	group   singleflight.Group
}

// NewCachedEmbedder wraps next. model namespaces the keys so vectors from
// different models never mix.
func NewCachedEmbedder(next ports.Embedder, store ports.CacheStore, model string, opts ...EmbedderOption) *CachedEmbedder {
	e := &CachedEmbedder{
		next:  next,
		store: store,
		model: model,
		ttl:   DefaultEmbeddingTTL,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed implements ports.Embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	// pending maps a missing key to the positions waiting on it.
	pending := make(map[string][]int)
	var missKeys []string
	var missTexts []string

	for i, t := range texts {
		keys[i] = e.key(t)
		if waiting, ok := pending[keys[i]]; ok {
			pending[keys[i]] = append(waiting, i)
			continue
		}
		if vec, ok := e.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		pending[keys[i]] = []int{i}
		missKeys = append(missKeys, keys[i])
		missTexts = append(missTexts, t)
	}
	e.count("hit", len(texts)-len(missTexts))
	if len(missTexts) == 0 {
		return out, nil
	}
	e.count("miss", len(missTexts))

	v, err, _ := e.group.Do(flightKey(missKeys), func() (any, error) {
		vecs, err := e.next.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("%w: %d vectors for %d texts", ports.ErrInvalidResponse, len(vecs), len(missTexts))
		}
		for j, vec := range vecs {
			if err := e.store.Set(ctx, missKeys[j], encode(vec), e.ttl); err != nil {
				e.log.Warn("embedding cache write failed", zap.Error(err))
			}
		}
		return vecs, nil
	})
	if err != nil {
		return nil, err
	}

	for j, vec := range v.([][]float32) {
		for _, i := range pending[missKeys[j]] {
			out[i] = vec
		}
	}
	return out, nil
}

func (e *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.Warn("embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	vec, err := decode(raw)
	if err != nil {
		e.log.Warn("dropping corrupt embedding", zap.String("key", key), zap.Error(err))
		_ = e.store.Delete(ctx, key)
		return nil, false
	}
	return vec, true
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.model + ":" + hex.EncodeToString(sum[:])
}

func (e *CachedEmbedder) count(result string, n int) {
	if e.metrics == nil || n == 0 {
		return
	}
	e.metrics.RecordCounter(MetricEmbeddingCache, float64(n), map[string]string{"result": result})
}

func flightKey(keys []string) string {
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decode(raw []byte) ([]float32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ports.ErrCacheCorrupted, len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}

var _ ports.Embedder = (*CachedEmbedder)(nil)
