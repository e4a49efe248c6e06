package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/generation"
	"github.com/ahrav/go-qgen/internal/logger"
)

// ModelLoader builds the shared model handles. It may be slow and may fail.
type ModelLoader func(ctx context.Context) (generation.Models, error)

// ModelRegistry initializes models lazily on first use. Concurrent first
// callers share one in-flight load. A successful load is kept for the life
// of the registry; a failed one is not, so a later call tries again.
type ModelRegistry struct {
	load ModelLoader
	log  *zap.Logger

	mu     sync.RWMutex
	models *generation.Models

	sf singleflight.Group
}

// NewModelRegistry creates a registry around load.
func NewModelRegistry(load ModelLoader, log *zap.Logger) *ModelRegistry {
	return &ModelRegistry{load: load, log: logger.OrNop(log).Named("models")}
}

// Models returns the loaded models, loading them if needed. Failures wrap
// domain.ErrModelsUnavailable.
func (r *ModelRegistry) Models(ctx context.Context) (generation.Models, error) {
	if m, ok := r.cached(); ok {
		return m, nil
	}

	v, err, shared := r.sf.Do("models", func() (any, error) {
		// Another flight may have finished between the check and Do.
		if m, ok := r.cached(); ok {
			return m, nil
		}

		r.log.Info("loading models")
		m, err := r.load(ctx)
		if err == nil {
			err = m.Validate()
		}
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.models = &m
		r.mu.Unlock()
		r.log.Info("models ready")
		return m, nil
	})
	if err != nil {
		r.log.Warn("model initialization failed", zap.Bool("shared", shared), zap.Error(err))
		if errors.Is(err, domain.ErrModelsUnavailable) {
			return generation.Models{}, err
		}
		return generation.Models{}, fmt.Errorf("%w: %w", domain.ErrModelsUnavailable, err)
	}
	return v.(generation.Models), nil
}

// Ready reports whether models have been loaded.
func (r *ModelRegistry) Ready() bool {
	_, ok := r.cached()
	return ok
}

func (r *ModelRegistry) cached() (generation.Models, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.models == nil {
		return generation.Models{}, false
	}
	return *r.models, true
}
