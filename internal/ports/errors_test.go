package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelError(t *testing.T) {
	err := NewModelError("gpt-4o-mini", "generate", ErrInvalidResponse)
	assert.Equal(t, "gpt-4o-mini generate: invalid response", err.Error())
	assert.ErrorIs(t, err, ErrInvalidResponse)

	var target *ModelError
	assert.True(t, errors.As(fmt.Errorf("question stage: %w", err), &target))
	assert.Equal(t, "generate", target.Operation)
}

func TestModelError_IsRetryable(t *testing.T) {
	tests := []struct {
		base error
		want bool
	}{
		{ErrRateLimited, true},
		{ErrServiceUnavailable, true},
		{ErrTimeout, true},
		{ErrAuthenticationFailed, false},
		{ErrInvalidResponse, false},
		{ErrUnknownTerm, false},
	}
	for _, tt := range tests {
		err := NewModelError("m", "op", fmt.Errorf("wrapped: %w", tt.base))
		assert.Equal(t, tt.want, err.IsRetryable(), "%v", tt.base)
	}
}

func TestCacheError(t *testing.T) {
	err := NewCacheError("emb:abc", "Get", ErrCacheCorrupted)
	assert.Equal(t, `cache Get "emb:abc": cache corrupted`, err.Error())
	assert.ErrorIs(t, err, ErrCacheCorrupted)
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("lexicon.vectors_path", ErrConfigNotFound)
	assert.Equal(t, "config lexicon.vectors_path: configuration not found", err.Error())
	assert.ErrorIs(t, err, ErrConfigNotFound)
}
