package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		subject string
		err     error
		wantMsg string
	}{
		{
			name:    "distractor failure",
			stage:   "distractors",
			subject: "Photosynthesis",
			err:     errors.New("embedding failed"),
			wantMsg: `stage error: stage=distractors, subject="Photosynthesis", err=embedding failed`,
		},
		{
			name:    "wrapped sentinel",
			stage:   "keyphrases",
			subject: "",
			err:     ErrUnusableInput,
			wantMsg: `stage error: stage=keyphrases, subject="", err=no valid content to process for question generation`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStageError(tt.stage, tt.subject, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.stage, err.Stage)
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("mcq")
		err.AddError("question must end with '?'")

		assert.Equal(t, "validation error for mcq: question must end with '?'", err.Error())
		assert.True(t, err.HasErrors())
		assert.Len(t, err.Errors, 1)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("request")
		err.AddError("a")
		err.AddError("b")

		assert.Equal(t, "validation errors for request: [a b]", err.Error())
	})

	t.Run("matches ErrInvalidItem", func(t *testing.T) {
		err := NewValidationError("mcq")
		err.AddError("bad")

		wrapped := fmt.Errorf("assemble: %w", err)
		assert.ErrorIs(t, wrapped, ErrInvalidItem)

		var verr *ValidationError
		assert.True(t, errors.As(wrapped, &verr))
	})

	t.Run("empty", func(t *testing.T) {
		assert.False(t, NewValidationError("x").HasErrors())
	})
}
