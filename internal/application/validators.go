package application

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-qgen/infrastructure/llm"
	"github.com/ahrav/go-qgen/internal/generation"
)

// modelPattern matches the model half of a "provider/model" spec.
var modelPattern = regexp.MustCompile(`^[A-Za-z0-9\-_\.:]+$`)

// RegisterValidators adds every custom tag used by Config to v.
func RegisterValidators(v *validator.Validate) error {
	if err := generation.RegisterValidators(v); err != nil {
		return err
	}
	if err := v.RegisterValidation("provider", validateProvider); err != nil {
		return fmt.Errorf("failed to register provider validator: %w", err)
	}
	return nil
}

// validateProvider accepts "provider" or "provider/model" where provider is
// one of llm.DefaultProviders.
func validateProvider(fl validator.FieldLevel) bool {
	return ValidProviderSpec(fl.Field().String())
}

// ValidProviderSpec reports whether spec names a known provider and, if
// present, a well-formed model.
func ValidProviderSpec(spec string) bool {
	provider, model, hasModel := strings.Cut(spec, "/")
	if _, ok := llm.DefaultProviders[provider]; !ok {
		return false
	}
	if !hasModel {
		return true
	}
	return modelPattern.MatchString(model)
}
