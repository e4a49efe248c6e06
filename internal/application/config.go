// Package application wires models, the generation pipeline and background
// jobs into the service the CLI drives.
package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qgen/internal/generation"
	"github.com/ahrav/go-qgen/internal/ports"
)

// Config is the root of the YAML configuration file.
type Config struct {
	// Log selects the logger mode and level.
	Log LogConfig `yaml:"log"`
	// Generation tunes the question pipeline.
	Generation generation.Config `yaml:"generation"`
	// Models names the model backends by role.
	Models ModelsConfig `yaml:"models"`
	// LLM configures transport resilience for every text generator.
	LLM LLMConfig `yaml:"llm"`
	// Cache selects the store behind the embedding cache.
	Cache CacheConfig `yaml:"cache"`
	// Lexicon points at the phrase space and ontology used for distractors.
	Lexicon LexiconConfig `yaml:"lexicon"`
	// Jobs bounds background generation.
	Jobs JobsConfig `yaml:"jobs"`
	// Seed fixes randomness for requests that carry none. Zero derives a
	// seed per request.
	Seed int64 `yaml:"seed"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Mode  string `yaml:"mode" validate:"oneof=development production"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// ModelsConfig names a "provider" or "provider/model" spec per role.
type ModelsConfig struct {
	Questions  string `yaml:"questions" validate:"required,provider"`
	Answers    string `yaml:"answers" validate:"required,provider"`
	Summarizer string `yaml:"summarizer" validate:"omitempty,provider"`
	// SystemPrompt replaces the built-in system instruction when set.
	SystemPrompt string         `yaml:"system_prompt" validate:"max=4000"`
	Embedder     EmbedderConfig `yaml:"embedder"`
}

// EmbedderConfig selects the sentence embedder.
type EmbedderConfig struct {
	// Kind is "openai" for the embeddings API or "hashing" for the offline
	// feature-hashing embedder.
	Kind      string `yaml:"kind" validate:"oneof=openai hashing"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension" validate:"omitempty,min=8,max=8192"`
}

// LLMConfig configures the middleware around every provider.
type LLMConfig struct {
	Timeout         time.Duration `yaml:"timeout" validate:"min=0"`
	MaxRetries      int           `yaml:"max_retries" validate:"min=0,max=10"`
	BaseDelay       time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay        time.Duration `yaml:"max_delay" validate:"gtefield=BaseDelay"`
	RateLimit       float64       `yaml:"rate_limit" validate:"min=0"`
	Burst           int           `yaml:"burst" validate:"min=1"`
	BreakerFailures int           `yaml:"breaker_failures" validate:"min=1,max=100"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"min=0"`
}

// CacheConfig selects the embedding cache backend.
type CacheConfig struct {
	// Kind is "none", "memory" or "redis".
	Kind string `yaml:"kind" validate:"oneof=none memory redis"`
	// RedisURLEnv names the environment variable holding the Redis URL.
	RedisURLEnv  string        `yaml:"redis_url_env" validate:"required_if=Kind redis"`
	Prefix       string        `yaml:"prefix"`
	EmbeddingTTL time.Duration `yaml:"embedding_ttl" validate:"min=0"`
}

// LexiconConfig locates the distractor resources. Both are optional and off
// by default; without them distractors are drawn from entities and nouns of
// the passage. Set vectors_path to a phrase table and ontology to "file" or
// "neo4j" to enable the nearest-neighbor and co-hyponym sources.
type LexiconConfig struct {
	// VectorsPath is a phrase-space vector file.
	VectorsPath string `yaml:"vectors_path"`
	// Ontology is "none", "file" or "neo4j".
	Ontology     string      `yaml:"ontology" validate:"oneof=none file neo4j"`
	OntologyPath string      `yaml:"ontology_path" validate:"required_if=Ontology file"`
	Neo4j        Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig names the environment variables holding Neo4j credentials.
type Neo4jConfig struct {
	URIEnv      string        `yaml:"uri_env"`
	UserEnv     string        `yaml:"user_env"`
	PasswordEnv string        `yaml:"password_env"`
	Database    string        `yaml:"database"`
	Timeout     time.Duration `yaml:"timeout" validate:"min=0"`
}

// JobsConfig bounds background jobs.
type JobsConfig struct {
	// Store is "memory" or "redis". Redis reuses the cache's Redis URL.
	Store string `yaml:"store" validate:"oneof=memory redis"`
	// MaxInputWords rejects longer documents at submit time.
	MaxInputWords int `yaml:"max_input_words" validate:"min=1"`
	// Timeout bounds one job. Zero means no bound.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// TTL is how long finished job records are kept.
	TTL time.Duration `yaml:"ttl" validate:"min=0"`
}

// DefaultConfig returns a configuration that runs against OpenAI with an
// in-memory cache and no lexical resources.
func DefaultConfig() Config {
	return Config{
		Log:        LogConfig{Mode: "development", Level: "info"},
		Generation: generation.DefaultConfig(),
		Models: ModelsConfig{
			Questions: "openai",
			Answers:   "openai",
			Embedder:  EmbedderConfig{Kind: "openai"},
		},
		LLM: LLMConfig{
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			BaseDelay:       500 * time.Millisecond,
			MaxDelay:        10 * time.Second,
			RateLimit:       5,
			Burst:           5,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Cache: CacheConfig{
			Kind:         "memory",
			RedisURLEnv:  "REDIS_URL",
			Prefix:       "qgen:",
			EmbeddingTTL: 24 * time.Hour,
		},
		Lexicon: LexiconConfig{
			Ontology: "none",
			Neo4j: Neo4jConfig{
				URIEnv:      "NEO4J_URI",
				UserEnv:     "NEO4J_USER",
				PasswordEnv: "NEO4J_PASSWORD",
			},
		},
		Jobs: JobsConfig{
			Store:         "memory",
			MaxInputWords: 3000,
			Timeout:       10 * time.Minute,
			TTL:           24 * time.Hour,
		},
	}
}

// LoadConfig reads path over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, ports.NewConfigError(path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
	}
	if err != nil {
		return Config{}, ports.NewConfigError(path, err)
	}
	return ParseConfig(bytes.NewReader(data))
}

// ParseConfig decodes YAML over DefaultConfig. Unknown fields are errors.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags, including the custom "probability" and
// "provider" tags.
func (c Config) Validate() error {
	v := validator.New()
	if err := RegisterValidators(v); err != nil {
		return err
	}
	err := v.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return ports.NewConfigError(verrs[0].Namespace(), err)
	}
	return err
}
