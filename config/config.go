// Package config loads runtime settings from the environment.
//
// Every variable is prefixed with THREADMESH_, for example
// THREADMESH_PROVIDER=anthropic or THREADMESH_STORE=sqlite.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/threadmesh/logging"
)

// Prefix is the environment variable prefix.
const Prefix = "THREADMESH"

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Checkpoint store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// ModelConfig selects the language model.
type ModelConfig struct {
	Provider        string  `envconfig:"PROVIDER" default:"mock"`
	Name            string  `envconfig:"MODEL"`
	Temperature     float64 `envconfig:"TEMPERATURE" default:"0.7"`
	MaxTokens       int64   `envconfig:"MAX_TOKENS" default:"4096"`
	OpenAIAPIKey    string  `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string  `envconfig:"ANTHROPIC_API_KEY"`
}

// StoreConfig selects where checkpoints live.
type StoreConfig struct {
	Kind string `envconfig:"STORE" default:"memory"`
	// DSN is the Postgres connection string.
	DSN string `envconfig:"DSN"`
	// Path is the SQLite or bbolt file.
	Path string `envconfig:"STORE_PATH" default:"threadmesh.db"`
	// RedisAddr enables the read-through checkpoint cache.
	RedisAddr string        `envconfig:"REDIS_ADDR"`
	RedisTTL  time.Duration `envconfig:"REDIS_TTL" default:"10m"`
}

// GraphConfig tunes turn execution.
type GraphConfig struct {
	MaxSteps          int           `envconfig:"MAX_STEPS" default:"25"`
	NodeTimeout       time.Duration `envconfig:"NODE_TIMEOUT" default:"60s"`
	ToolTimeout       time.Duration `envconfig:"TOOL_TIMEOUT" default:"15s"`
	Triggers          []string      `envconfig:"TRIGGERS"`
	MaxConcurrentRuns int           `envconfig:"MAX_CONCURRENT_RUNS" default:"10"`
	ContextType       string        `envconfig:"CONTEXT_TYPE" default:"general_chat"`
	TaskType          string        `envconfig:"TASK_TYPE" default:"chat"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// Config is the complete runtime configuration.
type Config struct {
	Model ModelConfig
	Store StoreConfig
	Graph GraphConfig
	Log   LogConfig
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	for _, section := range []any{&cfg.Model, &cfg.Store, &cfg.Graph, &cfg.Log} {
		if err := envconfig.Process(Prefix, section); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	triggers := c.Graph.Triggers[:0]
	for _, t := range c.Graph.Triggers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			triggers = append(triggers, t)
		}
	}
	c.Graph.Triggers = triggers
}

// Validate reports every invalid combination at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Model.Provider))
	}
	if c.Model.Provider == ProviderAnthropic && c.Model.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("anthropic provider requires THREADMESH_ANTHROPIC_API_KEY"))
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("postgres store requires THREADMESH_DSN"))
		}
	case StoreSQLite, StoreBolt:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("%s store requires THREADMESH_STORE_PATH", c.Store.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store.Kind))
	}
	if c.Store.RedisTTL < 0 {
		errs = append(errs, errors.New("redis ttl must not be negative"))
	}

	if c.Graph.MaxSteps <= 0 {
		errs = append(errs, errors.New("max steps must be positive"))
	}
	if c.Graph.NodeTimeout < 0 || c.Graph.ToolTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the structured logger described by the log settings.
func (c *Config) Logger() *logging.StructuredLogger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.NewSlogLogger(level, c.Log.Format, false)
}
