package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Search      SearchConfig    `toml:"search"`
	TTL         TTLConfig       `toml:"ttl"`
	Ingestion   IngestionConfig `toml:"ingestion"`
	Jobs        JobsConfig      `toml:"jobs"`
	Context7    Context7Config  `toml:"context7"`
	LLM         LLMConfig       `toml:"llm"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SearchConfig contains the decision thresholds for the search pipeline.
// Thresholds are tunable defaults, not fixed constants.
type SearchConfig struct {
	HighConfidence   float64 `toml:"high_confidence" validate:"gt=0,lte=1"`   // Score at or above returns immediately (default 0.8)
	MediumConfidence float64 `toml:"medium_confidence" validate:"gt=0,lt=1"`  // Score below this triggers external fetch (default 0.4)
	MaxRefinements   int     `toml:"max_refinements" validate:"gte=0,lte=10"` // Maximum refinement iterations per request (default 2)
	ResultLimit      int     `toml:"result_limit" validate:"gt=0"`            // Default result limit when the request omits one
	EvaluatorMode    string  `toml:"evaluator_mode" validate:"oneof=heuristic llm"`
	RequestTimeout   time.Duration `toml:"request_timeout"` // Per-request deadline applied by the caller
}

// TTLConfig contains the expiration policy: bounds plus multiplier tables.
// All multipliers are configurable; lookups that miss a table fall back to 1.0.
type TTLConfig struct {
	BaseDays int `toml:"base_days" validate:"gt=0"` // Base TTL before multipliers (default 30)
	MinDays  int `toml:"min_days" validate:"gt=0"`  // Lower clamp bound (default 1)
	MaxDays  int `toml:"max_days" validate:"gt=0"`  // Upper clamp bound (default 365, deployments may tighten)

	Technology map[string]float64 `toml:"technology"` // Per-technology multipliers, unknown -> 1.0
	DocType    map[string]float64 `toml:"doc_type"`   // api_reference, tutorial, changelog, general
	Content    map[string]float64 `toml:"content"`    // Content keyword signals: deprecated, stable, experimental...
	Version    map[string]float64 `toml:"version"`    // Version signals: latest, beta, alpha, mature

	QualityHighThreshold  float64 `toml:"quality_high_threshold"`  // Score at or above gets the high multiplier
	QualityLowThreshold   float64 `toml:"quality_low_threshold"`   // Score below gets the low multiplier
	QualityHighMultiplier float64 `toml:"quality_high_multiplier"` // Default 1.2
	QualityLowMultiplier  float64 `toml:"quality_low_multiplier"`  // Default 0.7
}

// IngestionConfig controls batch splitting and parallelism for ingestion
type IngestionConfig struct {
	BatchSize     int `toml:"batch_size" validate:"gt=0"`     // Documents per sub-batch (default 5)
	MaxConcurrent int `toml:"max_concurrent" validate:"gt=0"` // Concurrent document writes (default 5)
}

// JobsConfig contains configuration for the background job framework
type JobsConfig struct {
	DefinitionsDir    string        `toml:"definitions_dir"`    // Directory containing job definition files (TOML/YAML)
	PollInterval      time.Duration `toml:"poll_interval"`      // Scheduler loop interval (default 60s)
	MaxConcurrentJobs int           `toml:"max_concurrent_jobs" validate:"gt=0"`
	ExecutionTimeout  time.Duration `toml:"execution_timeout"` // Per-execution timeout

	Retry RetryConfig `toml:"retry"`

	CleanupSchedule      string `toml:"cleanup_schedule"`       // Cron expression for TTL cleanup
	CleanupBatchSize     int    `toml:"cleanup_batch_size"`     // Documents deleted per batch (default 50)
	RefreshSchedule      string `toml:"refresh_schedule"`       // Cron expression for document refresh
	RefreshThresholdDays int    `toml:"refresh_threshold_days"` // Refresh documents this close to expiry (default 7)
	HealthCheckInterval  time.Duration `toml:"health_check_interval"` // Dependency probe interval (default 5m)

	DegradedThreshold  int `toml:"degraded_threshold"`  // Consecutive failures before degraded (default 1)
	UnhealthyThreshold int `toml:"unhealthy_threshold"` // Consecutive failures before unhealthy (default 3)
}

// RetryConfig defines the retry policy applied to failed job executions
type RetryConfig struct {
	MaxRetries   int           `toml:"max_retries" validate:"gte=0"`
	InitialDelay time.Duration `toml:"initial_delay"`
	Multiplier   float64       `toml:"multiplier"`
	MaxDelay     time.Duration `toml:"max_delay"`
}

// Context7Config configures the external documentation search client
type Context7Config struct {
	BaseURL          string        `toml:"base_url"`
	APIKey           string        `toml:"api_key"`
	Timeout          time.Duration `toml:"timeout"`
	RateLimit        int           `toml:"rate_limit"`         // Requests per second
	FailureThreshold int           `toml:"failure_threshold"`  // Consecutive failures before the breaker opens
	BreakerCooldown  time.Duration `toml:"breaker_cooldown"`   // How long the breaker stays open
}

// LLMConfig configures the optional LLM-backed evaluator/refiner
type LLMConfig struct {
	DefaultProvider string       `toml:"default_provider"` // "claude" or "gemini"
	Model           string       `toml:"model"`            // Optional provider-prefixed override, e.g. "gemini/gemini-2.0-flash"
	Claude          ClaudeConfig `toml:"claude"`
	Gemini          GeminiConfig `toml:"gemini"`
	MaxTokens       int          `toml:"max_tokens"`
	Temperature     float32      `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// DefaultConfig returns the configuration defaults. File and environment
// values are layered on top of these.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/docaiche",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Search: SearchConfig{
			HighConfidence:   0.8,
			MediumConfidence: 0.4,
			MaxRefinements:   2,
			ResultLimit:      10,
			EvaluatorMode:    "heuristic",
			RequestTimeout:   30 * time.Second,
		},
		TTL: TTLConfig{
			BaseDays: 30,
			MinDays:  1,
			MaxDays:  365,
			Technology: map[string]float64{
				"react":   0.8,
				"nextjs":  0.8,
				"vue":     0.8,
				"angular": 0.8,
				"svelte":  0.8,
				"go":      1.2,
				"postgresql": 1.5,
				"sqlite":  1.5,
			},
			DocType: map[string]float64{
				"api_reference": 0.8,
				"tutorial":      1.3,
				"guide":         1.2,
				"changelog":     0.4,
				"news":          0.3,
				"general":       1.0,
			},
			Content: map[string]float64{
				"deprecated":   0.5,
				"stable":       1.5,
				"production":   1.5,
				"experimental": 0.7,
				"beta":         0.7,
			},
			Version: map[string]float64{
				"latest": 1.3,
				"stable": 1.3,
				"beta":   0.6,
				"alpha":  0.6,
				"mature": 1.2,
			},
			QualityHighThreshold:  0.7,
			QualityLowThreshold:   0.3,
			QualityHighMultiplier: 1.2,
			QualityLowMultiplier:  0.7,
		},
		Ingestion: IngestionConfig{
			BatchSize:     5,
			MaxConcurrent: 5,
		},
		Jobs: JobsConfig{
			DefinitionsDir:    "./jobs",
			PollInterval:      60 * time.Second,
			MaxConcurrentJobs: 3,
			ExecutionTimeout:  10 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: time.Second,
				Multiplier:   2.0,
				MaxDelay:     time.Minute,
			},
			CleanupSchedule:      "0 3 * * *",
			CleanupBatchSize:     50,
			RefreshSchedule:      "0 4 * * *",
			RefreshThresholdDays: 7,
			HealthCheckInterval:  5 * time.Minute,
			DegradedThreshold:    1,
			UnhealthyThreshold:   3,
		},
		Context7: Context7Config{
			BaseURL:          "https://context7.com/api/v1",
			Timeout:          30 * time.Second,
			RateLimit:        10,
			FailureThreshold: 5,
			BreakerCooldown:  time.Minute,
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
			Claude: ClaudeConfig{
				Model: "claude-3-5-haiku-latest",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			MaxTokens:   1024,
			Temperature: 0.2,
		},
	}
}

// LoadFromFile loads configuration from a TOML file layered over defaults,
// then applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides for values that
// are commonly injected at deploy time (secrets and paths).
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DOCAICHE_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("DOCAICHE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CONTEXT7_API_KEY"); v != "" {
		config.Context7.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.LLM.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("DOCAICHE_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Jobs.MaxConcurrentJobs = n
		}
	}
}

// Validate checks structural validity plus the cross-field constraints the
// validator tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Search.MediumConfidence >= c.Search.HighConfidence {
		return fmt.Errorf("invalid configuration: medium_confidence (%.2f) must be below high_confidence (%.2f)",
			c.Search.MediumConfidence, c.Search.HighConfidence)
	}
	if c.TTL.MinDays > c.TTL.MaxDays {
		return fmt.Errorf("invalid configuration: ttl min_days (%d) exceeds max_days (%d)", c.TTL.MinDays, c.TTL.MaxDays)
	}
	if c.Jobs.Retry.Multiplier < 1.0 {
		return fmt.Errorf("invalid configuration: retry multiplier must be >= 1.0, got %.2f", c.Jobs.Retry.Multiplier)
	}
	return nil
}
