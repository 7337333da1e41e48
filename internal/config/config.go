// Package config loads corpusgraph's runtime configuration from a file,
// environment variables, and defaults, using Viper as the merge layer.
//
// Unlike the global-viper pattern (one package-level *viper.Viper bound
// by cobra.OnInitialize), Load constructs a fresh viper.Viper per call so
// a test can load two configurations side by side without polluting
// global state.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved set of values every corpusgraph command
// needs. Load returns either a Config whose fields come from a default,
// a file, or an environment variable, or an error. IndexServiceURL has
// no default and stays empty unless set.
type Config struct {
	// CorpusRoot is the directory the scanner walks for source files.
	CorpusRoot string `mapstructure:"corpus_root"`
	// StorePath is the SQLite database file tracking ingestion state.
	StorePath string `mapstructure:"store_path"`
	// IndexServiceURL is the base URL of the external index service.
	IndexServiceURL string `mapstructure:"index_service_url"`
	// IndexServiceAPIKeyEnv names the environment variable holding the
	// index service credential; the credential itself is never read
	// into this struct so it never ends up in a config dump.
	IndexServiceAPIKeyEnv string `mapstructure:"index_service_api_key_env"`
	// GlossaryPath points at the YAML synonym glossary used by the
	// search pipeline's query-expansion stage.
	GlossaryPath string `mapstructure:"glossary_path"`
	// CheckpointPath is where the worker pool writes its
	// credit-exhausted marker file.
	CheckpointPath string `mapstructure:"checkpoint_path"`

	// Concurrency is the default worker pool width.
	Concurrency int `mapstructure:"concurrency"`
	// BatchSize is the default number of files claimed per poll.
	BatchSize int `mapstructure:"batch_size"`
	// RequestsPerMinute, TokensPerMinute, RequestsPerDay size the
	// index service quota the rate limiter enforces.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	TokensPerMinute   int `mapstructure:"tokens_per_minute"`
	RequestsPerDay    int `mapstructure:"requests_per_day"`
	// BreakerThreshold is the rolling error rate that trips the
	// circuit breaker.
	BreakerThreshold float64       `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`

	// Debug enables verbose diagnostic logging.
	Debug bool `mapstructure:"debug"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("corpus_root", ".")
	v.SetDefault("store_path", "corpusgraph.db")
	v.SetDefault("index_service_api_key_env", "CORPUSGRAPH_INDEX_API_KEY")
	v.SetDefault("glossary_path", "glossary.yaml")
	v.SetDefault("checkpoint_path", ".corpusgraph-checkpoint.json")
	v.SetDefault("concurrency", 5)
	v.SetDefault("batch_size", 20)
	v.SetDefault("requests_per_minute", 60)
	v.SetDefault("tokens_per_minute", 100000)
	v.SetDefault("requests_per_day", 10000)
	v.SetDefault("breaker_threshold", 0.05)
	v.SetDefault("breaker_cooldown", time.Minute)
	v.SetDefault("debug", false)
}

// Load reads configuration from path (if non-empty), environment
// variables (CORPUSGRAPH_* prefix), and the defaults above. An
// environment variable overrides the same key in the file, and the file
// overrides the default. An empty path skips file loading entirely and
// returns defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("corpusgraph")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("config: concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.BreakerThreshold <= 0 || cfg.BreakerThreshold >= 1 {
		return nil, fmt.Errorf("config: breaker_threshold must be in (0,1), got %f", cfg.BreakerThreshold)
	}

	return &cfg, nil
}
