package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/agenthands/padi/internal/core/engine"
)

const DefaultPath = "config/config.toml"

type ServerConfig struct {
	Port                   string   `toml:"port"`
	Mode                   string   `toml:"mode"` // gin mode: debug, release, test
	BodyLimitBytes         int64    `toml:"body_limit_bytes"`
	ReadTimeoutSeconds     int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int      `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	CORSAllowedOrigins     []string `toml:"cors_allowed_origins"`
}

type StoreConfig struct {
	Driver     string `toml:"driver"` // sqlite, memgraph or memory
	SQLitePath string `toml:"sqlite_path"`
	// SeedFile is loaded at startup when the backend has no active symptoms.
	SeedFile string `toml:"seed_file"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LLMConfig struct {
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float32 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type SolutionConfig struct {
	Enabled bool `toml:"enabled"`
	// Prompt is a text/template rendered with the primary disease and the
	// other probable diseases. Empty uses the built-in prompt.
	Prompt string `toml:"prompt"`
}

type EngineConfig struct {
	FCAcceptanceRatio   float64 `toml:"fc_acceptance_ratio"`
	UsableThreshold     float64 `toml:"usable_threshold"`
	HighConfidence      float64 `toml:"high_confidence"`
	MaxResults          int     `toml:"max_results"`
	MinSelectedSymptoms int     `toml:"min_selected_symptoms"`
	MaxSuggestions      int     `toml:"max_suggestions"`
	RecommendLow        float64 `toml:"recommend_low"`
	RecommendHigh       float64 `toml:"recommend_high"`
}

type LimitsConfig struct {
	MaxDiagnosesPerDay     int `toml:"max_diagnoses_per_day"`
	DuplicateWindowSeconds int `toml:"duplicate_window_seconds"`
	HistoryRetentionDays   int `toml:"history_retention_days"`
}

type RetentionConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"` // console or json
	Output      string `toml:"output"` // stdout, stderr or a file path
	Development bool   `toml:"development"`
}

type CacheConfig struct {
	// TTLSeconds bounds how stale the knowledge base snapshot may get. 0
	// reads the backend on every diagnosis.
	TTLSeconds int `toml:"ttl_seconds"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Memgraph  MemgraphConfig  `toml:"memgraph"`
	LLM       LLMConfig       `toml:"llm"`
	Solution  SolutionConfig  `toml:"solution"`
	Engine    EngineConfig    `toml:"engine"`
	Limits    LimitsConfig    `toml:"limits"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
	Cache     CacheConfig     `toml:"cache"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8080",
			Mode:                   "release",
			BodyLimitBytes:         1 << 20,
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    60,
			ShutdownTimeoutSeconds: 10,
			CORSAllowedOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "data/padi.db",
			SeedFile:   "config/knowledge.yaml",
		},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		LLM: LLMConfig{
			MaxTokens:      1500,
			Temperature:    0.3,
			TimeoutSeconds: 30,
		},
		Solution: SolutionConfig{Enabled: true},
		Engine: EngineConfig{
			FCAcceptanceRatio:   engine.DefaultAcceptanceRatio,
			UsableThreshold:     engine.DefaultUsableThreshold,
			HighConfidence:      engine.DefaultHighConfidence,
			MinSelectedSymptoms: 3,
			MaxSuggestions:      engine.DefaultMaxSuggestions,
			RecommendLow:        engine.DefaultRecommendLow,
			RecommendHigh:       engine.DefaultRecommendHigh,
		},
		Limits: LimitsConfig{
			MaxDiagnosesPerDay:     0,
			DuplicateWindowSeconds: 10,
			HistoryRetentionDays:   30,
		},
		Retention: RetentionConfig{Enabled: true, IntervalMinutes: 60},
		Logging:   LoggingConfig{Level: "info", Format: "console", Output: "stdout"},
		Cache:     CacheConfig{TTLSeconds: 60},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides deploy-sensitive keys from the environment. getenv is
// os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Server.Port)
	str("GIN_MODE", &c.Server.Mode)
	str("STORE_DRIVER", &c.Store.Driver)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("SEED_FILE", &c.Store.SeedFile)
	str("MEMGRAPH_URI", &c.Memgraph.URI)
	str("MEMGRAPH_USER", &c.Memgraph.User)
	str("MEMGRAPH_PASSWORD", &c.Memgraph.Password)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSAllowedOrigins = origins
	}

	return errors.Join(
		num("MAX_DIAGNOSES_PER_DAY", &c.Limits.MaxDiagnosesPerDay),
		num("HISTORY_RETENTION_DAYS", &c.Limits.HistoryRetentionDays),
	)
}

// Validate rejects thresholds outside their meaningful ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	unit := func(v float64) bool { return v >= 0 && v <= 1 }

	e := c.Engine
	check(e.FCAcceptanceRatio > 0 && e.FCAcceptanceRatio <= 1, "engine.fc_acceptance_ratio must be in (0,1], got %v", e.FCAcceptanceRatio)
	check(unit(e.UsableThreshold), "engine.usable_threshold must be in [0,1], got %v", e.UsableThreshold)
	check(unit(e.HighConfidence), "engine.high_confidence must be in [0,1], got %v", e.HighConfidence)
	check(unit(e.RecommendLow) && unit(e.RecommendHigh) && e.RecommendLow <= e.RecommendHigh,
		"engine.recommend_low/high must satisfy 0 <= low <= high <= 1")
	check(e.MaxResults >= 0, "engine.max_results must not be negative")
	check(e.MinSelectedSymptoms >= 0, "engine.min_selected_symptoms must not be negative")
	check(e.MaxSuggestions >= 0, "engine.max_suggestions must not be negative")

	check(c.Limits.MaxDiagnosesPerDay >= 0, "limits.max_diagnoses_per_day must not be negative")
	check(c.Limits.DuplicateWindowSeconds >= 0, "limits.duplicate_window_seconds must not be negative")
	check(c.Limits.HistoryRetentionDays >= 0, "limits.history_retention_days must not be negative")
	check(!c.Retention.Enabled || c.Retention.IntervalMinutes > 0, "retention.interval_minutes must be positive")

	switch c.Store.Driver {
	case "sqlite":
		check(c.Store.SQLitePath != "", "store.sqlite_path is required for the sqlite driver")
	case "memgraph":
		check(c.Memgraph.URI != "", "memgraph.uri is required for the memgraph driver")
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, memgraph, memory", c.Store.Driver))
	}
	return errors.Join(errs...)
}

func (e EngineConfig) ToEngine() engine.Config {
	return engine.Config{
		AcceptanceRatio: e.FCAcceptanceRatio,
		UsableThreshold: e.UsableThreshold,
		HighConfidence:  e.HighConfidence,
		MaxResults:      e.MaxResults,
		MaxSuggestions:  e.MaxSuggestions,
		RecommendLow:    e.RecommendLow,
		RecommendHigh:   e.RecommendHigh,
	}
}

func (l LimitsConfig) DuplicateWindow() time.Duration {
	return time.Duration(l.DuplicateWindowSeconds) * time.Second
}

func (l LimitsConfig) Retention() time.Duration {
	return time.Duration(l.HistoryRetentionDays) * 24 * time.Hour
}

func (r RetentionConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}
