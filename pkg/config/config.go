package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxNarrativeRetries bounds MAX_RETRIES.
const MaxNarrativeRetries = 2

// Data source kinds accepted in DATA_SOURCE.
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceS3       = "s3"
	SourceGCS      = "gcs"
	SourceSample   = "sample"
)

// Config holds service configuration.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	DataSource  string `yaml:"data_source"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	GCSBucket   string `yaml:"gcs_bucket"`
	GCSPrefix   string `yaml:"gcs_prefix"`

	LLMServiceURL    string  `yaml:"llm_service_url"`
	LLMAPIKey        string  `yaml:"-"`
	LLMModel         string  `yaml:"llm_model"`
	ModelTemperature float64 `yaml:"model_temperature"`
	NarrativeTimeout int     `yaml:"narrative_timeout"` // seconds, advisory
	MaxRetries       int     `yaml:"max_retries"`
	NarrativeRPS     float64 `yaml:"narrative_rps"`
	NarrativeBackoff int     `yaml:"narrative_backoff_ms"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redis_db"`

	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	FollowupLimit  int     `yaml:"followup_limit"`
}

// Default returns the development defaults: sample data, no LLM key, no
// cache, telemetry off.
func Default() *Config {
	return &Config{
		Port:             "8000",
		LogLevel:         "INFO",
		LogFormat:        "json",
		DataSource:       SourceCSV,
		DataDir:          "data",
		SQLitePath:       "followup.db",
		S3Region:         "us-east-1",
		LLMServiceURL:    "https://api.openai.com/v1",
		LLMModel:         "gpt-4o-mini",
		ModelTemperature: 0.2,
		NarrativeTimeout: 8,
		MaxRetries:       2,
		NarrativeBackoff: 250,
		OTelEndpoint:     "localhost:4317",
		RateLimitRPS:     20,
		RateLimitBurst:   40,
		FollowupLimit:    5,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// FOLLOWUP_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FOLLOWUP_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("DATA_SOURCE", &c.DataSource)
	str("DATA_DIR", &c.DataDir)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_PREFIX", &c.S3Prefix)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("GCS_BUCKET", &c.GCSBucket)
	str("GCS_PREFIX", &c.GCSPrefix)
	str("LLM_SERVICE_URL", &c.LLMServiceURL)
	str("LLM_API_KEY", &c.LLMAPIKey)
	str("LLM_MODEL", &c.LLMModel)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTelEndpoint)

	if c.LLMAPIKey == "" {
		c.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.OTelEnabled = v == "true" || v == "1"
	}

	var errs []error
	intVar := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	floatVar := func(key string, dst *float64) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	intVar("NARRATIVE_TIMEOUT", &c.NarrativeTimeout)
	intVar("MAX_RETRIES", &c.MaxRetries)
	intVar("NARRATIVE_BACKOFF_MS", &c.NarrativeBackoff)
	intVar("REDIS_DB", &c.RedisDB)
	intVar("RATE_LIMIT_BURST", &c.RateLimitBurst)
	intVar("FOLLOWUP_LIMIT", &c.FollowupLimit)
	floatVar("MODEL_TEMPERATURE", &c.ModelTemperature)
	floatVar("NARRATIVE_RPS", &c.NarrativeRPS)
	floatVar("RATE_LIMIT_RPS", &c.RateLimitRPS)

	return errors.Join(errs...)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	switch strings.ToLower(c.DataSource) {
	case SourceCSV, SourceSample:
	case SourceSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite data source requires SQLITE_PATH"))
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres data source requires DATABASE_URL"))
		}
	case SourceS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("s3 data source requires S3_BUCKET"))
		}
	case SourceGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("gcs data source requires GCS_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data source %q", c.DataSource))
	}
	if c.ModelTemperature < 0 || c.ModelTemperature > 2 {
		errs = append(errs, fmt.Errorf("model temperature %v out of range [0,2]", c.ModelTemperature))
	}
	if c.NarrativeTimeout <= 0 {
		errs = append(errs, errors.New("narrative timeout must be positive"))
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxNarrativeRetries {
		errs = append(errs, fmt.Errorf("max retries %d out of range [0,%d]", c.MaxRetries, MaxNarrativeRetries))
	}
	if c.NarrativeRPS < 0 || c.RateLimitRPS < 0 || c.NarrativeBackoff < 0 {
		errs = append(errs, errors.New("rates and backoff must be >= 0"))
	}
	if c.FollowupLimit <= 0 {
		errs = append(errs, errors.New("followup limit must be positive"))
	}
	return errors.Join(errs...)
}

// AdvisoryTimeout is NarrativeTimeout as a duration.
func (c *Config) AdvisoryTimeout() time.Duration {
	return time.Duration(c.NarrativeTimeout) * time.Second
}
