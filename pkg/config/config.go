package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for astro-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (facts cache + transcript recency cache)
	Redis RedisConfig `yaml:"redis"`

	// Auth configuration (OTP onboarding + JWT issuance)
	Auth AuthConfig `yaml:"auth"`

	// LLM holds the generation model endpoint.
	LLM LLMConfig `yaml:"llm"`

	// Guardrail holds the safety classifier endpoint. If empty, the
	// generation endpoint is reused for classification.
	Guardrail LLMConfig `yaml:"guardrail" env-prefix:"GUARDRAIL_"`

	// Ephemeris holds the external astrology computation API settings.
	Ephemeris EphemerisConfig `yaml:"ephemeris"`

	// SMS gateway for OTP delivery.
	SMS SMSConfig `yaml:"sms"`

	// Maps holds the geocoding API key.
	Maps MapsConfig `yaml:"maps"`

	// Pipeline holds the consultation pipeline policy knobs.
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"astro"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"astro_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AuthConfig holds JWT and OTP settings.
type AuthConfig struct {
	// JWTSecret signs access and refresh tokens (HS256).
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML

	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"30m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	OTPTTL          time.Duration `yaml:"otp_ttl" env:"OTP_TTL" env-default:"5m"`

	// DefaultRegion is the fallback region for phone number parsing.
	DefaultRegion string `yaml:"default_region" env:"AUTH_DEFAULT_REGION" env-default:"IN"`
}

// LLMConfig holds settings for one LLM endpoint.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER"`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT"`
	Model    string `yaml:"model" env:"LLM_MODEL"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// IsConfigured returns true if the endpoint has a model set.
func (c *LLMConfig) IsConfigured() bool {
	return c.Model != ""
}

// EphemerisConfig holds the external astrology computation API settings.
type EphemerisConfig struct {
	BaseURL   string        `yaml:"base_url" env:"EPHEMERIS_BASE_URL" env-default:"https://astroapi-3.divineapi.com/indian-api/v1"`
	APIKey    string        `yaml:"-" env:"EPHEMERIS_API_KEY"`    // Secret - not in YAML
	AuthToken string        `yaml:"-" env:"EPHEMERIS_AUTH_TOKEN"` // Secret - not in YAML
	Timeout   time.Duration `yaml:"timeout" env:"EPHEMERIS_TIMEOUT" env-default:"30s"`
}

// SMSConfig holds the OTP delivery gateway settings.
type SMSConfig struct {
	BaseURL string        `yaml:"base_url" env:"SMS_BASE_URL" env-default:"https://2factor.in/API/V1"`
	APIKey  string        `yaml:"-" env:"SMS_API_KEY"` // Secret - not in YAML
	Timeout time.Duration `yaml:"timeout" env:"SMS_TIMEOUT" env-default:"10s"`
}

// MapsConfig holds the geocoding API settings.
type MapsConfig struct {
	APIKey string `yaml:"-" env:"GOOGLE_MAPS_API_KEY"` // Secret - not in YAML
}

// IsConfigured returns true if geocoding is available.
func (c *MapsConfig) IsConfigured() bool {
	return c.APIKey != ""
}

// PipelineConfig parameterizes the guarded consultation pipeline.
type PipelineConfig struct {
	// FactsTTL is the cache validity horizon for resolved astrological facts.
	FactsTTL time.Duration `yaml:"facts_ttl" env:"PIPELINE_FACTS_TTL" env-default:"6h"`

	// TranscriptTTL is the retention window of the transcript recency cache.
	TranscriptTTL time.Duration `yaml:"transcript_ttl" env:"PIPELINE_TRANSCRIPT_TTL" env-default:"168h"`

	// MaxOutputRetries is how many strict-variant regenerations are
	// attempted after the primary answer fails output admission.
	MaxOutputRetries int `yaml:"max_output_retries" env:"PIPELINE_MAX_OUTPUT_RETRIES" env-default:"1"`

	// HistoryLimit bounds how many prior turns are included in the prompt.
	HistoryLimit int `yaml:"history_limit" env:"PIPELINE_HISTORY_LIMIT" env-default:"50"`

	// RecordRefused controls whether a refused query and its fixed refusal
	// message are still appended to the transcript.
	RecordRefused bool `yaml:"record_refused" env:"PIPELINE_RECORD_REFUSED" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Pipeline.MaxOutputRetries < 0 {
		return fmt.Errorf("pipeline.max_output_retries must not be negative")
	}
	if !c.LLM.IsConfigured() {
		return fmt.Errorf("llm.model must be set")
	}
	return nil
}

// GuardrailLLM returns the classifier endpoint config, falling back to the
// generation endpoint when no dedicated guardrail model is configured.
func (c *Config) GuardrailLLM() LLMConfig {
	if c.Guardrail.IsConfigured() {
		return c.Guardrail
	}
	return c.LLM
}
