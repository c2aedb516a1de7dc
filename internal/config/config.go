// Package config loads dispatch configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shineum/anymail-lite/internal/dispatch"
	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/provider"
)

// envPrefix prefixes every environment variable, e.g. ANYMAIL_PROVIDER or
// ANYMAIL_CREDENTIALS_API_KEY.
const envPrefix = "ANYMAIL"

// Config holds the complete application configuration.
type Config struct {
	Provider    string            `yaml:"provider"`
	Credentials CredentialsConfig `yaml:"credentials"`

	// ProviderOptions are backend settings such as region, tenant_id or
	// api_url. From the environment: "region:us-east-1,tenant_id:contoso";
	// values containing ":" can only be set from the file.
	ProviderOptions map[string]string `yaml:"provider_options" split_words:"true"`

	// ESPExtra is only configurable from the file.
	ESPExtra map[string]any `yaml:"esp_extra" ignored:"true"`

	IgnoreUnsupportedFeatures bool `yaml:"ignore_unsupported_features" split_words:"true"`

	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// CredentialsConfig holds exactly one credential scheme. APIKey wins when
// both are set.
type CredentialsConfig struct {
	APIKey   string `yaml:"api_key" split_words:"true"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File string `yaml:"file"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports missing or contradictory settings as *mailerr.ConfigError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return &mailerr.ConfigError{Reason: "provider is required"}
	}
	if _, err := c.credentials().Scheme(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &mailerr.ConfigError{Reason: fmt.Sprintf("unknown logging level %q", c.Logging.Level)}
	}
	if c.HTTP.Timeout < 0 {
		return &mailerr.ConfigError{Reason: "http.timeout must not be negative"}
	}
	return nil
}

// Dispatch returns the per-send configuration the dispatcher consumes.
func (c *Config) Dispatch() dispatch.Config {
	return dispatch.Config{
		Provider:                  c.Provider,
		Credentials:               c.credentials(),
		Options:                   provider.Options(c.ProviderOptions),
		ESPExtra:                  c.ESPExtra,
		IgnoreUnsupportedFeatures: c.IgnoreUnsupportedFeatures,
	}
}

// SlogLevel converts the logging level to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) credentials() provider.Credentials {
	return provider.Credentials{
		APIKey:   c.Credentials.APIKey,
		Username: c.Credentials.Username,
		Password: c.Credentials.Password,
	}
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Timeout = 30 * time.Second
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with ANYMAIL_* environment variables.
func (c *Config) applyEnvVars() error {
	if err := envconfig.Process(envPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}
