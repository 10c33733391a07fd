// Package config handles relay bot configuration loading and validation.
//
// Configuration comes from three layers, later ones winning: built-in
// defaults, an optional YAML file, and the process environment (optionally
// seeded from a .env file). The two secrets, the completion API key and the
// Telegram token, are normally supplied only through the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/syho-lab/ainewsldo/internal/persona"
)

// Environment variables read by ApplyEnv.
const (
	EnvCompletionKey   = "OPENROUTER_API_KEY"
	EnvTelegramToken   = "TELEGRAM_TOKEN"
	EnvCompletionModel = "OPENROUTER_MODEL"
	EnvCompletionURL   = "OPENROUTER_URL"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsAddr     = "METRICS_ADDR"
)

// Defaults for the completion service.
const (
	DefaultCompletionURL   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultCompletionModel = "deepseek/deepseek-r1-0528:free"
	DefaultTimeout         = 10 * time.Second
)

// Config holds all relay bot configuration
type Config struct {
	Completion CompletionConfig `yaml:"completion"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Persona    PersonaConfig    `yaml:"persona"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CompletionConfig configures the chat-completion endpoint
type CompletionConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key,omitempty"` // can be an env reference like ${OPENROUTER_API_KEY}
	Timeout time.Duration `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the completion circuit breaker.
// A zero FailureThreshold disables it.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
}

// TelegramConfig for the Telegram bot
type TelegramConfig struct {
	Token       string `yaml:"token,omitempty"`
	APIEndpoint string `yaml:"api_endpoint,omitempty"` // empty = api.telegram.org
	PollTimeout int    `yaml:"poll_timeout"`           // long-poll seconds
	Debug       bool   `yaml:"debug"`
}

// PersonaConfig configures the personality set
type PersonaConfig struct {
	Default       string            `yaml:"default"`
	Personalities []persona.Persona `yaml:"personalities,omitempty"` // empty = built-in set
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Completion: CompletionConfig{
			URL:     DefaultCompletionURL,
			Model:   DefaultCompletionModel,
			Timeout: DefaultTimeout,
			// Off unless failure_threshold is set: every cycle sends its request.
			Breaker: BreakerConfig{
				RecoveryTimeout:  30 * time.Second,
				SuccessThreshold: 1,
			},
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Persona: PersonaConfig{
			Default: persona.DefaultLabel,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ainewsldo", "config.yaml")
}

// Load reads configuration from file. With an empty path the default
// location is tried and a missing file there yields the defaults; an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped;
// with no arguments ".env" in the working directory is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config and expands
// ${VAR} references in secret fields.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCompletionKey); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv(EnvTelegramToken); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv(EnvCompletionModel); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv(EnvCompletionURL); v != "" {
		c.Completion.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}

	c.Completion.APIKey = expandRef(c.Completion.APIKey)
	c.Telegram.Token = expandRef(c.Telegram.Token)
}

// expandRef resolves values of the form ${VAR}.
func expandRef(v string) string {
	if len(v) > 3 && strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

// Validate checks the configuration. A missing secret yields an error
// matching ErrMissingSecret; the process must not start with it.
func (c *Config) Validate() error {
	var errs []error

	if c.Completion.APIKey == "" {
		errs = append(errs, missing("completion.api_key", EnvCompletionKey))
	}
	if c.Telegram.Token == "" {
		errs = append(errs, missing("telegram.token", EnvTelegramToken))
	}

	if u, err := url.Parse(c.Completion.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, invalid("completion.url", "must be an absolute URL, got %q", c.Completion.URL))
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		errs = append(errs, invalid("completion.model", "must not be empty"))
	}
	if c.Completion.Timeout <= 0 {
		errs = append(errs, invalid("completion.timeout", "must be positive, got %s", c.Completion.Timeout))
	}
	if c.Completion.Breaker.FailureThreshold < 0 {
		errs = append(errs, invalid("completion.breaker.failure_threshold", "must not be negative"))
	}
	if c.Telegram.PollTimeout < 0 {
		errs = append(errs, invalid("telegram.poll_timeout", "must not be negative"))
	}

	if _, err := persona.NewStore(c.Persona.Personalities, c.Persona.Default); err != nil {
		errs = append(errs, &ConfigurationError{Field: "persona", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)})
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Completion.APIKey = redact(c.Completion.APIKey)
	out.Telegram.Token = redact(c.Telegram.Token)
	out.Persona.Personalities = append([]persona.Persona(nil), c.Persona.Personalities...)
	return &out
}

// YAML renders the config.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[redacted]"
}
