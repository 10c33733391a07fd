package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syho-lab/ainewsldo/internal/persona"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultCompletionURL, cfg.Completion.URL)
	assert.Equal(t, DefaultCompletionModel, cfg.Completion.Model)
	assert.Equal(t, 10*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, persona.Kind, cfg.Persona.Default)
	assert.Equal(t, 60, cfg.Telegram.PollTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Addr, "metrics should be off by default")
	assert.Equal(t, 0, cfg.Completion.Breaker.FailureThreshold, "breaker is opt-in")

	// Secrets never have defaults
	assert.Empty(t, cfg.Completion.APIKey)
	assert.Empty(t, cfg.Telegram.Token)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
completion:
  model: test/model
  timeout: 3s
  breaker:
    failure_threshold: 3
persona:
  default: pirate
  personalities:
    - label: Pirate
    - label: Poet
      caption: Poetic
logging:
  level: debug
  format: json
metrics:
  addr: ":9102"
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test/model", cfg.Completion.Model)
	assert.Equal(t, 3*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, 3, cfg.Completion.Breaker.FailureThreshold)
	// Untouched keys keep defaults
	assert.Equal(t, DefaultCompletionURL, cfg.Completion.URL)
	assert.Equal(t, "pirate", cfg.Persona.Default)
	require.Len(t, cfg.Persona.Personalities, 2)
	assert.Equal(t, "Poetic", cfg.Persona.Personalities[1].Caption)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaultPathMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("completion: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvCompletionKey, "sk-test")
	t.Setenv(EnvTelegramToken, "123:abc")
	t.Setenv(EnvCompletionModel, "other/model")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvMetricsAddr, ":9999")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "other/model", cfg.Completion.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestApplyEnvExpandsReferences(t *testing.T) {
	t.Setenv(EnvCompletionKey, "")
	t.Setenv(EnvTelegramToken, "")
	t.Setenv("MY_ROUTER_KEY", "sk-from-ref")

	cfg := Default()
	cfg.Completion.APIKey = "${MY_ROUTER_KEY}"
	cfg.Telegram.Token = "literal-token"
	cfg.ApplyEnv()

	assert.Equal(t, "sk-from-ref", cfg.Completion.APIKey)
	assert.Equal(t, "literal-token", cfg.Telegram.Token)
}

func TestLoadEnv(t *testing.T) {
	const key = "AINEWSLDO_TEST_DOTENV_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func validConfig() *Config {
	cfg := Default()
	cfg.Completion.APIKey = "sk-test"
	cfg.Telegram.Token = "123:abc"
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingSecrets(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"no api key", func(c *Config) { c.Completion.APIKey = "" }, "completion.api_key"},
		{"no telegram token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mut(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingSecret), "expected ErrMissingSecret, got %v", err)

			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidateBothSecretsMissing(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvCompletionKey)
	assert.Contains(t, err.Error(), EnvTelegramToken)
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Completion.Timeout = 0 }},
		{"relative url", func(c *Config) { c.Completion.URL = "/v1/chat" }},
		{"empty model", func(c *Config) { c.Completion.Model = " " }},
		{"negative breaker", func(c *Config) { c.Completion.Breaker.FailureThreshold = -1 }},
		{"unknown default persona", func(c *Config) { c.Persona.Default = "Sarcastic" }},
		{"default outside custom set", func(c *Config) {
			c.Persona.Personalities = []persona.Persona{{Label: "Pirate"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mut(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
			assert.False(t, errors.Is(err, ErrMissingSecret))
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()

	red := cfg.Redacted()
	assert.Equal(t, "[redacted]", red.Completion.APIKey)
	assert.Equal(t, "[redacted]", red.Telegram.Token)
	// Receiver untouched
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)

	out, err := red.YAML()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(out), "sk-test"))
	assert.Contains(t, string(out), "timeout: 10s")
}
