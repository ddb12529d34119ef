// Package config provides configuration management for the slack-gpt bot.
// It covers the events HTTP server, the Slack and OpenAI credentials, the
// completion sampling options, and runtime behavior customization.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bot configuration.
// It combines server settings, Slack and OpenAI credentials, logging
// preferences, and pipeline behavior into a single structure.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Slack          SlackConfig          `yaml:"slack"`
	OpenAI         OpenAIConfig         `yaml:"openai"`
	Logging        LoggingConfig        `yaml:"logging"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Queue          QueueConfig          `yaml:"queue"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds server-specific configuration for the events HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response (default: 30s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// SlackConfig holds the Slack workspace credentials and bot behavior.
//
// Both the signing secret and the bot token are required: an empty value
// would otherwise be sent to Slack as a live credential, so absence is a
// configuration error surfaced at startup rather than a silent default.
type SlackConfig struct {
	// SigningSecret verifies inbound event signatures.
	// Use ${SLACK_SIGNING_SECRET} for secure configuration.
	SigningSecret string `yaml:"signing_secret" validate:"required"`

	// BotToken authenticates Web API calls (history fetch, reply post).
	// Use ${SLACK_BOT_TOKEN} for secure configuration.
	BotToken string `yaml:"bot_token" validate:"required"`

	// BotUserID, when set, suppresses mention events authored by the bot
	// itself so the bot never replies to its own messages.
	BotUserID string `yaml:"bot_user_id"`

	// SystemPrompt is the persona instruction sent as the system message
	// on every completion (default: "You are a helpful Slack bot.")
	SystemPrompt string `yaml:"system_prompt"`
}

// OpenAIConfig holds the completion service credentials and request defaults.
type OpenAIConfig struct {
	// APIKey is the bearer credential for the completion service.
	// Use ${OPENAI_API_KEY} for secure configuration.
	APIKey string `yaml:"api_key" validate:"required"`

	// BaseURL is the completion service endpoint
	// (default: https://api.openai.com/v1)
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Model is the model identifier sent on every completion request
	// (default: gpt-3.5-turbo)
	Model string `yaml:"model" validate:"required"`

	// Timeout bounds a single completion call, separately from the overall
	// invocation budget (default: 30s)
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// MaxContextTokens caps the token size of the transcript sent as the
	// user message. Oldest lines are dropped to fit. 0 disables trimming.
	MaxContextTokens int `yaml:"max_context_tokens" validate:"gte=0"`

	// Sampling holds the optional sampling/control parameters forwarded on
	// every completion request. Absent values are omitted from the wire
	// request so the service applies its own defaults.
	Sampling SamplingConfig `yaml:"sampling"`
}

// SamplingConfig enumerates every recognized sampling/control parameter.
// All fields are optional; nil means "not sent". Ranges are not validated
// here — the completion service rejects out-of-range values and the client
// surfaces that rejection as an invalid request error.
type SamplingConfig struct {
	// Temperature controls randomness (service range 0–2)
	Temperature *float64 `yaml:"temperature,omitempty"`

	// TopP is the nucleus-sampling probability mass (service range 0–1)
	TopP *float64 `yaml:"top_p,omitempty"`

	// N is the number of candidate completions to request
	N *int `yaml:"n,omitempty"`

	// Stop lists up to four sequences where generation halts
	Stop []string `yaml:"stop,omitempty"`

	// MaxTokens caps generated tokens per completion
	MaxTokens *int `yaml:"max_tokens,omitempty"`

	// PresencePenalty penalizes tokens already present (service range -2–2)
	PresencePenalty *float64 `yaml:"presence_penalty,omitempty"`

	// FrequencyPenalty penalizes tokens by frequency (service range -2–2)
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty"`

	// LogitBias maps token IDs to bias values
	LogitBias map[string]float64 `yaml:"logit_bias,omitempty"`

	// User is an end-user identifier forwarded for abuse monitoring
	User string `yaml:"user,omitempty"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// RateLimitConfig controls per-client rate limiting on the events endpoint.
type RateLimitConfig struct {
	// Enabled determines if the rate limit middleware is active
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the sustained per-client allowance (default: 60)
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`

	// Burst is the instantaneous per-client allowance (default: 10)
	Burst int `yaml:"burst" validate:"gte=0"`
}

// QueueConfig defines the configuration for the event admission queue
// middleware. It bounds how many inbound events may wait for processing.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// MaxSize is the maximum number of events allowed to wait (default: 100)
	MaxSize int64 `yaml:"max_size" validate:"gte=0"`
}

// CircuitBreakerConfig controls the breaker wrapped around completion calls.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the breaker is half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures needed to trip
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns a configuration with production defaults.
// Credentials are left empty and must come from the YAML file or the
// environment; Validate rejects a config that still lacks them.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Slack: SlackConfig{
			SigningSecret: "${SLACK_SIGNING_SECRET}",
			BotToken:      "${SLACK_BOT_TOKEN}",
			SystemPrompt:  "You are a helpful Slack bot.",
		},
		OpenAI: OpenAIConfig{
			APIKey:  "${OPENAI_API_KEY}",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Queue: QueueConfig{
			Enabled: false,
			MaxSize: 100,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// FromEnv builds a configuration entirely from environment variables, for
// hosts that carry no config file (the Lambda deployment). Credentials
// come from SLACK_SIGNING_SECRET, SLACK_BOT_TOKEN and OPENAI_API_KEY;
// OPENAI_MODEL overrides the default model when set.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.Slack.SigningSecret = expandEnvVars(cfg.Slack.SigningSecret)
	cfg.Slack.BotToken = expandEnvVars(cfg.Slack.BotToken)
	cfg.OpenAI.APIKey = expandEnvVars(cfg.OpenAI.APIKey)
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves environment variable references within
// configuration strings. It supports standard ${VAR} substitution and the
// ${VAR:-default} syntax for default values, and recursively resolves
// nested references until no further substitutions are possible.
func expandEnvVars(s string) string {
	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]
			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}
		return os.Getenv(key)
	})

	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}

	return result
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in the YAML before decoding
	expandedData := expandEnvVars(string(data))

	// Start with defaults
	config := DefaultConfig()

	// Decode YAML on top of defaults
	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid. Struct tags cover range
// and presence checks; anything the tags cannot express is checked by hand.
func (c *Config) Validate() error {
	// An unexpanded placeholder means the environment variable was never
	// set. Reject it so a literal "${...}" is never used as a credential.
	for name, value := range map[string]string{
		"slack.signing_secret": c.Slack.SigningSecret,
		"slack.bot_token":      c.Slack.BotToken,
		"openai.api_key":       c.OpenAI.APIKey,
	} {
		if strings.HasPrefix(value, "${") {
			return fmt.Errorf("%s is not set", name)
		}
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
