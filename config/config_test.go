package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
slack:
  signing_secret: shhh
  bot_token: xoxb-test
openai:
  api_key: sk-test
`

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	// Credentials from the file
	assert.Equal(t, "shhh", cfg.Slack.SigningSecret)
	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)

	// Defaults preserved underneath
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.Equal(t, "You are a helpful Slack bot.", cfg.Slack.SystemPrompt)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SIGNING_SECRET", "from-env")
	t.Setenv("TEST_BOT_TOKEN", "xoxb-env")
	t.Setenv("TEST_OPENAI_KEY", "sk-env")

	yaml := `
slack:
  signing_secret: ${TEST_SIGNING_SECRET}
  bot_token: ${TEST_BOT_TOKEN}
openai:
  api_key: ${TEST_OPENAI_KEY}
  model: ${TEST_MODEL:-gpt-4}
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Slack.SigningSecret)
	assert.Equal(t, "xoxb-env", cfg.Slack.BotToken)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model, "default value syntax should apply when unset")
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no credentials at all",
			yaml: `logging: {level: info, format: json}`,
		},
		{
			name: "missing openai key",
			yaml: `
slack:
  signing_secret: shhh
  bot_token: xoxb-test
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err, "absent credentials must be a configuration error")
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad log level",
			yaml: minimalYAML + `
logging:
  level: verbose
  format: json
`,
		},
		{
			name: "bad port",
			yaml: minimalYAML + `
server:
  port: 99999
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfig_PlaceholdersRejected(t *testing.T) {
	// DefaultConfig carries ${...} placeholders; Validate must refuse to
	// treat them as live credentials.
	err := DefaultConfig().Validate()
	assert.Error(t, err)
}

func TestLoad_SamplingOptions(t *testing.T) {
	yaml := `
slack:
  signing_secret: shhh
  bot_token: xoxb-test
openai:
  api_key: sk-test
  sampling:
    temperature: 0.7
    top_p: 0.9
    max_tokens: 256
    stop: ["\n\n"]
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	require.NotNil(t, cfg.OpenAI.Sampling.Temperature)
	assert.Equal(t, 0.7, *cfg.OpenAI.Sampling.Temperature)
	require.NotNil(t, cfg.OpenAI.Sampling.TopP)
	assert.Equal(t, 0.9, *cfg.OpenAI.Sampling.TopP)
	require.NotNil(t, cfg.OpenAI.Sampling.MaxTokens)
	assert.Equal(t, 256, *cfg.OpenAI.Sampling.MaxTokens)
	assert.Equal(t, []string{"\n\n"}, cfg.OpenAI.Sampling.Stop)
	assert.Nil(t, cfg.OpenAI.Sampling.N, "unset options stay nil")
}
