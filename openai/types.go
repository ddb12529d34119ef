package openai

// Model identifies a chat model supported by the completion service.
type Model string

const (
	ModelGPT4           Model = "gpt-4"
	ModelGPT40314       Model = "gpt-4-0314"
	ModelGPT432K        Model = "gpt-4-32k"
	ModelGPT432K0314    Model = "gpt-4-32k-0314"
	ModelGPT35Turbo     Model = "gpt-3.5-turbo"
	ModelGPT35Turbo0301 Model = "gpt-3.5-turbo-0301"
)

var supportedModels = map[Model]bool{
	ModelGPT4:           true,
	ModelGPT40314:       true,
	ModelGPT432K:        true,
	ModelGPT432K0314:    true,
	ModelGPT35Turbo:     true,
	ModelGPT35Turbo0301: true,
}

// Supported reports whether m is one of the known model identifiers.
func (m Model) Supported() bool {
	return supportedModels[m]
}

// Role tags the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged message in a chat completion exchange.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the wire request for the chat completions
// endpoint. Optional parameters use pointers (or nilable types) so that
// absent values are omitted entirely and the service applies its own
// defaults. Parameter ranges are not validated here; the service's
// rejection is surfaced as an invalid request error.
type ChatCompletionRequest struct {
	Model    Model     `json:"model"`
	Messages []Message `json:"messages"`

	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	N                *int               `json:"n,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	MaxTokens        *int               `json:"max_tokens,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	User             string             `json:"user,omitempty"`
}

// Choice is one candidate completion in a response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption for a completion exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the wire response from the chat completions
// endpoint. Treated as read-only once decoded.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// apiErrorBody is the structured error envelope the service returns
// alongside a non-2xx status.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
