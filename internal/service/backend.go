package service

import (
	"context"

	"propfinder/internal/model"
)

// AIBackend is the interface every chat provider implements. All
// current backends speak the OpenAI chat completion dialect, so the
// request/response types are shared.
type AIBackend interface {
	// ID returns the stable identifier used in API routes ("groq",
	// "ollama", "openai")
	ID() string

	// Name returns a human-readable provider name
	Name() string

	// IsCloud reports whether the backend is a remote paid service
	IsCloud() bool

	// Models returns the model names this backend is configured with
	Models() []string

	// Probe checks reachability without sending a completion
	Probe(ctx context.Context) error

	// ChatCompletion performs a single chat completion request
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)

	// IsEnabled returns whether the backend is configured and usable
	IsEnabled() bool
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the format of the response
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Content returns the first choice's message content, or ""
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Info builds the wire representation for a backend
func backendInfo(b AIBackend, available bool) model.ProviderInfo {
	return model.ProviderInfo{
		ID:        b.ID(),
		Name:      b.Name(),
		Available: available,
		Models:    b.Models(),
		IsCloud:   b.IsCloud(),
	}
}
