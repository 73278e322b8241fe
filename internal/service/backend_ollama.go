package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaBackend talks to a local Ollama daemon through its
// OpenAI-compatible endpoint. Reachability is probed against the
// native /api/tags route because it needs no model load.
type OllamaBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaBackend creates an Ollama backend
func NewOllamaBackend(baseURL, chatModel string, timeout time.Duration) *OllamaBackend {
	return &OllamaBackend{
		baseURL: baseURL,
		model:   chatModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OllamaBackend) ID() string       { return "ollama" }
func (o *OllamaBackend) Name() string     { return "Ollama (local)" }
func (o *OllamaBackend) IsCloud() bool    { return false }
func (o *OllamaBackend) Models() []string { return []string{o.model} }

// IsEnabled returns whether a base URL is configured
func (o *OllamaBackend) IsEnabled() bool {
	return o.baseURL != ""
}

// Probe checks the daemon is up via /api/tags
func (o *OllamaBackend) Probe(ctx context.Context) error {
	if !o.IsEnabled() {
		return fmt.Errorf("ollama is not configured")
	}

	url := fmt.Sprintf("%s/api/tags", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama probe failed with status %d", resp.StatusCode)
	}

	return nil
}

// ChatCompletion performs a chat completion against the
// OpenAI-compatible /v1/chat/completions route
func (o *OllamaBackend) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !o.IsEnabled() {
		return nil, fmt.Errorf("ollama is not configured")
	}

	if req.Model == "" {
		req.Model = o.model
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}
