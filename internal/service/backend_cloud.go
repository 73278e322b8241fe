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

// CloudBackend is an OpenAI-compatible chat backend. Groq and OpenAI
// differ only in base URL, key and model, so one implementation
// serves both.
type CloudBackend struct {
	id         string
	name       string
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

// NewCloudBackend creates an OpenAI-compatible backend
func NewCloudBackend(id, name, apiKey, apiBase, chatModel string, timeout time.Duration) *CloudBackend {
	return &CloudBackend{
		id:      id,
		name:    name,
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   chatModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *CloudBackend) ID() string       { return c.id }
func (c *CloudBackend) Name() string     { return c.name }
func (c *CloudBackend) IsCloud() bool    { return true }
func (c *CloudBackend) Models() []string { return []string{c.model} }

// IsEnabled returns whether an API key is configured
func (c *CloudBackend) IsEnabled() bool {
	return c.apiKey != ""
}

// Probe verifies the API is reachable with the configured key
func (c *CloudBackend) Probe(ctx context.Context) error {
	if !c.IsEnabled() {
		return fmt.Errorf("%s API is not enabled (missing API key)", c.name)
	}

	url := fmt.Sprintf("%s/models", c.apiBase)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s probe failed with status %d", c.name, resp.StatusCode)
	}

	return nil
}

// ChatCompletion performs a chat completion request
func (c *CloudBackend) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("%s API is not enabled (missing API key)", c.name)
	}

	if req.Model == "" {
		req.Model = c.model
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.apiBase)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(httpReq)
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
