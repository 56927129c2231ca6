// Package inference is a minimal client for a local text-generation endpoint
// speaking the Ollama-style /api/generate protocol.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultEndpoint = "http://localhost:11434/api/generate"
	DefaultModel    = "llama3.2"
)

// GenerateRequest is the body posted to the endpoint.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateResponse is the non-streaming reply.
type GenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Client posts prompts to a generation endpoint.
type Client struct {
	// Endpoint is the absolute URL of the generate API.
	Endpoint string
	// Model is sent verbatim in each request.
	Model string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Headers are added to every request.
	Headers http.Header
	// APIKey, when set, is sent as a bearer token.
	APIKey string
}

// Generate sends prompt and returns the generated text. The call has no
// deadline of its own; callers bound it through ctx.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.Endpoint == "" {
		return "", errors.New("inference: endpoint is not configured")
	}
	body, err := json.Marshal(GenerateRequest{
		Model:  c.Model,
		Prompt: prompt + ".",
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("inference: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("inference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("Llama API error: %s", statusText(resp))
	}
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("inference: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("Llama API error: %s", out.Error)
	}
	return out.Response, nil
}

func (c *Client) httpClient() *http.Client {
	base := c.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	if len(c.Headers) == 0 && c.APIKey == "" {
		return base
	}
	clone := *base
	clone.Transport = &headerDecorator{
		next:    defaultRoundTripper(base.Transport),
		headers: cloneHeader(c.Headers),
		apiKey:  c.APIKey,
	}
	return &clone
}

// statusText mirrors the reason phrase ("Not Found"), falling back to the
// numeric status when the phrase is unknown.
func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(resp.Status)
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
	apiKey  string
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if d.apiKey != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}

func cloneHeader(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	clone := make(http.Header, len(h))
	for k, values := range h {
		clone[k] = append([]string(nil), values...)
	}
	return clone
}
