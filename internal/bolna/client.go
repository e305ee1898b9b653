// Package bolna talks to the Bolna voice-agent API and parses its call-status webhooks.
package bolna

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public Bolna API.
const DefaultBaseURL = "https://api.bolna.ai"

// Client calls the Bolna API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // empty uses DefaultBaseURL
	APIKey     string       // sent as a bearer token
	HTTPClient *http.Client // optional; nil uses a client with a 30s timeout
}

// New returns a client for the given API key.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

// RetryConfig asks the provider to redial on its side.
type RetryConfig struct {
	Enabled               bool     `json:"enabled"`
	MaxRetries            int      `json:"max_retries"`
	RetryOnStatuses       []string `json:"retry_on_statuses"`
	RetryIntervalsMinutes []int    `json:"retry_intervals_minutes"`
	RetryOnVoicemail      bool     `json:"retry_on_voicemail"`
}

// DefaultRetry retries twice (after 1 and 3 minutes) on no-answer, busy or
// failure, and on voicemail.
func DefaultRetry() *RetryConfig {
	return &RetryConfig{
		Enabled:               true,
		MaxRetries:            2,
		RetryOnStatuses:       []string{"no-answer", "busy", "failed"},
		RetryIntervalsMinutes: []int{1, 3},
		RetryOnVoicemail:      true,
	}
}

// CallRequest is the body of POST /call.
type CallRequest struct {
	AgentID              string            `json:"agent_id"`
	RecipientPhoneNumber string            `json:"recipient_phone_number"`
	UserData             map[string]string `json:"user_data,omitempty"`
	RetryConfig          *RetryConfig      `json:"retry_config,omitempty"`
}

// CallResponse is returned by POST /call.
type CallResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// Execution is the state of one call as reported by GET /executions/{id}.
type Execution struct {
	ExecutionID  string   `json:"execution_id"`
	Status       string   `json:"status"`
	Transcript   string   `json:"transcript,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	RecordingURL string   `json:"recording_url,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bolna api error: %d %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartCall places an outbound call.
func (c *Client) StartCall(ctx context.Context, req CallRequest) (CallResponse, error) {
	var out CallResponse
	if err := c.doJSON(ctx, http.MethodPost, "/call", req, &out); err != nil {
		return CallResponse{}, fmt.Errorf("start call: %w", err)
	}
	return out, nil
}

// GetExecution fetches the current state of a call.
func (c *Client) GetExecution(ctx context.Context, executionID string) (Execution, error) {
	var out Execution
	if err := c.doJSON(ctx, http.MethodGet, "/executions/"+executionID, nil, &out); err != nil {
		return Execution{}, fmt.Errorf("get execution %s: %w", executionID, err)
	}
	return out, nil
}
