// Package client provides a Go SDK for the pingme daemon HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

// Client calls the pingme HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:7331"
	Token      string       // optional; sent as a Bearer token
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:7331").
// Token is the daemon_token; leave empty when the daemon runs without one.
func New(baseURL, token string) *Client {
	return &Client{BaseURL: baseURL, Token: token}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health reports whether /health answered {"status":"ok"}.
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		Status string `json:"status"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.Status == "ok", err
}

// Status returns sessions, the active call, recent calls and queue depth.
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var out models.Status
	err := c.doJSON(ctx, http.MethodGet, "/status", nil, &out)
	return &out, err
}

// Sessions lists live sessions. A non-empty filter matches session names
// case-insensitively by substring.
func (c *Client) Sessions(ctx context.Context, filter string) (*models.SessionList, error) {
	path := "/sessions"
	if filter != "" {
		path += "?session_name=" + url.QueryEscape(filter)
	}
	var out models.SessionList
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

// Route sends an instruction to a session, or queues it when queueIfBusy is set
// and the session is busy. Refusals come back with Success false and Error set.
func (c *Client) Route(ctx context.Context, sessionName, instruction string, queueIfBusy bool) (*models.RouteResult, error) {
	var out models.RouteResult
	err := c.doJSON(ctx, http.MethodPost, "/route", models.RouteRequest{
		SessionName: sessionName,
		Instruction: instruction,
		QueueIfBusy: queueIfBusy,
	}, &out)
	return &out, err
}

// Action runs approve, deny, cancel or status against a session.
func (c *Client) Action(ctx context.Context, sessionName, action string) (*models.ActionResult, error) {
	var out models.ActionResult
	err := c.doJSON(ctx, http.MethodPost, "/action", models.ActionRequest{SessionName: sessionName, Action: action}, &out)
	return &out, err
}

// Call asks the daemon to phone the operator now.
func (c *Client) Call(ctx context.Context, reason string) (*models.CallResult, error) {
	var out models.CallResult
	err := c.doJSON(ctx, http.MethodPost, "/call", map[string]string{"reason": reason}, &out)
	return &out, err
}

// Rename sets the friendly name of the session bound to a tmux pane.
func (c *Client) Rename(ctx context.Context, pane, name string) (*models.Session, error) {
	var out models.RenameResult
	err := c.doJSON(ctx, http.MethodPost, "/sessions/"+url.PathEscape(pane)+"/name", map[string]string{"name": name}, &out)
	if err != nil {
		return nil, err
	}
	return out.Session, nil
}

// PostEvent submits a hook event, as the session shim does.
func (c *Client) PostEvent(ctx context.Context, ev models.HookEvent) (*models.EventAck, error) {
	var out models.EventAck
	err := c.doJSON(ctx, http.MethodPost, "/hooks/event", ev, &out)
	return &out, err
}

// Briefing returns the plain-text call briefing.
func (c *Client) Briefing(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/call/briefing", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api GET /call/briefing: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}
