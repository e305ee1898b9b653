// Package notify sends fallback text alerts when a call is not placed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/HrushiBorhade/pingme/internal/otel"
)

// Notifier delivers a one-line message to a human.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, message string) error
}

// Fanout sends every message to all registered notifiers.
type Fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewFanout returns a fanout over ns.
func NewFanout(ns ...Notifier) *Fanout {
	return &Fanout{notifiers: ns}
}

// Register adds n.
func (f *Fanout) Register(n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiers = append(f.notifiers, n)
}

// Names lists registered notifiers.
func (f *Fanout) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.notifiers))
	for i, n := range f.notifiers {
		out[i] = n.Name()
	}
	return out
}

// Name implements Notifier.
func (f *Fanout) Name() string { return "fanout" }

// Notify sends message everywhere and joins the errors.
func (f *Fanout) Notify(ctx context.Context, message string) error {
	f.mu.RLock()
	ns := append([]Notifier(nil), f.notifiers...)
	f.mu.RUnlock()
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, message); err != nil {
			otel.RecordNotification(ctx, n.Name(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		otel.RecordNotification(ctx, n.Name(), "ok")
	}
	return errors.Join(errs...)
}

// Log writes the message to the daemon log. It is always registered so
// fallback alerts are never silently lost.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Notify(_ context.Context, message string) error {
	slog.Info("fallback notification", "message", message)
	return nil
}

// SlackWebhook posts messages to a Slack incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Username   string // optional
	HTTPClient *http.Client
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return errors.New("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
