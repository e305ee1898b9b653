package bolna

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Webhook is a call-status notification posted by the provider.
type Webhook struct {
	ExecutionID  string
	Status       string
	Transcript   string
	Duration     *int64 // seconds; nil when absent
	RecordingURL string
	Direction    string // "inbound", "outbound" or empty
}

// idKeys are the fields the provider has been seen to put the execution id under.
var idKeys = []string{"execution_id", "executionId", "call_id", "id"}

// terminalStatuses end a call.
var terminalStatuses = map[string]bool{
	"completed":         true,
	"failed":            true,
	"no-answer":         true,
	"busy":              true,
	"voicemail":         true,
	"error":             true,
	"carrier":           true,
	"call-disconnected": true,
}

// Terminal reports whether the webhook status ends the call.
func (w Webhook) Terminal() bool { return terminalStatuses[w.Status] }

// InProgress reports whether the webhook announces a live call.
func (w Webhook) InProgress() bool {
	switch w.Status {
	case "in-progress", "ringing", "initiated", "queued":
		return true
	}
	return false
}

// ParseWebhook decodes a webhook body. Unknown fields are ignored.
func ParseWebhook(body []byte) (Webhook, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Webhook{}, fmt.Errorf("decode webhook: %w", err)
	}
	var w Webhook
	for _, k := range idKeys {
		if s := text(raw[k]); s != "" {
			w.ExecutionID = s
			break
		}
	}
	w.Status = text(raw["status"])
	w.Transcript = text(raw["transcript"])
	w.RecordingURL = text(raw["recording_url"])
	w.Duration = seconds(raw["duration"])
	if d := text(raw["direction"]); d != "" {
		w.Direction = d
	} else if td, ok := raw["telephony_data"].(map[string]any); ok {
		w.Direction = text(td["call_type"])
	}
	return w, nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func seconds(v any) *int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		return &n
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			n := int64(f)
			return &n
		}
	}
	return nil
}
