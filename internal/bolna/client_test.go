package bolna

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartCall(t *testing.T) {
	var got CallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-1" {
			t.Errorf("authorization: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-9", "status": "queued"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1")
	resp, err := c.StartCall(context.Background(), CallRequest{
		AgentID:              "agent",
		RecipientPhoneNumber: "+15550001111",
		UserData:             map[string]string{"trigger_reason": "test"},
		RetryConfig:          DefaultRetry(),
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if resp.ExecutionID != "exec-9" {
		t.Errorf("execution id: %q", resp.ExecutionID)
	}
	if got.AgentID != "agent" || got.UserData["trigger_reason"] != "test" {
		t.Errorf("request body: %+v", got)
	}
	if got.RetryConfig == nil || got.RetryConfig.MaxRetries != 2 || len(got.RetryConfig.RetryIntervalsMinutes) != 2 {
		t.Errorf("retry config: %+v", got.RetryConfig)
	}
}

func TestStartCall_apiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid agent", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").StartCall(context.Background(), CallRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status: %d", apiErr.StatusCode)
	}
}

func TestGetExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/executions/e1" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"execution_id":"e1","status":"completed","duration":42}`))
	}))
	defer srv.Close()

	ex, err := New(srv.URL, "k").GetExecution(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if ex.Status != "completed" || ex.Duration == nil || *ex.Duration != 42 {
		t.Errorf("execution: %+v", ex)
	}
}

func TestParseWebhook(t *testing.T) {
	cases := []struct {
		body string
		id   string
	}{
		{`{"execution_id":"a","status":"completed"}`, "a"},
		{`{"executionId":"b","status":"completed"}`, "b"},
		{`{"call_id":"c","status":"completed"}`, "c"},
		{`{"id":"d","status":"completed"}`, "d"},
		{`{"execution_id":"","id":"e","status":"completed"}`, "e"},
		{`{"status":"completed"}`, ""},
	}
	for _, tc := range cases {
		w, err := ParseWebhook([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.body, err)
		}
		if w.ExecutionID != tc.id {
			t.Errorf("%s: id %q, want %q", tc.body, w.ExecutionID, tc.id)
		}
	}

	w, err := ParseWebhook([]byte(`{"id":"x","status":"busy","transcript":"hi","duration":"12.5","recording_url":"https://r","telephony_data":{"call_type":"inbound"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !w.Terminal() || w.Transcript != "hi" || w.Duration == nil || *w.Duration != 12 || w.RecordingURL != "https://r" || w.Direction != "inbound" {
		t.Errorf("webhook: %+v", w)
	}
	if _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestWebhookStatuses(t *testing.T) {
	for _, s := range []string{"completed", "failed", "no-answer", "busy", "voicemail", "error", "carrier", "call-disconnected"} {
		if !(Webhook{Status: s}).Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{"in-progress", "ringing", ""} {
		if (Webhook{Status: s}).Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !(Webhook{Status: "in-progress"}).InProgress() {
		t.Error("in-progress should be live")
	}
}
