// Package models provides shared types for the pingme HTTP API, its persisted state and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

// HookEvent is what the session shim posts to /hooks/event.
type HookEvent struct {
	Event       EventKind      `json:"event"`
	Project     string         `json:"project"`
	Directory   string         `json:"directory"`
	TmuxSession string         `json:"tmux_session"`
	TmuxPane    string         `json:"tmux_pane"`
	Timestamp   int64          `json:"timestamp,omitempty"` // epoch seconds
	Payload     map[string]any `json:"payload,omitempty"`
}

// PendingAction is the latest actionable interpretation of a session's most recent event.
type PendingAction struct {
	Type     EventKind `json:"type"`
	Summary  string    `json:"summary"`
	Detail   *string   `json:"detail"`
	Options  []string  `json:"options"`
	ToolName *string   `json:"tool_name"`
	Command  *string   `json:"command"`
	FilePath *string   `json:"file_path"`
}

// EventRecord is an immutable (event, timestamp, summary) tuple.
type EventRecord struct {
	Event     EventKind `json:"event"`
	Timestamp int64     `json:"timestamp"`
	Summary   string    `json:"summary"`
}

// Session is one observed interactive terminal session.
type Session struct {
	ID            string         `json:"id"`
	Project       string         `json:"project"`
	Directory     string         `json:"directory"`
	TmuxSession   string         `json:"tmux_session"`
	TmuxPane      string         `json:"tmux_pane"`
	Status        SessionStatus  `json:"status"`
	LastEvent     EventKind      `json:"last_event"`
	LastEventTime int64          `json:"last_event_time"` // epoch seconds
	RecentEvents  []EventRecord  `json:"recent_events"`
	LastMessage   string         `json:"last_message"`
	LastTool      string         `json:"last_tool"`
	StopReason    string         `json:"stop_reason"`
	RegisteredAt  int64          `json:"registered_at"` // epoch ms
	SessionName   string         `json:"session_name"`
	PendingAction *PendingAction `json:"pending_action"`
}

// ActiveCall is the single in-flight voice call, if any.
type ActiveCall struct {
	ExecutionID      string        `json:"bolna_execution_id"`
	StartedAt        int64         `json:"started_at"` // epoch ms
	Direction        string        `json:"direction"`
	TriggerEvent     *string       `json:"trigger_event"`
	EventsDuringCall []EventRecord `json:"events_during_call"`
}

// CallRecord is written to the call history when a call ends.
type CallRecord struct {
	ExecutionID       string  `json:"execution_id"`
	Direction         string  `json:"direction"`
	StartedAt         int64   `json:"started_at"` // epoch ms
	EndedAt           int64   `json:"ended_at"`   // epoch ms
	DurationSeconds   int64   `json:"duration_seconds"`
	TriggerEvent      *string `json:"trigger_event"`
	TranscriptSummary *string `json:"transcript_summary"`
	RecordingURL      *string `json:"recording_url,omitempty"`
}

// QueuedInstruction is a remote-control instruction waiting for its session to stop.
type QueuedInstruction struct {
	ID              string `json:"id"`
	TargetSessionID string `json:"target_session_id"`
	Instruction     string `json:"instruction"`
	QueuedAt        int64  `json:"queued_at"` // epoch ms
	DeliverOn       string `json:"deliver_on"`
	Delivered       bool   `json:"delivered"`
	DeliveredAt     *int64 `json:"delivered_at"`
}

// DeliverOnNextStop is the only delivery policy queued instructions use.
const DeliverOnNextStop = "next_stop"

// SessionSummary is the redacted session view returned by /sessions and /status.
type SessionSummary struct {
	Name            string         `json:"name"`
	Project         string         `json:"project"`
	Status          SessionStatus  `json:"status"`
	LastActivity    string         `json:"last_activity"`
	LastMessage     string         `json:"last_message,omitempty"`
	TmuxPane        string         `json:"tmux_pane"`
	CanReceiveInput bool           `json:"can_receive_input"`
	PendingAction   *PendingAction `json:"pending_action"`
}

// SessionList is the /sessions response.
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// RouteRequest is the /route body.
type RouteRequest struct {
	SessionName string `json:"session_name"`
	Instruction string `json:"instruction"`
	QueueIfBusy any    `json:"queue_if_busy"` // bool or "true"/"false"
}

// RouteResult is the /route response.
type RouteResult struct {
	Success           bool     `json:"success"`
	Queued            bool     `json:"queued,omitempty"`
	Message           string   `json:"message,omitempty"`
	Error             string   `json:"error,omitempty"`
	AvailableSessions []string `json:"available_sessions,omitempty"`
	Suggestion        string   `json:"suggestion,omitempty"`
}

// ActionRequest is the /action body.
type ActionRequest struct {
	SessionName string `json:"session_name"`
	Action      string `json:"action"`
}

// ActionResult is the /action response.
type ActionResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Session *Session `json:"session,omitempty"`
}

// Status is the /status response.
type Status struct {
	Sessions           []SessionSummary `json:"sessions"`
	ActiveCall         *ActiveCall      `json:"active_call"`
	RecentCalls        []CallRecord     `json:"recent_calls"`
	UptimeSeconds      int64            `json:"uptime_seconds"`
	QueuedInstructions int              `json:"queued_instructions"`
}

// EventAck is the /hooks/event response.
type EventAck struct {
	Received  bool   `json:"received"`
	SessionID string `json:"session_id"`
}

// CallResult is the /call response.
type CallResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RenameResult is the /sessions/{pane}/name response.
type RenameResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Session *Session `json:"session,omitempty"`
}

// Ptr returns a pointer to v; convenient for the nullable JSON fields above.
func Ptr[T any](v T) *T {
	return &v
}
