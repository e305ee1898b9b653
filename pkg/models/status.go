package models

// EventKind is the name of a hook event posted by the session shim.
type EventKind string

// Hook event kinds. Every switch over EventKind in this module lists each of these explicitly.
const (
	EventSessionStart  EventKind = "session_start"
	EventSessionEnd    EventKind = "session_end"
	EventStopped       EventKind = "stopped"
	EventQuestion      EventKind = "question"
	EventPermission    EventKind = "permission"
	EventTaskCompleted EventKind = "task_completed"
	EventToolFailed    EventKind = "tool_failed"
	EventNotification  EventKind = "notification"
	EventSubagentStop  EventKind = "subagent_stop"
	EventSubagentStart EventKind = "subagent_start"
	EventPreTool       EventKind = "pre_tool"
)

// Known reports whether k is one of the enumerated event kinds.
func (k EventKind) Known() bool {
	switch k {
	case EventSessionStart, EventSessionEnd, EventStopped, EventQuestion, EventPermission,
		EventTaskCompleted, EventToolFailed, EventNotification, EventSubagentStop,
		EventSubagentStart, EventPreTool:
		return true
	}
	return false
}

// SessionStatus is the coarse state of a tracked session.
type SessionStatus string

// Session statuses.
const (
	StatusActive     SessionStatus = "active"
	StatusStopped    SessionStatus = "stopped"
	StatusWaiting    SessionStatus = "waiting"
	StatusAsking     SessionStatus = "asking"
	StatusPermission SessionStatus = "permission"
	StatusEnded      SessionStatus = "ended"
)

// CanReceiveInput reports whether a session in this status is sitting at a prompt.
func (s SessionStatus) CanReceiveInput() bool {
	switch s {
	case StatusStopped, StatusAsking, StatusPermission:
		return true
	}
	return false
}

// NeedsAttention reports whether the session is blocked on a human.
func (s SessionStatus) NeedsAttention() bool {
	return s.CanReceiveInput()
}

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Remote-control actions accepted by POST /action.
const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
	ActionCancel  = "cancel"
	ActionStatus  = "status"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSSEChannelBuffer    = 256
	MaxRecentEvents            = 20
	MaxCallHistory             = 50
	MaxQueueDepth              = 200
	MaxLastMessageLen          = 500
	MaxSummaryLen              = 300
	MaxTranscriptLen           = 500
	DefaultPort                = 7331
)

// Priority of an outbound call.
type Priority string

// Call priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)
