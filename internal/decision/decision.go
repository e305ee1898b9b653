// Package decision classifies hook events into notification actions.
package decision

import (
	"time"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

// Action is one of Call, Batch, Fallback or Ignore.
type Action interface {
	Kind() string
	action()
}

// Call places an outbound call now.
type Call struct {
	Reason   string
	Priority models.Priority
}

// Batch folds the event into the pending batch (or the live call).
type Batch struct {
	Event models.EventRecord
}

// Fallback sends a text message instead of calling.
type Fallback struct {
	Message string
}

// Ignore drops the event.
type Ignore struct{}

func (Call) Kind() string     { return "call" }
func (Batch) Kind() string    { return "batch" }
func (Fallback) Kind() string { return "fallback" }
func (Ignore) Kind() string   { return "ignore" }

func (Call) action()     {}
func (Batch) action()    {}
func (Fallback) action() {}
func (Ignore) action()   {}

// silentStopReasons are normal completions that never warrant a call.
var silentStopReasons = map[string]bool{"end_turn": true, "max_turns": true}

// Decide maps an event to an action. It reads st but never mutates it, and
// uses now for quiet hours and cooldown, so identical inputs give identical output.
func Decide(ev models.HookEvent, st *state.DaemonState, policy config.Policy, now time.Time) Action {
	switch ev.Event {
	case models.EventSessionStart, models.EventSessionEnd, models.EventNotification:
		return Ignore{}
	case models.EventStopped, models.EventQuestion, models.EventPermission, models.EventTaskCompleted,
		models.EventToolFailed, models.EventSubagentStop, models.EventSubagentStart, models.EventPreTool:
		// policy checks below
	}

	if st.ActiveCall != nil {
		return Batch{Event: Record(ev)}
	}

	if InQuietHours(policy.QuietHours, now) {
		if policy.QuietHours.Mode == config.QuietModeSilent {
			return Ignore{}
		}
		return Fallback{Message: FallbackMessage(ev)}
	}

	if st.LastCallTime != nil && now.UnixMilli()-*st.LastCallTime < policy.Cooldown().Milliseconds() {
		return Fallback{Message: FallbackMessage(ev)}
	}

	enabled := policy.CallEnabled(ev.Event)
	switch ev.Event {
	case models.EventPermission, models.EventQuestion:
		if enabled {
			return Call{Reason: VoiceReason(ev), Priority: models.PriorityHigh}
		}
		return Fallback{Message: FallbackMessage(ev)}

	case models.EventStopped:
		if silentStopReasons[stringField(ev.Payload, "reason")] {
			return Ignore{}
		}
		if enabled {
			return Batch{Event: Record(ev)}
		}
		return Fallback{Message: FallbackMessage(ev)}

	case models.EventTaskCompleted:
		if enabled {
			return Batch{Event: Record(ev)}
		}
		return Fallback{Message: FallbackMessage(ev)}

	case models.EventToolFailed, models.EventSubagentStop, models.EventSubagentStart, models.EventPreTool,
		models.EventSessionStart, models.EventSessionEnd, models.EventNotification:
		return Ignore{}
	}
	return Ignore{}
}

// InQuietHours reports whether now falls inside q. A window whose start is
// after its end wraps past midnight.
func InQuietHours(q config.QuietHours, now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := config.ParseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := config.ParseClock(q.End)
	if err != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if start > end {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

// Record is the batch entry for ev; its summary reads as a spoken reason.
func Record(ev models.HookEvent) models.EventRecord {
	return models.EventRecord{Event: ev.Event, Timestamp: ev.Timestamp, Summary: VoiceReason(ev)}
}
