package decision

import (
	"testing"
	"time"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func policy() config.Policy {
	return config.Default("").Policy
}

func permissionEvent() models.HookEvent {
	return models.HookEvent{
		Event:     models.EventPermission,
		Project:   "api",
		Directory: "/a",
		TmuxPane:  "s:0.0",
		Timestamp: noon.Unix(),
		Payload: map[string]any{
			"tool_name":  "Bash",
			"tool_input": map[string]any{"command": "rm important.txt"},
		},
	}
}

func TestDecide_permissionCallsHigh(t *testing.T) {
	a := Decide(permissionEvent(), state.New(), policy(), noon)
	call, ok := a.(Call)
	require.True(t, ok, "got %#v", a)
	assert.Equal(t, models.PriorityHigh, call.Priority)
	assert.Contains(t, call.Reason, "permission")
	assert.Equal(t, "api needs permission to run a command", call.Reason)
}

func TestDecide_isPure(t *testing.T) {
	st := state.New()
	st.LastCallTime = models.Ptr(noon.Add(-10 * time.Second).UnixMilli())
	before := st.Clone()
	for _, ev := range []models.HookEvent{permissionEvent(), {Event: models.EventStopped, Project: "x"}} {
		first := Decide(ev, st, policy(), noon)
		second := Decide(ev, st, policy(), noon)
		assert.Equal(t, first, second)
	}
	assert.Equal(t, before, st)
}

func TestDecide_silentKindsAlwaysIgnored(t *testing.T) {
	st := state.New()
	st.ActiveCall = &models.ActiveCall{ExecutionID: "x"}
	for _, k := range []models.EventKind{models.EventSessionStart, models.EventSessionEnd, models.EventNotification} {
		assert.Equal(t, Ignore{}, Decide(models.HookEvent{Event: k}, st, policy(), noon), k)
	}
}

func TestDecide_activeCallBatches(t *testing.T) {
	st := state.New()
	st.ActiveCall = &models.ActiveCall{ExecutionID: "x"}
	a := Decide(permissionEvent(), st, policy(), noon)
	b, ok := a.(Batch)
	require.True(t, ok, "got %#v", a)
	assert.Equal(t, models.EventPermission, b.Event.Event)
	assert.Equal(t, noon.Unix(), b.Event.Timestamp)
}

func TestInQuietHours_wrapAround(t *testing.T) {
	q := config.QuietHours{Enabled: true, Start: "23:00", End: "07:00", Mode: config.QuietModeSMS}
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	assert.True(t, InQuietHours(q, at(23, 30)))
	assert.True(t, InQuietHours(q, at(6, 30)))
	assert.True(t, InQuietHours(q, at(23, 0)))
	assert.False(t, InQuietHours(q, at(7, 0)))
	assert.False(t, InQuietHours(q, at(12, 0)))

	day := config.QuietHours{Enabled: true, Start: "09:00", End: "17:00"}
	assert.True(t, InQuietHours(day, at(12, 0)))
	assert.False(t, InQuietHours(day, at(18, 0)))

	q.Enabled = false
	assert.False(t, InQuietHours(q, at(23, 30)))
}

func TestDecide_quietHoursModes(t *testing.T) {
	late := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	p := policy()

	a := Decide(permissionEvent(), state.New(), p, late)
	fb, ok := a.(Fallback)
	require.True(t, ok, "got %#v", a)
	assert.Equal(t, "[pingme] api needs permission", fb.Message)

	p.QuietHours.Mode = config.QuietModeFallback
	_, ok = Decide(permissionEvent(), state.New(), p, late).(Fallback)
	assert.True(t, ok)

	p.QuietHours.Mode = config.QuietModeSilent
	assert.Equal(t, Ignore{}, Decide(permissionEvent(), state.New(), p, late))
}

func TestDecide_cooldown(t *testing.T) {
	st := state.New()
	st.LastCallTime = models.Ptr(noon.Add(-30 * time.Second).UnixMilli())
	_, ok := Decide(permissionEvent(), st, policy(), noon).(Fallback)
	assert.True(t, ok, "inside cooldown")

	st.LastCallTime = models.Ptr(noon.Add(-61 * time.Second).UnixMilli())
	_, ok = Decide(permissionEvent(), st, policy(), noon).(Call)
	assert.True(t, ok, "cooldown elapsed")
}

func TestDecide_callOnDisabled(t *testing.T) {
	p := policy()
	p.CallOn.Permission = false
	p.CallOn.Question = false
	p.CallOn.TaskCompleted = false
	p.CallOn.Stopped = false

	_, ok := Decide(permissionEvent(), state.New(), p, noon).(Fallback)
	assert.True(t, ok)
	_, ok = Decide(models.HookEvent{Event: models.EventQuestion, Project: "a"}, state.New(), p, noon).(Fallback)
	assert.True(t, ok)
	_, ok = Decide(models.HookEvent{Event: models.EventTaskCompleted, Project: "a"}, state.New(), p, noon).(Fallback)
	assert.True(t, ok)
	_, ok = Decide(models.HookEvent{Event: models.EventStopped, Project: "a", Payload: map[string]any{"reason": "error"}}, state.New(), p, noon).(Fallback)
	assert.True(t, ok)
}

func TestDecide_stopped(t *testing.T) {
	for _, reason := range []string{"end_turn", "max_turns"} {
		ev := models.HookEvent{Event: models.EventStopped, Project: "web", Payload: map[string]any{"reason": reason}}
		assert.Equal(t, Ignore{}, Decide(ev, state.New(), policy(), noon), reason)
	}
	ev := models.HookEvent{Event: models.EventStopped, Project: "web", Payload: map[string]any{"reason": "api_error"}}
	b, ok := Decide(ev, state.New(), policy(), noon).(Batch)
	require.True(t, ok)
	assert.Equal(t, "web stopped unexpectedly", b.Event.Summary)
}

func TestDecide_taskCompletedBatchesAndOthersIgnored(t *testing.T) {
	b, ok := Decide(models.HookEvent{Event: models.EventTaskCompleted, Project: "web"}, state.New(), policy(), noon).(Batch)
	require.True(t, ok)
	assert.Equal(t, "web completed a task", b.Event.Summary)

	p := policy()
	p.CallOn.Error = true
	for _, k := range []models.EventKind{models.EventToolFailed, models.EventSubagentStop, models.EventSubagentStart, models.EventPreTool, "unknown"} {
		assert.Equal(t, Ignore{}, Decide(models.HookEvent{Event: k}, state.New(), p, noon), k)
	}
}

func TestWording(t *testing.T) {
	q := models.HookEvent{Event: models.EventQuestion, Payload: map[string]any{
		"tool_input": map[string]any{"questions": []any{map[string]any{"question": "Which?"}}},
	}}
	assert.Equal(t, "a session has a question for you", VoiceReason(q))
	assert.Equal(t, "[pingme] unknown is asking: needs input", FallbackMessage(q))

	edit := models.HookEvent{Event: models.EventPermission, Project: "p", Payload: map[string]any{"tool_name": "Edit", "message": "edit x"}}
	assert.Equal(t, "p needs permission to modify a file", VoiceReason(edit))
	assert.Equal(t, "[pingme] p needs permission: edit x", FallbackMessage(edit))

	failed := models.HookEvent{Event: models.EventToolFailed, Project: "p"}
	assert.Equal(t, "[pingme] p tool failed: unknown", FallbackMessage(failed))
	assert.Equal(t, "[pingme] p: subagent_stop", FallbackMessage(models.HookEvent{Event: models.EventSubagentStop, Project: "p"}))
}

func TestActionKinds(t *testing.T) {
	assert.Equal(t, "call", Call{}.Kind())
	assert.Equal(t, "batch", Batch{}.Kind())
	assert.Equal(t, "fallback", Fallback{}.Kind())
	assert.Equal(t, "ignore", Ignore{}.Kind())
}
