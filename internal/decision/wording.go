package decision

import (
	"fmt"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func hasQuestion(payload map[string]any) bool {
	in, _ := payload["tool_input"].(map[string]any)
	qs, _ := in["questions"].([]any)
	if len(qs) == 0 {
		return false
	}
	q, _ := qs[0].(map[string]any)
	return stringField(q, "question") != ""
}

// VoiceReason is the sentence the voice agent opens the call with.
func VoiceReason(ev models.HookEvent) string {
	project := ev.Project
	if project == "" {
		project = "a session"
	}
	tool := stringField(ev.Payload, "tool_name")
	in, _ := ev.Payload["tool_input"].(map[string]any)

	switch ev.Event {
	case models.EventPermission:
		switch {
		case tool == "Bash" && stringField(in, "command") != "":
			return project + " needs permission to run a command"
		case tool == "Write" || tool == "Edit":
			return project + " needs permission to modify a file"
		}
		return project + " needs your permission"
	case models.EventQuestion:
		if hasQuestion(ev.Payload) {
			return project + " has a question for you"
		}
		return project + " needs your input"
	case models.EventStopped:
		if r := stringField(ev.Payload, "reason"); r != "" && !silentStopReasons[r] {
			return project + " stopped unexpectedly"
		}
		return project + " finished and stopped"
	case models.EventTaskCompleted:
		return project + " completed a task"
	case models.EventToolFailed, models.EventNotification, models.EventSubagentStop,
		models.EventSubagentStart, models.EventPreTool, models.EventSessionStart, models.EventSessionEnd:
		return project + " needs attention"
	}
	return project + " needs attention"
}

// FallbackMessage is the one-line text sent when a call is not placed.
func FallbackMessage(ev models.HookEvent) string {
	project := ev.Project
	if project == "" {
		project = "unknown"
	}
	msg := stringField(ev.Payload, "message")
	switch ev.Event {
	case models.EventStopped:
		if r := stringField(ev.Payload, "reason"); r != "" {
			return fmt.Sprintf("[pingme] %s stopped: %s", project, r)
		}
		return fmt.Sprintf("[pingme] %s stopped", project)
	case models.EventQuestion:
		if msg == "" {
			msg = "needs input"
		}
		return fmt.Sprintf("[pingme] %s is asking: %s", project, msg)
	case models.EventPermission:
		if msg != "" {
			return fmt.Sprintf("[pingme] %s needs permission: %s", project, msg)
		}
		return fmt.Sprintf("[pingme] %s needs permission", project)
	case models.EventTaskCompleted:
		return fmt.Sprintf("[pingme] %s completed a task", project)
	case models.EventToolFailed:
		tool := stringField(ev.Payload, "tool_name")
		if tool == "" {
			tool = "unknown"
		}
		return fmt.Sprintf("[pingme] %s tool failed: %s", project, tool)
	case models.EventNotification, models.EventSubagentStop, models.EventSubagentStart,
		models.EventPreTool, models.EventSessionStart, models.EventSessionEnd:
	}
	return fmt.Sprintf("[pingme] %s: %s", project, ev.Event)
}
