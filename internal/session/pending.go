package session

import (
	"fmt"
	"strconv"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

// payloadString returns payload[key] as text when it is present and non-empty.
// false, 0 and "" count as absent.
func payloadString(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	switch v := m[key].(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		return strconv.FormatBool(v), v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), v != 0
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}

func toolInput(payload map[string]any) map[string]any {
	in, _ := payload["tool_input"].(map[string]any)
	return in
}

func questions(in map[string]any) []map[string]any {
	raw, _ := in["questions"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, q := range raw {
		if m, ok := q.(map[string]any); ok {
			out = append(out, m)
		} else {
			out = append(out, map[string]any{})
		}
	}
	return out
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func runeLen(s string) int { return len([]rune(s)) }

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

// questionAction reads AskUserQuestion input. It returns nil when there is no
// question list.
func questionAction(in map[string]any) *models.PendingAction {
	qs := questions(in)
	if len(qs) == 0 {
		return nil
	}
	q := qs[0]
	text, ok := payloadString(q, "question")
	if !ok {
		text = "Unknown question"
	}
	var labels []string
	if opts, ok := q["options"].([]any); ok {
		for _, o := range opts {
			om, _ := o.(map[string]any)
			label, _ := payloadString(om, "label")
			if desc, ok := payloadString(om, "description"); ok {
				labels = append(labels, label+" — "+desc)
			} else {
				labels = append(labels, label)
			}
		}
	}
	var detail *string
	if len(qs) > 1 {
		detail = models.Ptr(fmt.Sprintf("%d questions total", len(qs)))
	}
	return &models.PendingAction{
		Type:     models.EventQuestion,
		Summary:  truncate(text, models.MaxSummaryLen),
		Detail:   detail,
		Options:  labels,
		ToolName: models.Ptr("AskUserQuestion"),
	}
}

// ExtractPendingAction derives the pending action for an event. It returns nil
// for events that carry nothing actionable.
func ExtractPendingAction(ev models.HookEvent) *models.PendingAction {
	p := ev.Payload
	tool, hasTool := payloadString(p, "tool_name")
	in := toolInput(p)

	switch ev.Event {
	case models.EventPermission:
		return permissionAction(tool, hasTool, in)

	case models.EventQuestion:
		if pa := questionAction(in); pa != nil {
			return pa
		}
		msg, ok := payloadString(p, "message")
		if !ok {
			msg = "Agent is asking a question"
		}
		return &models.PendingAction{
			Type:     models.EventQuestion,
			Summary:  truncate(msg, models.MaxSummaryLen),
			ToolName: models.Ptr("AskUserQuestion"),
		}

	case models.EventStopped:
		reason, hasReason := payloadString(p, "reason")
		msg, hasMsg := payloadString(p, "message")
		summary := "Stopped"
		if hasReason {
			summary = "Stopped: " + reason
		}
		return &models.PendingAction{Type: models.EventStopped, Summary: summary, Detail: optional(msg, hasMsg)}

	case models.EventTaskCompleted:
		msg, hasMsg := payloadString(p, "message")
		summary := "Task completed"
		if hasMsg {
			summary = "Task completed: " + truncate(msg, 200)
		}
		return &models.PendingAction{
			Type:    models.EventTaskCompleted,
			Summary: summary,
			Detail:  optional(msg, runeLen(msg) > 200),
		}

	case models.EventToolFailed:
		errText, ok := payloadString(p, "error")
		if !ok {
			errText, _ = payloadString(p, "message")
		}
		summary := "Tool failed: " + truncate(errText, 200)
		if hasTool {
			summary = tool + " failed: " + truncate(errText, 200)
		}
		return &models.PendingAction{
			Type:     models.EventToolFailed,
			Summary:  summary,
			Detail:   optional(errText, runeLen(errText) > 200),
			ToolName: optional(tool, hasTool),
		}

	case models.EventNotification:
		msg, ok := payloadString(p, "message")
		if !ok {
			msg = "Notification"
		}
		return &models.PendingAction{Type: models.EventNotification, Summary: truncate(msg, models.MaxSummaryLen)}

	case models.EventSubagentStop:
		name, hasName := payloadString(p, "subagent_name")
		msg, hasMsg := payloadString(p, "message")
		summary := "Subagent finished"
		if hasName {
			summary = `Subagent "` + name + `" finished`
		}
		return &models.PendingAction{Type: models.EventSubagentStop, Summary: summary, Detail: optional(msg, hasMsg)}

	case models.EventSubagentStart:
		name, hasName := payloadString(p, "subagent_name")
		desc, hasDesc := payloadString(p, "description")
		summary := "Subagent started"
		if hasName {
			summary = `Subagent "` + name + `" started`
		}
		return &models.PendingAction{Type: models.EventSubagentStart, Summary: summary, Detail: optional(desc, hasDesc)}

	case models.EventSessionStart:
		return &models.PendingAction{Type: models.EventSessionStart, Summary: "Session started"}

	case models.EventSessionEnd:
		return &models.PendingAction{Type: models.EventSessionEnd, Summary: "Session ended"}

	case models.EventPreTool:
		return preToolAction(tool, hasTool, in)
	}
	return nil
}

func permissionAction(tool string, hasTool bool, in map[string]any) *models.PendingAction {
	cmd, hasCmd := payloadString(in, "command")
	path, hasPath := payloadString(in, "file_path")
	switch {
	case tool == "Bash" && hasCmd:
		return &models.PendingAction{
			Type:     models.EventPermission,
			Summary:  "Wants to run: " + truncate(cmd, 200),
			Detail:   optional(cmd, runeLen(cmd) > 200),
			ToolName: models.Ptr(tool),
			Command:  models.Ptr(cmd),
		}
	case tool == "Write" && hasPath:
		return &models.PendingAction{
			Type:     models.EventPermission,
			Summary:  "Wants to create file: " + path,
			ToolName: models.Ptr(tool),
			FilePath: models.Ptr(path),
		}
	case tool == "Edit" && hasPath:
		old, hasOld := payloadString(in, "old_string")
		return &models.PendingAction{
			Type:     models.EventPermission,
			Summary:  "Wants to edit: " + path,
			Detail:   optional(truncate(old, 100), hasOld),
			ToolName: models.Ptr(tool),
			FilePath: models.Ptr(path),
		}
	}
	summary := "Needs permission"
	if hasTool {
		summary = "Needs permission to use " + tool
	}
	return &models.PendingAction{Type: models.EventPermission, Summary: summary, ToolName: optional(tool, hasTool)}
}

func preToolAction(tool string, hasTool bool, in map[string]any) *models.PendingAction {
	if tool == "AskUserQuestion" {
		if pa := questionAction(in); pa != nil {
			return pa
		}
	}
	if !hasTool {
		return nil
	}
	cmd, hasCmd := payloadString(in, "command")
	path, hasPath := payloadString(in, "file_path")
	summary := "About to use " + tool
	switch {
	case tool == "Bash" && hasCmd:
		summary = "About to run: " + truncate(cmd, 200)
	case tool == "Write" && hasPath:
		summary = "About to create: " + path
	case tool == "Edit" && hasPath:
		summary = "About to edit: " + path
	}
	return &models.PendingAction{
		Type:     models.EventPreTool,
		Summary:  summary,
		ToolName: models.Ptr(tool),
		Command:  optional(cmd, hasCmd),
		FilePath: optional(path, hasPath),
	}
}

// EventSummary is the one-line history entry for an event.
func EventSummary(ev models.HookEvent) string {
	if ev.Payload == nil {
		return string(ev.Event)
	}
	if ev.Event == models.EventQuestion || ev.Event == models.EventPreTool {
		if qs := questions(toolInput(ev.Payload)); len(qs) > 0 {
			if q, ok := payloadString(qs[0], "question"); ok {
				return string(ev.Event) + ": " + truncate(q, 120)
			}
		}
	}
	for _, key := range []string{"message", "tool_name", "reason"} {
		if s, ok := payloadString(ev.Payload, key); ok {
			return string(ev.Event) + ": " + truncate(s, 120)
		}
	}
	return string(ev.Event)
}

// StatusFor maps an event to the session status it implies.
func StatusFor(kind models.EventKind) models.SessionStatus {
	switch kind {
	case models.EventSessionStart:
		return models.StatusActive
	case models.EventStopped:
		return models.StatusStopped
	case models.EventQuestion:
		return models.StatusAsking
	case models.EventPermission:
		return models.StatusPermission
	case models.EventSessionEnd:
		return models.StatusEnded
	case models.EventTaskCompleted, models.EventToolFailed, models.EventNotification,
		models.EventSubagentStop, models.EventSubagentStart, models.EventPreTool:
		return models.StatusActive
	}
	return models.StatusActive
}
