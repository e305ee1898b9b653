// Package briefing renders the plain-text situation report the voice agent
// reads before and during a call.
package briefing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

var statusLabel = map[models.SessionStatus]string{
	models.StatusActive:     "ACTIVE",
	models.StatusStopped:    "STOPPED",
	models.StatusWaiting:    "WAITING",
	models.StatusAsking:     "ASKING",
	models.StatusPermission: "NEEDS PERMISSION",
	models.StatusEnded:      "ENDED",
}

var urgency = map[models.SessionStatus]int{
	models.StatusPermission: 100,
	models.StatusAsking:     90,
	models.StatusStopped:    50,
	models.StatusWaiting:    30,
	models.StatusActive:     10,
	models.StatusEnded:      0,
}

// Sort orders sessions most urgent first; ties keep their input order.
func Sort(sessions []*models.Session) []*models.Session {
	out := append([]*models.Session(nil), sessions...)
	sort.SliceStable(out, func(i, j int) bool {
		return urgency[out[i].Status] > urgency[out[j].Status]
	})
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PendingLine renders a pending action as one indented line (two for
// questions with options).
func PendingLine(pa *models.PendingAction) string {
	switch pa.Type {
	case models.EventPermission:
		return "  NEEDS APPROVAL: " + pa.Summary
	case models.EventQuestion:
		var b strings.Builder
		b.WriteString("  ASKING YOU: " + pa.Summary)
		for i, o := range pa.Options {
			fmt.Fprintf(&b, "\n    %d. %s", i+1, o)
		}
		return b.String()
	case models.EventStopped:
		if pa.Detail != nil {
			return "  STOPPED: " + pa.Summary + " — " + clip(*pa.Detail, 200)
		}
		return "  STOPPED: " + pa.Summary
	case models.EventTaskCompleted:
		return "  COMPLETED: " + pa.Summary
	case models.EventToolFailed:
		return "  ERROR: " + pa.Summary
	case models.EventNotification:
		return "  NOTIFICATION: " + pa.Summary
	case models.EventSubagentStop:
		return "  SUBAGENT DONE: " + pa.Summary
	case models.EventSubagentStart:
		return "  SUBAGENT LAUNCHED: " + pa.Summary
	case models.EventSessionStart:
		return "  JUST STARTED"
	case models.EventSessionEnd:
		return "  SESSION ENDED"
	case models.EventPreTool:
		return "  ABOUT TO: " + pa.Summary
	}
	return "  " + pa.Summary
}

// Build renders the briefing for the given sessions and (possibly nil) call.
func Build(sessions []*models.Session, call *models.ActiveCall, now time.Time) string {
	sorted := Sort(sessions)
	needs := 0
	for _, s := range sorted {
		if s.Status.NeedsAttention() {
			needs++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT STATE:\n- Total sessions: %d\n- Need attention: %d\n\n", len(sorted), needs)

	if len(sorted) == 0 {
		b.WriteString("No active sessions right now.\n")
	} else {
		b.WriteString("SESSIONS:\n")
		for i, s := range sorted {
			if i > 0 {
				b.WriteString("\n")
			}
			label, ok := statusLabel[s.Status]
			if !ok {
				label = "UNKNOWN"
			}
			age := session.HumanizeAge(now.Sub(time.Unix(s.LastEventTime, 0)))
			fmt.Fprintf(&b, "[%s] %s (%s)\n  Status: %s (%s ago)\n", label, s.SessionName, s.Project, s.Status, age)
			if s.PendingAction != nil {
				b.WriteString(PendingLine(s.PendingAction) + "\n")
			}
			if s.LastMessage != "" {
				b.WriteString("  Last message: " + clip(s.LastMessage, 200) + "\n")
			}
			if s.StopReason != "" && s.PendingAction == nil {
				b.WriteString("  Reason: " + s.StopReason + "\n")
			}
		}
	}

	if call != nil {
		fmt.Fprintf(&b, "\nCALL DIRECTION: %s\n", call.Direction)
		if call.TriggerEvent != nil {
			b.WriteString("CALL REASON: " + *call.TriggerEvent + "\n")
		}
		if len(call.EventsDuringCall) > 0 {
			b.WriteString("\nNEW EVENTS DURING THIS CALL:\n")
			for _, e := range call.EventsDuringCall {
				age := session.HumanizeAge(now.Sub(time.Unix(e.Timestamp, 0)))
				fmt.Fprintf(&b, "- %s (%s ago)\n", e.Summary, age)
			}
		}
	}
	return b.String()
}
