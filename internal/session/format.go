package session

import (
	"fmt"
	"time"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

// HumanizeAge renders d as "45s", "5m", "2h 30m" or "3d".
func HumanizeAge(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if rem := minutes % 60; hours < 24 {
		if rem > 0 {
			return fmt.Sprintf("%dh %dm", hours, rem)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd", hours/24)
}

// Summarize returns the redacted view of s used by /sessions and /status.
func Summarize(s *models.Session, now time.Time) models.SessionSummary {
	age := now.Sub(time.Unix(s.LastEventTime, 0))
	if age < 0 {
		age = 0
	}
	return models.SessionSummary{
		Name:            s.SessionName,
		Project:         s.Project,
		Status:          s.Status,
		LastActivity:    HumanizeAge(age) + " ago",
		LastMessage:     truncate(s.LastMessage, 200),
		TmuxPane:        s.TmuxPane,
		CanReceiveInput: s.Status.CanReceiveInput(),
		PendingAction:   s.PendingAction,
	}
}
