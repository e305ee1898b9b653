// Package session tracks observed terminal sessions inside the shared daemon state.
//
// All functions take the *state.DaemonState they operate on and expect the
// caller to hold the state lock (state.Shared.Update or View).
package session

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/google/uuid"
)

// Registry applies hook events to sessions.
type Registry struct {
	now   func() time.Time
	newID func() string
}

// NewRegistry returns a registry using the wall clock and random UUIDs.
func NewRegistry() *Registry {
	return &Registry{now: time.Now, newID: uuid.NewString}
}

// WithClock returns a copy of r that reads time from now.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	c := *r
	c.now = now
	return &c
}

// ApplyEvent finds or creates the session keyed by (directory, tmux_pane) and
// folds the event into it. The returned pointer aliases state.
func (r *Registry) ApplyEvent(st *state.DaemonState, ev models.HookEvent) *models.Session {
	record := models.EventRecord{Event: ev.Event, Timestamp: ev.Timestamp, Summary: EventSummary(ev)}
	msg, hasMsg := payloadString(ev.Payload, "message")
	tool, hasTool := payloadString(ev.Payload, "tool_name")

	if sess := findByKey(st, ev.Directory, ev.TmuxPane); sess != nil {
		sess.Status = StatusFor(ev.Event)
		sess.LastEvent = ev.Event
		sess.LastEventTime = ev.Timestamp
		sess.RecentEvents = appendCapped(sess.RecentEvents, record, models.MaxRecentEvents)
		sess.PendingAction = ExtractPendingAction(ev)
		if hasMsg {
			sess.LastMessage = truncate(msg, models.MaxLastMessageLen)
		}
		if hasTool {
			sess.LastTool = tool
		}
		if ev.Event == models.EventStopped {
			if reason, ok := payloadString(ev.Payload, "reason"); ok {
				sess.StopReason = reason
			}
		}
		slog.Debug("updated session", "id", sess.ID, "event", ev.Event)
		return sess
	}

	id := r.newID()
	name := ev.Project
	if name == "" {
		name = "session-" + truncate(id, 8)
	}
	sess := &models.Session{
		ID:            id,
		Project:       ev.Project,
		Directory:     ev.Directory,
		TmuxSession:   ev.TmuxSession,
		TmuxPane:      ev.TmuxPane,
		Status:        StatusFor(ev.Event),
		LastEvent:     ev.Event,
		LastEventTime: ev.Timestamp,
		RecentEvents:  []models.EventRecord{record},
		RegisteredAt:  r.now().UnixMilli(),
		SessionName:   name,
		PendingAction: ExtractPendingAction(ev),
	}
	if hasMsg {
		sess.LastMessage = truncate(msg, models.MaxLastMessageLen)
	}
	if hasTool {
		sess.LastTool = tool
	}
	st.Sessions[id] = sess
	slog.Info("registered new session", "id", id, "name", name, "pane", ev.TmuxPane)
	return sess
}

func appendCapped(list []models.EventRecord, rec models.EventRecord, max int) []models.EventRecord {
	list = append(list, rec)
	if len(list) > max {
		list = append([]models.EventRecord(nil), list[len(list)-max:]...)
	}
	return list
}

func findByKey(st *state.DaemonState, dir, pane string) *models.Session {
	for _, s := range ordered(st) {
		if s.Directory == dir && s.TmuxPane == pane {
			return s
		}
	}
	return nil
}

// ordered returns sessions in registration order (registered_at, then id).
func ordered(st *state.DaemonState) []*models.Session {
	out := make([]*models.Session, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt != out[j].RegisteredAt {
			return out[i].RegisteredAt < out[j].RegisteredAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByName returns the first session whose name equals name (case-insensitive)
// or, failing that, the first whose name contains it. Several substring matches
// are not disambiguated: the earliest registered session wins.
func FindByName(st *state.DaemonState, name string) *models.Session {
	lower := strings.ToLower(name)
	sessions := ordered(st)
	for _, s := range sessions {
		if strings.ToLower(s.SessionName) == lower {
			return s
		}
	}
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.SessionName), lower) {
			return s
		}
	}
	return nil
}

// FindByPane returns the session at the exact tmux pane address.
func FindByPane(st *state.DaemonState, pane string) *models.Session {
	for _, s := range ordered(st) {
		if s.TmuxPane == pane {
			return s
		}
	}
	return nil
}

// SweepStale removes sessions idle for longer than maxAgeMinutes and returns
// how many were removed.
func (r *Registry) SweepStale(st *state.DaemonState, maxAgeMinutes int) int {
	nowMs := r.now().UnixMilli()
	maxAgeMs := int64(maxAgeMinutes) * 60 * 1000
	removed := 0
	for id, s := range st.Sessions {
		if nowMs-s.LastEventTime*1000 > maxAgeMs {
			slog.Info("removing stale session", "id", id, "name", s.SessionName)
			delete(st.Sessions, id)
			removed++
		}
	}
	return removed
}

// ListActive returns every session that has not ended, in registration order.
func ListActive(st *state.DaemonState) []*models.Session {
	var out []*models.Session
	for _, s := range ordered(st) {
		if s.Status != models.StatusEnded {
			out = append(out, s)
		}
	}
	return out
}

// Rename sets the display name of the session at pane.
func Rename(st *state.DaemonState, pane, name string) *models.Session {
	s := FindByPane(st, pane)
	if s == nil {
		return nil
	}
	s.SessionName = name
	return s
}
