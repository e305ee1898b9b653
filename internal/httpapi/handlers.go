package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/HrushiBorhade/pingme/internal/bolna"
	"github.com/HrushiBorhade/pingme/internal/briefing"
	"github.com/HrushiBorhade/pingme/internal/calls"
	"github.com/HrushiBorhade/pingme/internal/decision"
	"github.com/HrushiBorhade/pingme/internal/otel"
	"github.com/HrushiBorhade/pingme/internal/safety"
	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

const notifyTimeout = 10 * time.Second

func (a *App) handleHookEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.HookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if ev.Event == "" || ev.Directory == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required fields: event, directory")
		return
	}
	if ev.TmuxPane != "" && !safety.ValidTarget(ev.TmuxPane) {
		writeJSONError(w, http.StatusBadRequest, "Invalid tmux_pane format")
		return
	}
	if ev.TmuxSession != "" && !safety.ValidTarget(ev.TmuxSession) {
		writeJSONError(w, http.StatusBadRequest, "Invalid tmux_session format")
		return
	}
	now := a.now()
	if ev.Timestamp == 0 {
		ev.Timestamp = now.Unix()
	}
	slog.Debug("hook event received", "event", ev.Event, "pane", ev.TmuxPane, "payload", ev.Payload)
	otel.RecordHookEvent(r.Context(), string(ev.Event))

	var sess *models.Session
	var pending []models.QueuedInstruction
	a.shared.Update(func(st *state.DaemonState) {
		s := a.registry.ApplyEvent(st, ev)
		if ev.Event == models.EventStopped || ev.Event == models.EventTaskCompleted {
			pending = session.TakePending(st, s.ID, now)
		}
		sess = state.CloneSession(s)
	})
	a.Hub.SessionUpdate(session.Summarize(sess, now))

	if len(pending) > 0 {
		a.background(func() { a.deliverQueued(sess, pending) })
	}

	during := models.EventRecord{Event: ev.Event, Timestamp: ev.Timestamp, Summary: sess.SessionName + ": " + string(ev.Event)}
	if a.calls != nil && a.calls.RecordDuringCall(during) {
		slog.Info("event during active call", "event", ev.Event, "session", sess.SessionName)
	} else {
		var act decision.Action
		a.shared.View(func(st *state.DaemonState) {
			act = decision.Decide(ev, st, a.policy, now)
		})
		a.dispatch(ev, sess, act)
	}

	a.shared.PersistAsync()
	writeJSON(w, models.EventAck{Received: true, SessionID: sess.ID})
}

// dispatch carries out a decision. Calls and notifications run in the background.
func (a *App) dispatch(ev models.HookEvent, sess *models.Session, act decision.Action) {
	otel.RecordDecision(context.Background(), string(ev.Event), act.Kind())
	if _, ignored := act.(decision.Ignore); !ignored {
		a.Hub.Decision(sess.SessionName, ev.Event, act.Kind())
	}
	switch act := act.(type) {
	case decision.Call:
		if a.calls == nil {
			a.background(func() { a.notify(decision.FallbackMessage(ev)) })
			return
		}
		a.calls.CancelBatch()
		a.background(func() {
			err := a.calls.TriggerCall(context.Background(), act.Reason, act.Priority)
			switch {
			case err == nil, errors.Is(err, calls.ErrCallActive):
			case errors.Is(err, calls.ErrNotConfigured):
				a.notify(decision.FallbackMessage(ev))
			default:
				slog.Error("failed to trigger call", "err", err)
			}
		})
	case decision.Batch:
		// A batch that can never become a call would be dropped when it flushes.
		if a.calls == nil || !a.calls.Configured() {
			a.background(func() { a.notify(decision.FallbackMessage(ev)) })
			return
		}
		a.calls.AddToBatch(act.Event)
	case decision.Fallback:
		a.background(func() { a.notify(act.Message) })
	case decision.Ignore:
	}
}

func (a *App) notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := a.notifier.Notify(ctx, message); err != nil {
		slog.Warn("fallback notification failed", "err", err)
	}
}

// deliverQueued types the instructions into s in queue order. Instructions
// that now fail the safety check are dropped; delivery failures stay queued.
func (a *App) deliverQueued(s *models.Session, pending []models.QueuedInstruction) {
	ctx := context.Background()
	var failed []string
	for _, q := range pending {
		if rule, blocked := safety.BlockedBy(q.Instruction); blocked {
			slog.Warn("blocked queued instruction at delivery", "session", s.SessionName, "rule", rule, "instruction", clip(q.Instruction, 80))
			otel.RecordInstruction(ctx, "blocked")
			continue
		}
		if err := a.tmux.Deliver(ctx, s, q.Instruction); err != nil {
			slog.Warn("failed to deliver queued instruction", "session", s.SessionName, "err", err)
			otel.RecordInstruction(ctx, "failed")
			failed = append(failed, q.ID)
			continue
		}
		slog.Info("delivered queued instruction", "session", s.SessionName, "instruction", clip(q.Instruction, 80))
		otel.RecordInstruction(ctx, "delivered")
	}
	if len(failed) > 0 {
		a.shared.Update(func(st *state.DaemonState) {
			for _, id := range failed {
				session.Requeue(st, id)
			}
		})
	}
	if err := a.shared.Persist(ctx); err != nil {
		slog.Error("persist state after queued delivery", "err", err)
	}
}

func (a *App) handleSessions(w http.ResponseWriter, r *http.Request) {
	filter := strings.ToLower(r.URL.Query().Get("session_name"))
	now := a.now()
	out := []models.SessionSummary{}
	a.shared.View(func(st *state.DaemonState) {
		for _, s := range session.ListActive(st) {
			if filter != "" && !strings.Contains(strings.ToLower(s.SessionName), filter) {
				continue
			}
			out = append(out, session.Summarize(state.CloneSession(s), now))
		}
	})
	writeJSON(w, models.SessionList{Sessions: out, Total: len(out)})
}

// findSession returns a copy of the session matching name, or the names of
// the active sessions when none matches.
func (a *App) findSession(name string) (*models.Session, []string) {
	var found *models.Session
	var names []string
	a.shared.View(func(st *state.DaemonState) {
		if s := session.FindByName(st, name); s != nil {
			found = state.CloneSession(s)
			return
		}
		for _, s := range session.ListActive(st) {
			names = append(names, s.SessionName)
		}
	})
	return found, names
}

// queueIfBusy accepts a JSON boolean or the string "true".
func queueIfBusy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func (a *App) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionName == "" || req.Instruction == "" {
		writeJSONStatus(w, http.StatusBadRequest, models.RouteResult{Error: "Missing session_name or instruction"})
		return
	}
	if rule, blocked := safety.BlockedBy(req.Instruction); blocked {
		slog.Warn("instruction blocked by safety filter", "session", req.SessionName, "rule", rule)
		otel.RecordInstruction(r.Context(), "blocked")
		writeJSON(w, models.RouteResult{Error: "Instruction blocked by safety filter"})
		return
	}
	target, names := a.findSession(req.SessionName)
	if target == nil {
		writeJSON(w, models.RouteResult{
			Error:             fmt.Sprintf("No session found matching %q", req.SessionName),
			AvailableSessions: names,
		})
		return
	}

	if target.Status.CanReceiveInput() {
		if err := a.tmux.Deliver(r.Context(), target, req.Instruction); err != nil {
			slog.Warn("route delivery failed", "session", target.SessionName, "err", err)
			otel.RecordInstruction(r.Context(), "failed")
			writeJSON(w, models.RouteResult{Message: err.Error()})
			return
		}
		otel.RecordInstruction(r.Context(), "delivered")
		a.Hub.Instruction(target.SessionName, false)
		writeJSON(w, models.RouteResult{Success: true, Message: fmt.Sprintf("Sent %q to %s", req.Instruction, target.SessionName)})
		return
	}

	if !queueIfBusy(req.QueueIfBusy) {
		writeJSON(w, models.RouteResult{
			Error:      fmt.Sprintf("Session %q is currently working and not accepting input.", target.SessionName),
			Suggestion: "Set queue_if_busy to true to queue the instruction.",
		})
		return
	}
	var err error
	a.shared.Update(func(st *state.DaemonState) {
		_, err = session.Enqueue(st, target.ID, req.Instruction, a.now())
	})
	if errors.Is(err, session.ErrQueueFull) {
		writeJSON(w, models.RouteResult{Error: "Instruction queue is full. Try again later."})
		return
	}
	a.shared.PersistAsync()
	otel.RecordInstruction(r.Context(), "queued")
	a.Hub.Instruction(target.SessionName, true)
	writeJSON(w, models.RouteResult{
		Success: true,
		Queued:  true,
		Message: fmt.Sprintf("Session %q is busy. Instruction queued for delivery when it next stops.", target.SessionName),
	})
}

func (a *App) handleAction(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionName == "" || req.Action == "" {
		writeJSONStatus(w, http.StatusBadRequest, models.ActionResult{Error: "Missing session_name or action"})
		return
	}
	s, _ := a.findSession(req.SessionName)
	if s == nil {
		writeJSON(w, models.ActionResult{Error: fmt.Sprintf("Session %q not found", req.SessionName)})
		return
	}

	switch req.Action {
	case models.ActionApprove, models.ActionDeny:
		if s.Status != models.StatusPermission {
			writeJSON(w, models.ActionResult{Error: "Session is not waiting for permission"})
			return
		}
		key, verb := "y", "Approved"
		if req.Action == models.ActionDeny {
			key, verb = "n", "Denied"
		}
		if err := a.tmux.Deliver(r.Context(), s, key); err != nil {
			writeJSON(w, models.ActionResult{Message: err.Error()})
			return
		}
		writeJSON(w, models.ActionResult{Success: true, Message: fmt.Sprintf("%s permission for %s", verb, s.SessionName)})
	case models.ActionCancel:
		if err := a.tmux.Interrupt(r.Context(), s); err != nil {
			slog.Warn("cancel failed", "session", s.SessionName, "err", err)
			writeJSON(w, models.ActionResult{Error: "Failed to send cancel signal"})
			return
		}
		writeJSON(w, models.ActionResult{Success: true, Message: "Sent cancel signal to " + s.SessionName})
	case models.ActionStatus:
		if n := len(s.RecentEvents); n > 10 {
			s.RecentEvents = s.RecentEvents[n-10:]
		}
		writeJSON(w, models.ActionResult{Success: true, Session: s})
	default:
		writeJSON(w, models.ActionResult{Error: "Unknown action: " + req.Action})
	}
}

// handleBolnaWebhook always answers 200 so the provider does not retry;
// whether the webhook changed anything is decided by the orchestrator.
func (a *App) handleBolnaWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("read bolna webhook body", "err", err)
		writeJSON(w, map[string]any{"received": true})
		return
	}
	hook, err := bolna.ParseWebhook(body)
	if err != nil {
		slog.Warn("unparseable bolna webhook", "err", err)
		otel.RecordWebhook(r.Context(), "invalid")
		writeJSON(w, map[string]any{"received": true})
		return
	}
	outcome := calls.OutcomeIgnored
	if a.calls != nil {
		outcome = a.calls.HandleWebhook(hook)
	}
	otel.RecordWebhook(r.Context(), string(outcome))
	writeJSON(w, map[string]any{"received": true})
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	out := models.Status{
		Sessions:      []models.SessionSummary{},
		RecentCalls:   []models.CallRecord{},
		UptimeSeconds: int64(now.Sub(a.startedAt) / time.Second),
	}
	a.shared.View(func(st *state.DaemonState) {
		for _, s := range session.ListActive(st) {
			out.Sessions = append(out.Sessions, session.Summarize(state.CloneSession(s), now))
		}
		if st.ActiveCall != nil {
			c := *st.ActiveCall
			c.EventsDuringCall = append([]models.EventRecord{}, st.ActiveCall.EventsDuringCall...)
			out.ActiveCall = &c
		}
		recent := st.CallHistory
		if n := len(recent); n > 10 {
			recent = recent[n-10:]
		}
		out.RecentCalls = append(out.RecentCalls, recent...)
		out.QueuedInstructions = st.UndeliveredCount()
	})
	writeJSON(w, out)
}

func (a *App) handleRename(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	pane, ok := strings.CutSuffix(rest, "/name")
	if !ok || pane == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Name == "" {
		writeJSONStatus(w, http.StatusBadRequest, models.RenameResult{Error: "Missing name"})
		return
	}
	var renamed *models.Session
	a.shared.Update(func(st *state.DaemonState) {
		if s := session.Rename(st, pane, body.Name); s != nil {
			renamed = state.CloneSession(s)
		}
	})
	if renamed == nil {
		writeJSONStatus(w, http.StatusNotFound, models.RenameResult{Error: fmt.Sprintf("No session found for pane %q", pane)})
		return
	}
	a.shared.PersistAsync()
	a.Hub.SessionUpdate(session.Summarize(renamed, a.now()))
	writeJSON(w, models.RenameResult{Success: true, Session: renamed})
}

func (a *App) handleCall(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Reason == "" {
		body.Reason = "manual trigger"
	}
	if a.calls == nil {
		writeJSON(w, models.CallResult{Error: "Voice calling is not configured"})
		return
	}
	err := a.calls.TriggerCall(r.Context(), body.Reason, models.PriorityHigh)
	switch {
	case err == nil:
		writeJSON(w, models.CallResult{Success: true, Message: "Call triggered"})
	case errors.Is(err, calls.ErrCallActive):
		writeJSON(w, models.CallResult{Error: "A call is already active"})
	case errors.Is(err, calls.ErrNotConfigured):
		writeJSON(w, models.CallResult{Error: "Voice calling is not configured (set bolna.api_key, bolna.agent_id and phone)"})
	default:
		writeJSON(w, models.CallResult{Error: err.Error()})
	}
}

func (a *App) handleBriefing(w http.ResponseWriter, r *http.Request) {
	var sessions []*models.Session
	var call *models.ActiveCall
	a.shared.View(func(st *state.DaemonState) {
		for _, s := range session.ListActive(st) {
			sessions = append(sessions, state.CloneSession(s))
		}
		if st.ActiveCall != nil {
			c := *st.ActiveCall
			c.EventsDuringCall = append([]models.EventRecord{}, st.ActiveCall.EventsDuringCall...)
			call = &c
		}
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, briefing.Build(sessions, call, a.now()))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
