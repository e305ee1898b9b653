// Package calls owns the single active-call slot: batching, outbound dialing,
// and reconciling provider webhooks into call history.
package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HrushiBorhade/pingme/internal/bolna"
	"github.com/HrushiBorhade/pingme/internal/otel"
	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

var (
	// ErrCallActive is returned when a call is already live or being dialed.
	ErrCallActive = errors.New("a call is already active")
	// ErrNotConfigured is returned when no provider credentials or phone number are set.
	ErrNotConfigured = errors.New("voice calling not configured")
)

// webhookGrace is how long a call must have been live before a webhook
// without an execution id may end it.
const webhookGrace = 5 * time.Second

// Provider is the voice-calling backend.
type Provider interface {
	StartCall(ctx context.Context, req bolna.CallRequest) (bolna.CallResponse, error)
	GetExecution(ctx context.Context, executionID string) (bolna.Execution, error)
}

// Options configures an Orchestrator.
type Options struct {
	Shared      *state.Shared
	Provider    Provider // nil disables outbound calls
	AgentID     string
	Phone       string
	BatchWindow time.Duration
	MaxDuration time.Duration // provider-side call limit; used to reconcile lost webhooks
	// OnChange is called (outside the state lock) after the active call changes.
	OnChange func(event string, call *models.ActiveCall)
	Now      func() time.Time
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	shared      *state.Shared
	provider    Provider
	agentID     string
	phone       string
	window      time.Duration
	maxDuration time.Duration
	onChange    func(string, *models.ActiveCall)
	now         func() time.Time

	mu      sync.Mutex
	batch   []models.EventRecord
	timer   *time.Timer
	gen     uint64
	closed  bool
	dialing bool // guarded by the state lock, not mu

	flushing sync.WaitGroup
}

// New returns an orchestrator over opts.Shared.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		shared:      opts.Shared,
		provider:    opts.Provider,
		agentID:     opts.AgentID,
		phone:       opts.Phone,
		window:      opts.BatchWindow,
		maxDuration: opts.MaxDuration,
		onChange:    opts.OnChange,
		now:         opts.Now,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.onChange == nil {
		o.onChange = func(string, *models.ActiveCall) {}
	}
	return o
}

// Configured reports whether outbound calls can be placed.
func (o *Orchestrator) Configured() bool {
	return o.provider != nil && o.agentID != "" && o.phone != ""
}

// AddToBatch queues ev and restarts the batch window. When the window expires
// without another event, every queued summary is joined into one call.
func (o *Orchestrator) AddToBatch(ev models.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.batch = append(o.batch, ev)
	if o.timer != nil {
		o.timer.Stop()
	}
	o.gen++
	gen := o.gen
	o.timer = time.AfterFunc(o.window, func() { o.flush(gen) })
	slog.Debug("event batched", "event", ev.Event, "batch_size", len(o.batch))
}

func (o *Orchestrator) flush(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || o.closed || len(o.batch) == 0 {
		o.mu.Unlock()
		return
	}
	events := o.batch
	o.batch = nil
	o.timer = nil
	o.flushing.Add(1)
	o.mu.Unlock()
	defer o.flushing.Done()

	summaries := make([]string, len(events))
	for i, e := range events {
		summaries[i] = e.Summary
	}
	reason := strings.Join(summaries, "; ")
	slog.Info("batch window expired, triggering call", "event_count", len(events), "reason", reason)
	if err := o.TriggerCall(context.Background(), reason, models.PriorityNormal); err != nil {
		slog.Warn("batched call not placed", "err", err)
	}
}

// Pending returns the number of batched events waiting for the window to expire.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.batch)
}

// CancelBatch drops the pending batch without calling.
func (o *Orchestrator) CancelBatch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

func (o *Orchestrator) cancelLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.gen++
	o.batch = nil
}

// Shutdown cancels the batch timer and waits for a batch call that is
// already dialing. No batch call starts after it returns.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.cancelLocked()
	o.closed = true
	o.mu.Unlock()
	o.flushing.Wait()
}

// TriggerCall dials the configured phone unless a call is already active or
// being dialed. On success the new call is installed and state persisted.
// Provider failures are returned and leave state untouched.
func (o *Orchestrator) TriggerCall(ctx context.Context, reason string, priority models.Priority) error {
	if !o.Configured() {
		slog.Warn("cannot place outbound call: missing provider config or phone number")
		return ErrNotConfigured
	}

	var busy bool
	var sessionCount, needsAttention int
	o.shared.Update(func(st *state.DaemonState) {
		if st.ActiveCall != nil || o.dialing {
			busy = true
			return
		}
		o.dialing = true
		active := session.ListActive(st)
		sessionCount = len(active)
		for _, s := range active {
			if s.Status.NeedsAttention() {
				needsAttention++
			}
		}
	})
	if busy {
		slog.Info("already on a call, skipping outbound", "reason", reason)
		return ErrCallActive
	}

	slog.Info("triggering outbound call", "reason", reason, "priority", priority)
	resp, err := o.provider.StartCall(ctx, bolna.CallRequest{
		AgentID:              o.agentID,
		RecipientPhoneNumber: o.phone,
		UserData: map[string]string{
			"trigger_reason":  reason,
			"priority":        string(priority),
			"session_count":   strconv.Itoa(sessionCount),
			"needs_attention": strconv.Itoa(needsAttention),
		},
		RetryConfig: bolna.DefaultRetry(),
	})
	if err != nil {
		o.shared.Update(func(*state.DaemonState) { o.dialing = false })
		slog.Error("failed to trigger outbound call", "err", err)
		otel.RecordCall(ctx, "failed")
		return fmt.Errorf("trigger call: %w", err)
	}

	nowMs := o.now().UnixMilli()
	execID := resp.ExecutionID
	if execID == "" {
		execID = fmt.Sprintf("call-%d", nowMs)
	}
	call := &models.ActiveCall{
		ExecutionID:      execID,
		StartedAt:        nowMs,
		Direction:        models.DirectionOutbound,
		TriggerEvent:     models.Ptr(reason),
		EventsDuringCall: []models.EventRecord{},
	}
	o.shared.Update(func(st *state.DaemonState) {
		o.dialing = false
		st.ActiveCall = call
		st.LastCallTime = models.Ptr(nowMs)
	})
	if err := o.shared.Persist(ctx); err != nil {
		slog.Error("persist state after call start", "err", err)
	}
	slog.Info("outbound call initiated", "execution_id", execID)
	otel.RecordCall(ctx, "started")
	o.onChange("call_started", call)
	return nil
}

// CallEnd is what the provider reports when a call finishes.
type CallEnd struct {
	Transcript   string
	Duration     *int64 // seconds; nil means measure from start
	RecordingURL string
}

// OnCallEnd records the active call in history and clears it, provided the
// active call is executionID. It returns false (and changes nothing) when no
// call is active or another call is, so duplicate or late webhooks are harmless.
func (o *Orchestrator) OnCallEnd(executionID string, end CallEnd) bool {
	outcome := o.endIf(end, func(ac *models.ActiveCall, _ time.Duration) WebhookOutcome {
		if ac.ExecutionID != executionID {
			return OutcomeMismatch
		}
		return OutcomeEnded
	})
	switch outcome {
	case OutcomeEnded:
		return true
	case OutcomeMismatch:
		slog.Warn("call end for an execution that is not active, ignoring", "execution_id", executionID)
	default:
		slog.Warn("received call end but no active call tracked", "execution_id", executionID)
	}
	return false
}

// endIf lets decide inspect the active call and its age, and ends the call
// when decide returns OutcomeEnded or OutcomeEndedByAge. The decision and the
// mutation happen under one state lock.
func (o *Orchestrator) endIf(end CallEnd, decide func(ac *models.ActiveCall, age time.Duration) WebhookOutcome) WebhookOutcome {
	var rec models.CallRecord
	outcome := OutcomeNoActiveCall
	now := o.now()
	nowMs := now.UnixMilli()
	o.shared.Update(func(st *state.DaemonState) {
		ac := st.ActiveCall
		if ac == nil {
			return
		}
		outcome = decide(ac, now.Sub(time.UnixMilli(ac.StartedAt)))
		if outcome != OutcomeEnded && outcome != OutcomeEndedByAge {
			return
		}
		dur := (nowMs - ac.StartedAt) / 1000
		if end.Duration != nil {
			dur = *end.Duration
		}
		rec = models.CallRecord{
			ExecutionID:     ac.ExecutionID,
			Direction:       ac.Direction,
			StartedAt:       ac.StartedAt,
			EndedAt:         nowMs,
			DurationSeconds: dur,
			TriggerEvent:    ac.TriggerEvent,
		}
		if end.Transcript != "" {
			rec.TranscriptSummary = models.Ptr(truncate(end.Transcript, models.MaxTranscriptLen))
		}
		if end.RecordingURL != "" {
			rec.RecordingURL = models.Ptr(end.RecordingURL)
		}
		st.CallHistory = append(st.CallHistory, rec)
		if n := len(st.CallHistory); n > models.MaxCallHistory {
			st.CallHistory = append([]models.CallRecord(nil), st.CallHistory[n-models.MaxCallHistory:]...)
		}
		st.ActiveCall = nil
		st.LastCallTime = models.Ptr(nowMs)
	})
	if outcome != OutcomeEnded && outcome != OutcomeEndedByAge {
		return outcome
	}
	o.shared.PersistAsync()
	slog.Info("call ended", "execution_id", rec.ExecutionID, "duration", rec.DurationSeconds, "direction", rec.Direction)
	otel.RecordCall(context.Background(), "ended")
	otel.RecordCallDuration(context.Background(), time.Duration(rec.DurationSeconds)*time.Second)
	o.onChange("call_ended", nil)
	return outcome
}

// RecordDuringCall appends ev to the live call's context. It returns false
// when no call is active.
func (o *Orchestrator) RecordDuringCall(ev models.EventRecord) bool {
	var ok bool
	o.shared.Update(func(st *state.DaemonState) {
		if st.ActiveCall == nil {
			return
		}
		st.ActiveCall.EventsDuringCall = append(st.ActiveCall.EventsDuringCall, ev)
		ok = true
	})
	return ok
}

// AcceptInbound installs an inbound call when none is active.
func (o *Orchestrator) AcceptInbound(executionID string) bool {
	var call *models.ActiveCall
	o.shared.Update(func(st *state.DaemonState) {
		if st.ActiveCall != nil || o.dialing {
			return
		}
		call = &models.ActiveCall{
			ExecutionID:      executionID,
			StartedAt:        o.now().UnixMilli(),
			Direction:        models.DirectionInbound,
			EventsDuringCall: []models.EventRecord{},
		}
		st.ActiveCall = call
	})
	if call == nil {
		return false
	}
	o.CancelBatch()
	o.shared.PersistAsync()
	slog.Info("inbound call accepted", "execution_id", executionID)
	otel.RecordCall(context.Background(), "inbound")
	o.onChange("call_started", call)
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
