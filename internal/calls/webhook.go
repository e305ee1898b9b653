package calls

import (
	"context"
	"log/slog"
	"time"

	"github.com/HrushiBorhade/pingme/internal/bolna"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

// WebhookOutcome says what a provider webhook did.
type WebhookOutcome string

const (
	OutcomeEnded          WebhookOutcome = "ended"
	OutcomeEndedByAge     WebhookOutcome = "ended_by_age"
	OutcomeTooFresh       WebhookOutcome = "ignored_fresh"
	OutcomeMismatch       WebhookOutcome = "ignored_mismatch"
	OutcomeNoActiveCall   WebhookOutcome = "no_active_call"
	OutcomeInboundStarted WebhookOutcome = "inbound_started"
	OutcomeIgnored        WebhookOutcome = "ignored"
)

// HandleWebhook reconciles a call-status webhook. The endpoint is
// unauthenticated, so a terminal status only ends the active call when the
// execution id matches it exactly, or when the id is missing and the call has
// been live for longer than the grace period. Mismatched ids are ignored.
func (o *Orchestrator) HandleWebhook(w bolna.Webhook) WebhookOutcome {
	slog.Info("bolna webhook", "execution_id", w.ExecutionID, "status", w.Status, "duration", w.Duration)

	if w.InProgress() && w.Direction == "inbound" && w.ExecutionID != "" {
		if o.AcceptInbound(w.ExecutionID) {
			return OutcomeInboundStarted
		}
		return OutcomeIgnored
	}
	if !w.Terminal() {
		return OutcomeIgnored
	}

	var activeID string
	var age time.Duration
	end := CallEnd{Transcript: w.Transcript, Duration: w.Duration, RecordingURL: w.RecordingURL}
	outcome := o.endIf(end, func(ac *models.ActiveCall, callAge time.Duration) WebhookOutcome {
		activeID, age = ac.ExecutionID, callAge
		switch {
		case w.ExecutionID != "" && w.ExecutionID == ac.ExecutionID:
			return OutcomeEnded
		case w.ExecutionID == "" && callAge > webhookGrace:
			return OutcomeEndedByAge
		case w.ExecutionID == "":
			return OutcomeTooFresh
		default:
			return OutcomeMismatch
		}
	})

	switch outcome {
	case OutcomeEnded:
		slog.Info("cleared active call on terminal status", "status", w.Status, "execution_id", w.ExecutionID)
	case OutcomeEndedByAge:
		slog.Warn("webhook missing execution_id, cleared active call by age", "status", w.Status, "call_age_ms", age.Milliseconds(), "execution_id", activeID)
	case OutcomeTooFresh:
		slog.Warn("webhook missing execution_id and call too fresh, ignoring", "status", w.Status, "call_age_ms", age.Milliseconds())
	case OutcomeMismatch:
		slog.Warn("webhook execution_id mismatch, ignoring", "received", w.ExecutionID, "expected", activeID)
	}
	return outcome
}

// ReconcileStale asks the provider about an active call that has outlived the
// maximum call duration (its terminal webhook was probably lost) and ends it
// if the provider reports a terminal status. A call older than twice the limit
// is ended regardless. Either way the call is only ended if it is still the
// one that was looked up.
func (o *Orchestrator) ReconcileStale(ctx context.Context) bool {
	if o.maxDuration <= 0 {
		return false
	}
	var id string
	var age time.Duration
	o.shared.View(func(st *state.DaemonState) {
		if st.ActiveCall != nil {
			id = st.ActiveCall.ExecutionID
			age = o.now().Sub(time.UnixMilli(st.ActiveCall.StartedAt))
		}
	})
	if id == "" || age <= o.maxDuration+time.Minute {
		return false
	}
	if o.provider != nil {
		ex, err := o.provider.GetExecution(ctx, id)
		if err == nil && (bolna.Webhook{Status: ex.Status}).Terminal() {
			var dur *int64
			if ex.Duration != nil {
				d := int64(*ex.Duration)
				dur = &d
			}
			slog.Info("reconciled stale call from provider", "execution_id", id, "status", ex.Status)
			return o.OnCallEnd(id, CallEnd{Transcript: ex.Transcript, Duration: dur, RecordingURL: ex.RecordingURL})
		}
		if err != nil {
			slog.Warn("stale call lookup failed", "execution_id", id, "err", err)
		}
	}
	if age > 2*o.maxDuration {
		slog.Warn("clearing stale active call", "execution_id", id, "age", age.String())
		return o.OnCallEnd(id, CallEnd{})
	}
	return false
}
