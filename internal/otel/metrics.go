package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce      sync.Once
	hookEventsCounter    metric.Int64Counter
	decisionsCounter     metric.Int64Counter
	callsCounter         metric.Int64Counter
	callDuration         metric.Float64Histogram
	webhooksCounter      metric.Int64Counter
	notificationsCounter metric.Int64Counter
	instructionsCounter  metric.Int64Counter
	sseConnectionsGauge  metric.Int64ObservableGauge
	sseEventsCounter     metric.Int64Counter
	sseConnections       int64
	sseConnectionsMu     sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		hookEventsCounter, err = m.Int64Counter("pingme_hook_events_total", metric.WithDescription("Hook events received, by event kind"))
		if err != nil {
			return
		}
		decisionsCounter, err = m.Int64Counter("pingme_decisions_total", metric.WithDescription("Decision engine outcomes (call, batch, fallback, ignore)"))
		if err != nil {
			return
		}
		callsCounter, err = m.Int64Counter("pingme_calls_total", metric.WithDescription("Voice calls by status (started, failed, ended)"))
		if err != nil {
			return
		}
		callDuration, err = m.Float64Histogram("pingme_call_duration_seconds", metric.WithDescription("Voice call duration in seconds"))
		if err != nil {
			return
		}
		webhooksCounter, err = m.Int64Counter("pingme_provider_webhooks_total", metric.WithDescription("Voice provider webhooks by outcome"))
		if err != nil {
			return
		}
		notificationsCounter, err = m.Int64Counter("pingme_notifications_total", metric.WithDescription("Fallback notifications sent, by notifier and status"))
		if err != nil {
			return
		}
		instructionsCounter, err = m.Int64Counter("pingme_instructions_total", metric.WithDescription("Routed instructions by outcome (delivered, queued, blocked, failed)"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("pingme_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("pingme_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordHookEvent records one hook event by kind.
func RecordHookEvent(ctx context.Context, kind string) {
	if hookEventsCounter == nil {
		return
	}
	hookEventsCounter.Add(ctx, 1, metric.WithAttributes(AttrEvent.String(kind)))
}

// RecordDecision records the action the decision engine chose for an event.
func RecordDecision(ctx context.Context, event, decision string) {
	if decisionsCounter == nil {
		return
	}
	decisionsCounter.Add(ctx, 1, metric.WithAttributes(AttrEvent.String(event), AttrDecision.String(decision)))
}

// RecordCall records a call lifecycle transition.
func RecordCall(ctx context.Context, status string) {
	if callsCounter == nil {
		return
	}
	callsCounter.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
}

// RecordCallDuration records how long a finished call lasted.
func RecordCallDuration(ctx context.Context, d time.Duration) {
	if callDuration == nil {
		return
	}
	callDuration.Record(ctx, d.Seconds())
}

// RecordWebhook records a provider webhook by how it was handled.
func RecordWebhook(ctx context.Context, outcome string) {
	if webhooksCounter == nil {
		return
	}
	webhooksCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordNotification records one fallback notification attempt.
func RecordNotification(ctx context.Context, notifier, status string) {
	if notificationsCounter == nil {
		return
	}
	notificationsCounter.Add(ctx, 1, metric.WithAttributes(AttrNotifier.String(notifier), AttrStatus.String(status)))
}

// RecordInstruction records what happened to a routed instruction.
func RecordInstruction(ctx context.Context, outcome string) {
	if instructionsCounter == nil {
		return
	}
	instructionsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// GaugeFunc returns the current session count per status, the number of
// undelivered queued instructions, and whether a call is active.
type GaugeFunc func() (byStatus map[string]int64, queued int64, callActive bool)

// InitMetricsWithGauges creates instruments and optionally registers a callback for
// the session, queue and active-call gauges. If gauges is nil they are not reported.
func InitMetricsWithGauges(ctx context.Context, gauges GaugeFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if gauges == nil {
		return nil
	}
	m := Meter()
	sessionsGauge, err := m.Int64ObservableGauge("pingme_sessions", metric.WithDescription("Tracked sessions by status"))
	if err != nil {
		return err
	}
	queueGauge, err := m.Int64ObservableGauge("pingme_queued_instructions", metric.WithDescription("Undelivered queued instructions"))
	if err != nil {
		return err
	}
	callGauge, err := m.Int64ObservableGauge("pingme_active_call", metric.WithDescription("1 while a voice call is in progress"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		byStatus, queued, active := gauges()
		for status, n := range byStatus {
			o.ObserveInt64(sessionsGauge, n, metric.WithAttributes(AttrStatus.String(status)))
		}
		o.ObserveInt64(queueGauge, queued)
		var v int64
		if active {
			v = 1
		}
		o.ObserveInt64(callGauge, v)
		return nil
	}, sessionsGauge, queueGauge, callGauge)
	return err
}
