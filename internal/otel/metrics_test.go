package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitMetrics_records(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordHookEvent(ctx, "permission")
	RecordDecision(ctx, "permission", "call")
	RecordCall(ctx, "started")
	RecordCallDuration(ctx, 42*time.Second)
	RecordWebhook(ctx, "ended")
	RecordNotification(ctx, "log", "ok")
	RecordInstruction(ctx, "queued")
	RecordSSEEvent(ctx)
	_ = handler
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
	sseConnectionsMu.Lock()
	n := sseConnections
	sseConnectionsMu.Unlock()
	if n != 0 {
		t.Fatalf("sseConnections = %d, want 0", n)
	}
}

func TestInitMetricsWithGauges(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "gauges-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	err = InitMetricsWithGauges(ctx, func() (map[string]int64, int64, bool) {
		return map[string]int64{"active": 2, "permission": 1}, 3, true
	})
	if err != nil {
		t.Fatalf("InitMetricsWithGauges: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pingme_queued_instructions") {
		t.Errorf("queue gauge missing from /metrics output")
	}
}

func TestInitMetricsWithGauges_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "gauges-nil-test")
	if err := InitMetricsWithGauges(ctx, nil); err != nil {
		t.Fatalf("InitMetricsWithGauges(nil): %v", err)
	}
}
