package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HrushiBorhade/pingme/internal/otel"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

// SSEHub fans JSON events out to /stream subscribers. A subscriber that falls
// more than DefaultSSEChannelBuffer events behind misses events rather than
// stalling publishers.
type SSEHub struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subs: make(map[chan []byte]struct{})}
}

func (h *SSEHub) Subscribe() chan []byte {
	ch := make(chan []byte, models.DefaultSSEChannelBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	otel.AddSSEConnection()
	return ch
}

func (h *SSEHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
		otel.RemoveSSEConnection()
	}
	h.mu.Unlock()
}

func (h *SSEHub) PublishJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	otel.RecordSSEEvent(context.Background())
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
		}
	}
}

// Stream event types.
const (
	EventSessionUpdate = "session_update"
	EventDecision      = "decision"
	EventInstruction   = "instruction"
	EventCallUpdate    = "call_update"
	EventSweep         = "sweep"
)

// SessionUpdate publishes the redacted view of a changed session.
func (h *SSEHub) SessionUpdate(s models.SessionSummary) {
	h.PublishJSON(map[string]any{"type": EventSessionUpdate, "session": s})
}

// Decision publishes what the decision engine chose for a session's event.
func (h *SSEHub) Decision(sessionName string, event models.EventKind, decision string) {
	h.PublishJSON(map[string]any{"type": EventDecision, "session": sessionName, "event": event, "decision": decision})
}

// Instruction publishes a routed instruction; queued is false when it was typed immediately.
func (h *SSEHub) Instruction(sessionName string, queued bool) {
	h.PublishJSON(map[string]any{"type": EventInstruction, "session": sessionName, "queued": queued})
}

// CallUpdate publishes an active-call change. Its signature matches
// calls.Options.OnChange.
func (h *SSEHub) CallUpdate(event string, call *models.ActiveCall) {
	h.PublishJSON(map[string]any{"type": EventCallUpdate, "event": event, "call": call})
}

// Sweep publishes the result of a maintenance pass.
func (h *SSEHub) Sweep(sessionsRemoved, instructionsPruned int) {
	h.PublishJSON(map[string]any{"type": EventSweep, "sessions_removed": sessionsRemoved, "instructions_pruned": instructionsPruned})
}

func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.Subscribe()
		defer h.Unsubscribe(ch)

		_, _ = fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
		flusher.Flush()

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = fmt.Fprintf(w, "data: %s\n\n", string(msg))
				flusher.Flush()
			}
		}
	}
}
