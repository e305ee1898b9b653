package session

import (
	"errors"
	"time"

	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/oklog/ulid/v2"
)

// ErrQueueFull is returned when the instruction queue is at capacity after pruning.
var ErrQueueFull = errors.New("instruction queue is full")

// PruneQueue drops delivered instructions and keeps at most the newest
// MaxQueueDepth undelivered ones. It returns how many entries were removed.
func PruneQueue(st *state.DaemonState) int {
	before := len(st.InstructionQueue)
	kept := st.InstructionQueue[:0]
	for _, q := range st.InstructionQueue {
		if !q.Delivered {
			kept = append(kept, q)
		}
	}
	if n := len(kept); n > models.MaxQueueDepth {
		kept = kept[n-models.MaxQueueDepth:]
	}
	st.InstructionQueue = append([]models.QueuedInstruction{}, kept...)
	return before - len(st.InstructionQueue)
}

// Enqueue prunes the queue and appends an instruction for sessionID, to be
// delivered the next time that session stops.
func Enqueue(st *state.DaemonState, sessionID, instruction string, now time.Time) (models.QueuedInstruction, error) {
	PruneQueue(st)
	if len(st.InstructionQueue) >= models.MaxQueueDepth {
		return models.QueuedInstruction{}, ErrQueueFull
	}
	q := models.QueuedInstruction{
		ID:              ulid.Make().String(),
		TargetSessionID: sessionID,
		Instruction:     instruction,
		QueuedAt:        now.UnixMilli(),
		DeliverOn:       models.DeliverOnNextStop,
	}
	st.InstructionQueue = append(st.InstructionQueue, q)
	return q, nil
}

// TakePending marks every undelivered instruction for sessionID as delivered
// and returns them in queue order. Callers deliver outside the state lock.
func TakePending(st *state.DaemonState, sessionID string, now time.Time) []models.QueuedInstruction {
	var out []models.QueuedInstruction
	nowMs := now.UnixMilli()
	for i := range st.InstructionQueue {
		q := &st.InstructionQueue[i]
		if q.Delivered || q.TargetSessionID != sessionID {
			continue
		}
		q.Delivered = true
		q.DeliveredAt = models.Ptr(nowMs)
		out = append(out, *q)
	}
	return out
}

// Requeue clears the delivered mark on id so a failed delivery is retried on
// the session's next stop.
func Requeue(st *state.DaemonState, id string) bool {
	for i := range st.InstructionQueue {
		q := &st.InstructionQueue[i]
		if q.ID == id {
			q.Delivered = false
			q.DeliveredAt = nil
			return true
		}
	}
	return false
}
