package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/internal/state"
)

const defaultSweepInterval = 5 * time.Minute

// runSweeper periodically removes stale sessions, prunes the instruction
// queue and reconciles a call whose end webhook never arrived.
func (d *Daemon) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// SweepResult reports what one sweep changed.
type SweepResult struct {
	SessionsRemoved    int
	InstructionsPruned int
	StaleCallCleared   bool
}

// Sweep runs one maintenance pass and persists if anything changed.
func (d *Daemon) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	d.Shared.Update(func(st *state.DaemonState) {
		res.SessionsRemoved = d.Registry.SweepStale(st, d.Config.Sessions.CleanupAfterMinutes)
		res.InstructionsPruned = session.PruneQueue(st)
	})
	// OnCallEnd persists on its own.
	res.StaleCallCleared = d.Calls.ReconcileStale(ctx)

	if res.SessionsRemoved > 0 || res.InstructionsPruned > 0 {
		slog.Info("sweep", "sessions_removed", res.SessionsRemoved, "instructions_pruned", res.InstructionsPruned)
		if err := d.Shared.Persist(ctx); err != nil {
			slog.Error("persist state after sweep", "err", err)
		}
		d.App.Hub.Sweep(res.SessionsRemoved, res.InstructionsPruned)
	}
	return res
}
