package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/HrushiBorhade/pingme/internal/bolna"
	"github.com/HrushiBorhade/pingme/internal/calls"
	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/httpapi"
	"github.com/HrushiBorhade/pingme/internal/notify"
	"github.com/HrushiBorhade/pingme/internal/otel"
	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/internal/state/postgres"
	"github.com/HrushiBorhade/pingme/internal/state/sqlite"
	"github.com/HrushiBorhade/pingme/internal/tmux"
)

// Daemon is the wired set of components behind one HTTP server.
type Daemon struct {
	Config   config.Config
	Home     string
	Shared   *state.Shared
	Registry *session.Registry
	Calls    *calls.Orchestrator
	App      *httpapi.App

	store state.Store
	now   func() time.Time
}

// openStore returns the state backend selected by state.driver.
func openStore(ctx context.Context, home string, cfg config.Config) (state.Store, error) {
	switch cfg.State.Driver {
	case config.DriverSQLite:
		return sqlite.Open(sqlite.DefaultPath(home))
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.State.DSN)
	case config.DriverMemory:
		return &state.MemoryStore{}, nil
	case "", config.DriverFile:
		path := cfg.Daemon.StateFile
		if path == "" {
			path = filepath.Join(home, "state.json")
		}
		return state.NewFileStore(path), nil
	}
	return nil, fmt.Errorf("unknown state driver %q", cfg.State.Driver)
}

// New loads persisted state and wires every component. A call left active by
// a previous run is cleared and the state saved before anything else runs.
func New(ctx context.Context, home string, cfg config.Config) (*Daemon, error) {
	store, err := openStore(ctx, home, cfg)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	st, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	stale := st.ActiveCall != nil
	if stale {
		slog.Warn("found active call from previous run, clearing", "execution_id", st.ActiveCall.ExecutionID)
		st.ActiveCall = nil
	}

	d := &Daemon{
		Config:   cfg,
		Home:     home,
		Shared:   state.NewShared(st, store),
		Registry: session.NewRegistry(),
		store:    store,
		now:      time.Now,
	}
	if stale {
		if err := d.Shared.Persist(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("persist cleared call: %w", err)
		}
	}

	hub := httpapi.NewSSEHub()

	var provider calls.Provider
	if cfg.Mode == "voice" && cfg.VoiceReady() {
		provider = bolna.New(cfg.Bolna.BaseURL, cfg.Bolna.APIKey)
	} else {
		slog.Warn("voice calls disabled; using fallback notifications", "mode", cfg.Mode)
	}
	d.Calls = calls.New(calls.Options{
		Shared:      d.Shared,
		Provider:    provider,
		AgentID:     cfg.Bolna.AgentID,
		Phone:       cfg.Phone,
		BatchWindow: cfg.Policy.BatchWindow(),
		MaxDuration: time.Duration(cfg.Policy.MaxCallDuration) * time.Second,
		OnChange:    hub.CallUpdate,
	})

	notifier := notify.NewFanout(notify.Log{})
	if cfg.Notify.SlackWebhookURL != "" {
		notifier.Register(notify.SlackWebhook{WebhookURL: cfg.Notify.SlackWebhookURL})
	}
	slog.Info("fallback notifiers", "names", notifier.Names())

	srvOpts := httpapi.ServerOptions{
		Addr:     fmt.Sprintf("0.0.0.0:%d", cfg.Daemon.Port),
		Token:    cfg.DaemonToken,
		Shared:   d.Shared,
		Registry: d.Registry,
		Calls:    d.Calls,
		Tmux:     tmux.New(),
		Notifier: notifier,
		Policy:   cfg.Policy,
		Hub:      hub,
	}
	if cfg.Otel.Enabled {
		metricsHandler, err := otel.InitMeterProvider(ctx, "pingme")
		if err != nil {
			slog.Warn("otel init failed, /metrics disabled", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
			if err := otel.InitMetricsWithGauges(ctx, d.gauges); err != nil {
				slog.Warn("otel metrics init failed", "err", err)
			}
		}
	}
	d.App = httpapi.NewApp(srvOpts)
	return d, nil
}

func (d *Daemon) gauges() (map[string]int64, int64, bool) {
	byStatus := map[string]int64{}
	var queued int64
	var active bool
	d.Shared.View(func(st *state.DaemonState) {
		for _, s := range st.Sessions {
			byStatus[string(s.Status)]++
		}
		queued = int64(st.UndeliveredCount())
		active = st.ActiveCall != nil
	})
	return byStatus, queued, active
}

// Run serves HTTP and runs the sweeper until ctx is cancelled, then shuts
// everything down and saves state one last time.
func (d *Daemon) Run(ctx context.Context) error {
	interval := time.Duration(d.Config.Sessions.SweepIntervalSeconds) * time.Second
	sweepCtx, stopSweep := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.runSweeper(sweepCtx, interval)
	}()

	err := serve(ctx, d.App.Server)
	stopSweep()
	<-done
	if cerr := d.Close(context.Background()); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Close stops the batch timer, waits for in-flight handler work and
// background saves, persists state and closes the store.
func (d *Daemon) Close(ctx context.Context) error {
	d.Calls.Shutdown()
	d.App.Wait()
	d.Shared.Wait()
	perr := d.Shared.Persist(ctx)
	if perr != nil {
		slog.Error("final state save failed", "err", perr)
	}
	return errors.Join(perr, d.store.Close())
}
