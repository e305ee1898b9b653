package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

func TestStartForeground_emptyHome(t *testing.T) {
	ctx := context.Background()
	err := StartForeground(ctx, StartOptions{Home: ""})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func testConfig(t *testing.T, home string) config.Config {
	t.Helper()
	cfg := config.Default(home)
	cfg.Otel.Enabled = false
	cfg.DaemonToken = "tok"
	return cfg
}

func TestNew_clearsStaleActiveCall(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	cfg := testConfig(t, home)

	prev := state.New()
	prev.ActiveCall = &models.ActiveCall{ExecutionID: "old", StartedAt: 1, Direction: models.DirectionOutbound}
	if err := state.NewFileStore(cfg.Daemon.StateFile).Save(ctx, prev); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	d, err := New(ctx, home, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = d.Close(ctx) }()
	if d.Shared.Snapshot().ActiveCall != nil {
		t.Fatal("active call should be cleared in memory")
	}
	onDisk, _ := state.NewFileStore(cfg.Daemon.StateFile).Load(ctx)
	if onDisk.ActiveCall != nil {
		t.Fatal("cleared call should be persisted before serving")
	}
	if d.Calls.Configured() {
		t.Error("no credentials: outbound calls must be disabled")
	}
}

func TestNew_drivers(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{config.DriverFile, config.DriverSQLite, config.DriverMemory} {
		t.Run(driver, func(t *testing.T) {
			home := t.TempDir()
			cfg := testConfig(t, home)
			cfg.State.Driver = driver
			d, err := New(ctx, home, cfg)
			if err != nil {
				t.Fatalf("New(%s): %v", driver, err)
			}
			if err := d.Close(ctx); err != nil {
				t.Fatalf("Close(%s): %v", driver, err)
			}
		})
	}

	home := t.TempDir()
	cfg := testConfig(t, home)
	cfg.State.Driver = "etcd"
	if _, err := New(ctx, home, cfg); err == nil {
		t.Fatal("unknown driver: expected error")
	}
}

func TestNew_sqliteRoundTrip(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	cfg := testConfig(t, home)
	cfg.State.Driver = config.DriverSQLite

	d, err := New(ctx, home, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Shared.Update(func(st *state.DaemonState) {
		st.Sessions["s1"] = &models.Session{ID: "s1", SessionName: "api", Status: models.StatusActive}
	})
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d2, err := New(ctx, home, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = d2.Close(ctx) }()
	if _, ok := d2.Shared.Snapshot().Sessions["s1"]; !ok {
		t.Fatal("session not persisted across restart")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	cfg := testConfig(t, home)
	cfg.State.Driver = config.DriverMemory
	d, err := New(ctx, home, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = d.Close(ctx) }()

	now := time.Now()
	d.Shared.Update(func(st *state.DaemonState) {
		st.Sessions["old"] = &models.Session{ID: "old", Status: models.StatusStopped, LastEventTime: now.Add(-2 * time.Hour).Unix()}
		st.Sessions["new"] = &models.Session{ID: "new", Status: models.StatusActive, LastEventTime: now.Unix()}
		st.InstructionQueue = []models.QueuedInstruction{{ID: "a", Delivered: true}, {ID: "b"}}
	})

	ch := d.App.Hub.Subscribe()
	defer d.App.Hub.Unsubscribe(ch)

	res := d.Sweep(ctx)
	if res.SessionsRemoved != 1 || res.InstructionsPruned != 1 || res.StaleCallCleared {
		t.Fatalf("sweep: %+v", res)
	}
	snap := d.Shared.Snapshot()
	if _, ok := snap.Sessions["old"]; ok {
		t.Error("stale session not removed")
	}
	if len(snap.InstructionQueue) != 1 || snap.InstructionQueue[0].ID != "b" {
		t.Errorf("queue after prune: %+v", snap.InstructionQueue)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected sweep event on the hub")
	}

	if res := d.Sweep(ctx); res.SessionsRemoved != 0 || res.InstructionsPruned != 0 {
		t.Fatalf("second sweep should be a no-op: %+v", res)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRun_servesUntilCancelled(t *testing.T) {
	home := t.TempDir()
	cfg := testConfig(t, home)
	cfg.State.Driver = config.DriverMemory
	cfg.Daemon.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	d, err := New(ctx, home, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Daemon.Port)
	var ok bool
	for i := 0; i < 100; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			ok = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if !ok {
		t.Fatal("daemon never became healthy")
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStatus_notRunning(t *testing.T) {
	home := t.TempDir()
	st, err := Status(context.Background(), home)
	if err != nil || st.Running {
		t.Fatalf("Status without pid file: %+v %v", st, err)
	}

	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath(home), []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, _ = Status(context.Background(), home)
	if st.Running {
		t.Fatal("garbage pid file must not report running")
	}

	stopped, err := Stop(context.Background(), home)
	if err != nil || stopped {
		t.Fatalf("Stop when not running: %v %v", stopped, err)
	}
}

func TestStatus_runningSelf(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(pidPath(home), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
	_ = os.WriteFile(addrPath(home), []byte("0.0.0.0:7331\n"), 0o644)
	st, err := Status(context.Background(), home)
	if err != nil || !st.Running || st.PID != os.Getpid() || st.Addr != "0.0.0.0:7331" {
		t.Fatalf("Status: %+v %v", st, err)
	}
}

func TestAcquireLock_exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protected", "daemon.lock")
	l1, err := acquireLock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := acquireLock(path); err == nil {
		t.Fatal("second lock should fail while the first is held")
	}
	l1.release()
	l2, err := acquireLock(path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	l2.release()
}

func TestLogPath(t *testing.T) {
	if got := LogPath("/h"); got != filepath.Join("/h", "protected", "daemon.log") {
		t.Errorf("LogPath: %s", got)
	}
}
