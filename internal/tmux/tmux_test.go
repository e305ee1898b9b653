package tmux

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

type recorder struct {
	mu      sync.Mutex
	calls   []string
	missing bool
}

func (r *recorder) run(_ context.Context, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.missing && len(args) > 0 && args[0] == "has-session" {
		return "can't find session", errors.New("exit status 1")
	}
	return "", nil
}

func TestDeliver(t *testing.T) {
	rec := &recorder{}
	c := &Controller{Run: rec.run}
	s := &models.Session{TmuxSession: "work", TmuxPane: "work:0.1"}
	if err := c.Deliver(context.Background(), s, "run the tests"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	want := []string{
		"tmux has-session -t work",
		"tmux send-keys -t work:0.1 -l run the tests",
		"tmux send-keys -t work:0.1 Enter",
	}
	if strings.Join(rec.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(rec.calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestDeliver_sessionMissing(t *testing.T) {
	rec := &recorder{missing: true}
	c := &Controller{Run: rec.run}
	err := c.Deliver(context.Background(), &models.Session{TmuxSession: "gone", TmuxPane: "gone:0"}, "y")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("no keys should be sent: %v", rec.calls)
	}
}

func TestDeliver_rejectsBadTarget(t *testing.T) {
	rec := &recorder{}
	c := &Controller{Run: rec.run}
	if err := c.Deliver(context.Background(), &models.Session{TmuxPane: "x; rm -rf ~"}, "y"); err == nil {
		t.Fatal("expected error for invalid pane")
	}
	if len(rec.calls) != 0 {
		t.Errorf("tmux should not run: %v", rec.calls)
	}
}

func TestInterrupt(t *testing.T) {
	rec := &recorder{}
	c := &Controller{Run: rec.run}
	if err := c.Interrupt(context.Background(), &models.Session{TmuxPane: "%3"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "tmux send-keys -t %3 C-c" {
		t.Errorf("calls: %v", rec.calls)
	}
}

func TestTmuxEnv_dropsTMUX(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	for _, kv := range tmuxEnv() {
		if strings.HasPrefix(kv, "TMUX=") {
			t.Fatal("TMUX should be filtered")
		}
	}
}
