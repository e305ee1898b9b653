// Package tmux delivers text and keystrokes into tmux panes.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/HrushiBorhade/pingme/internal/safety"
	"github.com/HrushiBorhade/pingme/pkg/models"
)

// ErrSessionNotFound is returned when the target tmux session does not exist.
var ErrSessionNotFound = errors.New("tmux session not found")

const defaultTimeout = 5 * time.Second

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Controller sends input to sessions through the tmux CLI.
type Controller struct {
	Run     Runner        // nil uses exec
	Timeout time.Duration // per command; zero uses 5s
}

// New returns a controller that shells out to tmux.
func New() *Controller {
	return &Controller{}
}

func (c *Controller) run(ctx context.Context, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if c.Run != nil {
		return c.Run(ctx, "tmux", args...)
	}
	return execRun(ctx, "tmux", args...)
}

func execRun(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = tmuxEnv()
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out.String(), fmt.Errorf("command timed out: %s %s", name, strings.Join(args, " "))
	}
	return out.String(), err
}

// tmuxEnv drops TMUX so commands address the default server even when the
// daemon itself was started inside tmux.
func tmuxEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if !strings.HasPrefix(kv, "TMUX=") {
			out = append(out, kv)
		}
	}
	return out
}

// HasSession reports whether the named tmux session exists.
func (c *Controller) HasSession(ctx context.Context, name string) bool {
	_, err := c.run(ctx, "has-session", "-t", name)
	return err == nil
}

// Deliver types text into the session's pane and presses Enter.
func (c *Controller) Deliver(ctx context.Context, s *models.Session, text string) error {
	if !safety.ValidTarget(s.TmuxPane) {
		return fmt.Errorf("invalid tmux pane %q", s.TmuxPane)
	}
	if s.TmuxSession != "" {
		if !safety.ValidTarget(s.TmuxSession) {
			return fmt.Errorf("invalid tmux session %q", s.TmuxSession)
		}
		if !c.HasSession(ctx, s.TmuxSession) {
			return fmt.Errorf("%w: %q", ErrSessionNotFound, s.TmuxSession)
		}
	}
	if out, err := c.run(ctx, "send-keys", "-t", s.TmuxPane, "-l", text); err != nil {
		return fmt.Errorf("send keys: %w (%s)", err, strings.TrimSpace(out))
	}
	if out, err := c.run(ctx, "send-keys", "-t", s.TmuxPane, "Enter"); err != nil {
		return fmt.Errorf("send enter: %w (%s)", err, strings.TrimSpace(out))
	}
	return nil
}

// Interrupt sends Ctrl-C to the session's pane.
func (c *Controller) Interrupt(ctx context.Context, s *models.Session) error {
	if !safety.ValidTarget(s.TmuxPane) {
		return fmt.Errorf("invalid tmux pane %q", s.TmuxPane)
	}
	if out, err := c.run(ctx, "send-keys", "-t", s.TmuxPane, "C-c"); err != nil {
		return fmt.Errorf("send cancel: %w (%s)", err, strings.TrimSpace(out))
	}
	return nil
}
