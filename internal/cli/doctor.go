package cli

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify runtime dependencies and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			// tmux delivers instructions and approvals to sessions.
			if _, err := exec.LookPath("tmux"); err != nil {
				problems = append(problems, "missing dependency: tmux (not found on PATH)")
			}

			cfg, err := config.Load(home)
			if err != nil {
				problems = append(problems, "config: "+err.Error())
			} else {
				if err := cfg.Validate(); err != nil {
					problems = append(problems, "config: "+err.Error())
				}
				if cfg.DaemonToken == "" {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: daemon_token is empty; the API accepts unauthenticated requests")
				}
				if cfg.Mode == "voice" && !cfg.VoiceReady() {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: voice credentials incomplete; calls will fall back to notifications")
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
