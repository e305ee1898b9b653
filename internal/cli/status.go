package cli

import (
	"fmt"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/daemon"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pingme daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !st.Running {
				_, _ = fmt.Fprintln(out, "pingme not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "pingme running (pid %d, addr %s)\n", st.PID, st.Addr)

			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			s, err := c.Status(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "could not query daemon: %v\n", err)
				return nil
			}
			_, _ = fmt.Fprintf(out, "Uptime: %ds\n", s.UptimeSeconds)
			_, _ = fmt.Fprintf(out, "Sessions: %d\n", len(s.Sessions))
			_, _ = fmt.Fprintf(out, "Queued instructions: %d\n", s.QueuedInstructions)
			if s.ActiveCall != nil {
				_, _ = fmt.Fprintf(out, "Active call: %s (%s)\n", s.ActiveCall.ExecutionID, s.ActiveCall.Direction)
			} else {
				_, _ = fmt.Fprintln(out, "Active call: none")
			}
			return nil
		},
	}
	return cmd
}
