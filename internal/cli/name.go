package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "name <tmux-pane> <name>",
		Short: "Give the session in a tmux pane a friendly name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			s, err := c.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("no session returned for pane %s", args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", s.TmuxPane, s.SessionName)
			return nil
		},
	}
	return cmd
}
