package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			list, err := c.Sessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list.Total == 0 {
				_, _ = fmt.Fprintln(out, "No active sessions")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tPROJECT\tSTATUS\tPANE\tLAST ACTIVITY")
			for _, s := range list.Sessions {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Project, s.Status, s.TmuxPane, s.LastActivity)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only show sessions whose name contains this text")
	return cmd
}
