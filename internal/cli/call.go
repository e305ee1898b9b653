package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call [reason]",
		Short: "Ask the daemon to call you now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Call(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	return cmd
}
