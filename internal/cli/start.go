package cli

import (
	"fmt"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/daemon"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var (
		port       int
		foreground bool
		pprofAddr  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the pingme daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if !config.Exists(home) {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No config at %s; using defaults (run `pingme config init` to create one)\n", config.ConfigPath(home))
			}

			opts := daemon.StartOptions{
				Home:      home,
				Port:      port,
				PprofAddr: pprofAddr,
				LogLevel:  logLevel,
			}

			if foreground {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Starting pingme in foreground")
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pingme started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", daemon.LogPath(home))
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from config, 7331)")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}
