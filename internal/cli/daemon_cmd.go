package cli

import (
	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		port      int
		pprofAddr string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:      home,
				Port:      port,
				PprofAddr: pprofAddr,
				LogLevel:  logLevel,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level")

	return cmd
}
