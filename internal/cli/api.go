package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/pkg/client"
	"github.com/spf13/cobra"
)

// apiClient builds a client for the local daemon from the config in home.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	home := config.MustHomeFrom(cmd.Context())
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	c := client.New(fmt.Sprintf("http://127.0.0.1:%d", cfg.Daemon.Port), cfg.DaemonToken)
	c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	return c, nil
}
