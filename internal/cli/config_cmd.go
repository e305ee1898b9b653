package cli

import (
	"fmt"

	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the pingme config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		phone   string
		apiKey  string
		agentID string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config with a fresh daemon token",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if config.Exists(home) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigPath(home))
			}
			cfg := config.Default(home)
			token, err := config.GenerateToken()
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			cfg.DaemonToken = token
			cfg.Phone = phone
			cfg.Bolna.APIKey = apiKey
			cfg.Bolna.AgentID = agentID
			if err := config.Save(home, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Wrote %s\n", config.ConfigPath(home))
			_, _ = fmt.Fprintln(out, "Hooks and clients must send: Authorization: Bearer <daemon_token>")
			if !cfg.VoiceReady() {
				_, _ = fmt.Fprintln(out, "Voice calls need phone, bolna.api_key and bolna.agent_id; until then pingme falls back to notifications.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number to call (E.164)")
	cmd.Flags().StringVar(&apiKey, "bolna-api-key", "", "Bolna API key")
	cmd.Flags().StringVar(&agentID, "bolna-agent-id", "", "Bolna agent ID")
	return cmd
}

const redacted = "********"

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if cfg.DaemonToken != "" {
				cfg.DaemonToken = redacted
			}
			if cfg.Bolna.APIKey != "" {
				cfg.Bolna.APIKey = redacted
			}
			if cfg.Notify.SlackWebhookURL != "" {
				cfg.Notify.SlackWebhookURL = redacted
			}
			if cfg.State.DSN != "" {
				cfg.State.DSN = redacted
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	return cmd
}
