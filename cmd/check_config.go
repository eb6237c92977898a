package cmd

import (
	"fmt"
	"net/url"

	"github.com/jmehdipour/sms-forwarder/internal/config"
	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration and print what serve would use",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		scheme, _ := cfg.CredentialScheme()
		webhookHost := cfg.Webhook.URL
		if u, err := url.Parse(cfg.Webhook.URL); err == nil {
			webhookHost = u.Host
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "credentials: %s\n", scheme)
		fmt.Fprintf(out, "forward to:  %s (ring %ds)\n", cfg.Forward.ToNumber, cfg.Forward.RingTimeout)
		fmt.Fprintf(out, "webhook:     %s\n", webhookHost)
		fmt.Fprintf(out, "listen:      %s\n", cfg.HTTP.Addr())
		return nil
	},
}

// loadConfig loads and validates; any error here is fatal for every command.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
