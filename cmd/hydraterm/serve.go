package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/hydraterm/hydraterm/terminal"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal: session API, loopback GATT adapter and payment runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(os.Stderr)
			if err != nil {
				return err
			}

			app := terminal.NewApp(logger, cfg)
			if err := app.Start(); err != nil {
				return fmt.Errorf("starting terminal: %w", err)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			sig := <-stop
			logger.Info("received signal", slog.String("signal", sig.String()))

			app.Shutdown()
			return nil
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().String("ledger-url", "", "ledger service base URL (overrides config)")
	cmd.Flags().String("notify-scope", "", "broadcast or session (overrides config)")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

// loadConfig layers command flags over the file and environment settings.
func loadConfig(cmd *cobra.Command) (*terminal.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := terminal.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"addr":         &cfg.HTTPAddr,
		"ledger-url":   &cfg.LedgerBaseURL,
		"notify-scope": &cfg.NotifyScope,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	return cfg, cfg.Validate()
}
