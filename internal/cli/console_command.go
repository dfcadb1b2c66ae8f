package cli

import (
	"context"
	"log"

	"github.com/coreengine/internal/console"
	"github.com/coreengine/internal/logging"
	"github.com/spf13/cobra"
)

// NewConsoleCommand creates the 'console' subcommand.
func NewConsoleCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Type local commands at an interactive prompt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			eng, deviceState, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer deviceState.Close()

			c, err := console.New(eng)
			if err != nil {
				return err
			}

			logCloser := logging.SetupWithWriter(cfg.Logging, c.Stdout())
			defer logCloser.Close()
			log.Printf("Console started: mode=%s", cfg.Mode)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			c.Run(ctx, cancel)
			return nil
		},
	}
}
