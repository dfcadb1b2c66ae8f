package cli

import (
	"fmt"
	"strings"

	"github.com/coreengine/internal/engine"
	"github.com/coreengine/internal/tables"
	"github.com/coreengine/internal/ui"
	"github.com/spf13/cobra"
)

// NewNormalizeCommand creates the 'normalize' subcommand.
func NewNormalizeCommand(load configLoader) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "normalize [--local] <text>...",
		Short: "Print the comma-delimited form of a command without dispatching it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			tbl, err := tables.New(cfg.Tables)
			if err != nil {
				return fmt.Errorf("could not build tables: %w", err)
			}

			// normalising never reaches the actuator
			eng := engine.New(tbl, nil)
			text := strings.Join(args, " ")

			normalized, paint := eng.AddCommasToCommand(text), ui.CloudColor
			if local {
				normalized, paint = eng.AddCommasToLocalCommand(text), ui.LocalColor
			}
			if normalized == "" {
				return fmt.Errorf("%q: %w", text, engine.ErrEmptyCommand)
			}

			fmt.Fprintln(cmd.OutOrStdout(), paint(normalized))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&local, "local", "l", false, "use the local (command/direction) grammar")
	return cmd
}
