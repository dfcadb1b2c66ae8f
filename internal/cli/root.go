package cli

import (
	"fmt"

	"github.com/coreengine/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the coreengine command tree.
func NewRootCommand(version string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "coreengine",
		Short: "coreengine turns spoken-style text into device commands.",
		Long: `coreengine normalises free text received on a cloud channel and a
local channel into comma-delimited sub-commands, records them per channel
and drives pins and motion from them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (overrides COREENGINE_CONFIG)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(NewServeCommand(version, load))
	rootCmd.AddCommand(NewConsoleCommand(load))
	rootCmd.AddCommand(NewNormalizeCommand(load))
	rootCmd.AddCommand(NewTablesCommand(load))

	return rootCmd
}

// configLoader resolves the configuration named by the persistent --config flag
type configLoader func() (*config.Config, error)
