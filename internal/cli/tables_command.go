package cli

import (
	"fmt"
	"io"

	"github.com/coreengine/internal/tables"
	"github.com/coreengine/internal/ui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the 'tables' subcommand.
func NewTablesCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the device, keyword, direction and command tables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			tbl, err := tables.New(cfg.Tables)
			if err != nil {
				return fmt.Errorf("could not build tables: %w", err)
			}
			renderTables(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}

func renderTables(out io.Writer, tbl *tables.Tables) {
	devices := make([][]string, 0, len(tbl.Devices))
	for _, d := range tbl.Devices {
		devices = append(devices, []string{d.DevName, d.KernelName})
	}
	keywords := make([][]string, 0, len(tbl.Keys))
	for _, k := range tbl.Keys {
		keywords = append(keywords, []string{k.CmdName, k.State})
	}
	directions := make([][]string, 0, len(tbl.Dir))
	for _, d := range tbl.Dir {
		directions = append(directions, []string{d.DirName, d.DirValue})
	}
	cmds := make([][]string, 0, len(tbl.Cmd))
	for _, c := range tbl.Cmd {
		cmds = append(cmds, []string{c.CmdName, c.State})
	}

	renderTable(out, "Devices (cloud)", []string{"Device", "Kernel"}, devices)
	renderTable(out, "Keywords (cloud)", []string{"Keyword", "State"}, keywords)
	renderTable(out, "Directions (local)", []string{"Direction", "Value"}, directions)
	renderTable(out, "Commands (local)", []string{"Command", "State"}, cmds)
}

func renderTable(out io.Writer, title string, header []string, rows [][]string) {
	fmt.Fprintln(out, ui.HeaderColor(title))

	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(true)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.AppendBulk(rows)
	table.Render()
}
