package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/shotmeter/internal/output"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent log events and display-state changes",
		Long: `Show the most recent entries of the activity journal, newest first.

The journal is written by 'shotmeter watch' in batches every few seconds, so
the latest events may take a moment to appear.`,
		Example: `  # Last 20 events and state changes
  shotmeter history

  # Last 100
  shotmeter history --limit 100`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show per table")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openJournal(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	evs, err := st.ListLogEvents(historyLimit)
	if err != nil {
		return err
	}
	changes, err := st.ListStateChanges(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Log events:")
	fmt.Fprint(out, output.RenderEventTable(evs))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "State changes:")
	fmt.Fprint(out, output.RenderStateTable(changes))
	return nil
}
