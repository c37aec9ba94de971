package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

var (
	historyCollection string
	historySince      time.Duration
	historyLimit      int
	historyBuilds     bool
	historyPublishes  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs, builds, and publishes",
	Long: `Show the history database: captured runs (when the engine was given the
store as its recorder), site builds, and cloud publishes.

Runs are listed newest first with their stamp, function, number of figures,
duration, and outcome.`,
	Example: `  # The last 20 runs
  snapshotplot history

  # Runs of one collection during the last day
  snapshotplot history --collection experiments --since 24h

  # Builds of the current site
  snapshotplot history --builds`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyCollection, "collection", "c", "", "only runs filed into this collection")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs newer than this (e.g. 24h)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of rows")
	historyCmd.Flags().BoolVar(&historyBuilds, "builds", false, "show builds of the --site directory instead of runs")
	historyCmd.Flags().BoolVar(&historyPublishes, "publishes", false, "show publishes instead of runs")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyBuilds && historyPublishes {
		return errors.New("--builds and --publishes cannot be combined")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	switch {
	case historyBuilds:
		builds, err := st.ListBuilds(absPath(siteDir), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list builds: %w", err)
		}
		fmt.Fprint(out, output.RenderBuildTable(builds))

	case historyPublishes:
		publishes, err := st.ListPublishes()
		if err != nil {
			return fmt.Errorf("failed to list publishes: %w", err)
		}
		if historyLimit > 0 && len(publishes) > historyLimit {
			publishes = publishes[:historyLimit]
		}
		fmt.Fprint(out, output.RenderPublishTable(publishes))

	default:
		filter := store.RunFilter{Collection: historyCollection, Limit: historyLimit}
		if historySince > 0 {
			filter.Since = time.Now().Add(-historySince)
		}
		runs, err := st.ListRuns(filter)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		fmt.Fprint(out, output.RenderRunTable(runs))
	}
	return nil
}
