package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

var (
	dbPath  string
	siteDir string
	verbose bool

	// RootCmd is the root command for snapshotplot
	RootCmd = &cobra.Command{
		Use:   "snapshotplot",
		Short: "Reproducible plot snapshots and static plot galleries",
		Long: `snapshotplot captures every plotting run as a timestamped triplet
(source code, PNG figures, and a self-contained HTML page) and publishes
collections of those snapshots as a static website.

Instrument a plotting function with the snapshot package; each run lands in
snapshots/snapshot_<name>/ and, when a site is configured, as an entry of a
collection. The commands below manage that site.

Quick Start:
  1. snapshotplot init my-plots
  2. cd my-plots && snapshotplot collection create experiments
  3. Run your instrumented plotting code with Collection: "experiments"
  4. snapshotplot serve --watch

Examples:
  # Build the site into docs/
  snapshotplot build

  # Find entries by fuzzy search
  snapshotplot list --search "loss curve"

  # Show recorded runs
  snapshotplot history

  # Upload the newest snapshot in a directory
  snapshotplot publish snapshots/snapshot_main --url https://plots.example.com --project lab`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "snapshotplot: reproducible plot snapshots and galleries")
			fmt.Fprintln(out)
			if _, err := site.LoadConfig(siteDir); err != nil {
				fmt.Fprintln(out, "Run 'snapshotplot init <name>' to create a site.")
			} else {
				fmt.Fprintln(out, "Tip: Run 'snapshotplot serve --watch' to preview the site.")
				fmt.Fprintln(out, "     Run 'snapshotplot list' to see its entries.")
			}
			fmt.Fprintln(out, "Run 'snapshotplot --help' for all commands.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: ~/.snapshotplot/snapshotplot.db)")
	RootCmd.PersistentFlags().StringVar(&siteDir, "site", ".", "site directory")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// setupLogging installs a text handler on stderr as the default logger.
func setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".snapshotplot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshotplot directory: %w", err)
	}

	return filepath.Join(dir, "snapshotplot.db"), nil
}

// openStore opens the history database, creating its schema on first use.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// openSite opens the site named by --site.
func openSite() (*site.Site, error) {
	s, err := site.Open(siteDir, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open site %s: %w", siteDir, err)
	}
	return s, nil
}
