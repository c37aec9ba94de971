package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

var (
	buildOutput  string
	buildNoStore bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render the site into static HTML",
	Long: `Render every collection into the build directory (docs/ by default).

The build directory is removed and regenerated on every build, so two builds
of an unchanged site produce identical files. Entries with missing front
matter are skipped with a warning; a page that fails to render is reported
and the remaining pages are still written. The build is recorded in the
history database.`,
	Example: `  # Build into the configured directory
  snapshotplot build

  # Build a site elsewhere into a custom directory
  snapshotplot build --site ~/lab-notes --output public`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output directory (default: build_dir from _config.yml)")
	buildCmd.Flags().BoolVar(&buildNoStore, "no-history", false, "do not record the build in the history database")

	RootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := openSite()
	if err != nil {
		return err
	}

	spinner := output.NewSpinner("Building site").WithElapsed()
	spinner.SetWriter(cmd.OutOrStdout())
	spinner.Start()

	report, err := buildSite(s, buildOutput, !buildNoStore)
	spinner.Stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, output.RenderBuildSummary(report))
	for _, sk := range report.Skipped {
		fmt.Fprintf(out, "  skipped %s: %v\n", sk.Path, sk.Err)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  failed  %s: %v\n", f.Page, f.Err)
	}
	fmt.Fprintf(out, "Output: %s\n", report.Output)

	if err := report.Err(); err != nil {
		return fmt.Errorf("%d page(s) failed to render", len(report.Failures))
	}
	return nil
}

// buildSite renders s into out and optionally records the build. History
// failures are logged and never fail the build.
func buildSite(s *site.Site, out string, record bool) (*site.BuildReport, error) {
	report, err := site.NewBuilder(s).Build(out)
	if err != nil {
		return nil, fmt.Errorf("failed to build site: %w", err)
	}
	if record {
		recordBuild(s, report)
	}
	return report, nil
}

func recordBuild(s *site.Site, report *site.BuildReport) {
	st, err := openStore()
	if err != nil {
		slog.Warn("build not recorded", "err", err)
		return
	}
	defer st.Close()

	_, err = st.InsertBuild(&store.Build{
		SiteDir:     absPath(s.Dir),
		OutputDir:   report.Output,
		BuiltAt:     time.Now().UTC(),
		Collections: report.Collections,
		Entries:     report.Entries,
		Pages:       report.Pages,
		Skipped:     len(report.Skipped),
		Failures:    len(report.Failures),
	})
	if err != nil {
		slog.Warn("build not recorded", "err", err)
	}
}
