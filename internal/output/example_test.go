package output_test

import (
	"fmt"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/site"
)

// Example showing how to report progress while publishing several snapshots
func ExampleProgressBar() {
	dirs := []string{"snapshots/snapshot_main", "snapshots/snapshot_train"}

	progress := output.NewProgress(len(dirs), "Publishing snapshots")
	for range dirs {
		// Upload one directory...
		progress.Increment()
	}
	progress.Finish()
}

// Example showing how to wrap a site build with a spinner
func ExampleSpinner() {
	spinner := output.NewSpinner("Building site").WithElapsed()
	spinner.Start()

	// Build the site...

	spinner.StopWithMessage("✓ Site built")
}

// Example showing the summary line printed after a build
func ExampleRenderBuildSummary() {
	report := &site.BuildReport{Collections: 2, Entries: 7, Pages: 12}
	fmt.Println(output.RenderBuildSummary(report))
}
