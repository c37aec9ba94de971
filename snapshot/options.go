package snapshot

import (
	"log/slog"

	"github.com/blackwell-systems/snapshotplot/figure"
	"github.com/blackwell-systems/snapshotplot/publish"
)

// Options configures a Snapshotter. The zero value writes triplets under
// ./snapshots and does nothing else.
type Options struct {
	// OutputDir is the base directory runs write into; each source file
	// gets its own snapshot_<name> directory below it.
	OutputDir string
	// Name overrides the logical name used for the output directory. It
	// defaults to the base name of the instrumented function's file.
	Name string

	Title       string
	Author      string
	Description string
	Notes       string
	Tags        []string

	// DPI is the resolution figures are rendered at.
	DPI int

	// Collection, when set, also files each run as an entry of that
	// collection in the site rooted at Site (default ".").
	Collection string
	Site       string
	// AutoBuild rebuilds the site after a run has been added to it.
	AutoBuild bool

	// Cloud, when set, publishes each run's triplet to a hosted backend.
	Cloud *publish.Config

	Logger   *slog.Logger
	Recorder Recorder
	Clock    *Clock
}

// Recorder persists a summary of every finished run.
type Recorder interface {
	RecordRun(res *Result) error
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.DPI <= 0 {
		o.DPI = figure.DefaultDPI
	}
	if o.Collection != "" && o.Site == "" {
		o.Site = "."
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = defaultClock
	}
	return o
}
