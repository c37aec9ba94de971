package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/snapshotplot/figure"
	"github.com/blackwell-systems/snapshotplot/internal/fsutil"
	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/publish"
)

// missingSource is written as the code artifact when the source of the
// instrumented region cannot be recovered.
const missingSource = "// source not available\n"

// Result describes a finished run.
type Result struct {
	RunID       string
	Stamp       Stamp
	Dir         string
	Source      Source
	Title       string
	Author      string
	Description string
	Tags        []string
	Collection  string

	CodePath  string
	HTMLPath  string
	PlotPaths []string

	EntryDir string // site entry directory, when filed into a collection
	RemoteID string // backend snapshot ID, when published

	Duration time.Duration
	Outcome  error   // error returned (or panic raised) by the instrumented code
	Warnings []error // non-fatal problems
}

// Figures returns the number of images the run produced.
func (r *Result) Figures() int {
	return len(r.PlotPaths)
}

// Snapshotter captures runs with a fixed set of options.
type Snapshotter struct {
	opts Options
}

// New returns a Snapshotter for opts.
func New(opts Options) *Snapshotter {
	return &Snapshotter{opts: opts.withDefaults()}
}

// Run is one capture in progress. It is created by Begin and finalized by
// End; every artifact it writes carries the same Stamp.
type Run struct {
	ID     string
	Stamp  Stamp
	Source Source

	ctx     context.Context
	opts    Options
	logger  *slog.Logger
	srcErr  error
	figures *figure.Registry
	started time.Time

	once   sync.Once
	result *Result
	err    error
}

type runKey struct{}

// FromContext returns the run carried by ctx, if any.
func FromContext(ctx context.Context) (*Run, bool) {
	r, ok := ctx.Value(runKey{}).(*Run)
	return r, ok
}

// Begin starts a run for the function that calls it. The returned context
// carries the run's figure registry; figures opened with figure.New on it
// are saved when the run ends.
//
//	run, ctx := s.Begin(ctx)
//	defer run.Finish(&err)
func (s *Snapshotter) Begin(ctx context.Context) (*Run, context.Context) {
	src, err := CallerSource(1)
	return s.begin(ctx, src, err)
}

// Do runs fn as a captured run and ends the run on every exit path. A
// panic in fn ends the run with the panic as its outcome and is then
// re-raised. The returned error joins fn's error with any error from
// writing the artifacts.
func (s *Snapshotter) Do(ctx context.Context, fn func(context.Context) error) (*Result, error) {
	src, srcErr := SourceOf(fn)
	run, ctx := s.begin(ctx, src, srcErr)

	defer func() {
		if p := recover(); p != nil {
			run.End(fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	outcome := fn(ctx)
	res, err := run.End(outcome)
	return res, errors.Join(outcome, err)
}

// Wrap returns fn instrumented so that every call is a captured run.
func (s *Snapshotter) Wrap(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Do(ctx, fn)
		return err
	}
}

func (s *Snapshotter) begin(ctx context.Context, src Source, srcErr error) (*Run, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Run{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Stamp:   s.opts.Clock.Next(),
		Source:  src,
		opts:    s.opts,
		srcErr:  srcErr,
		figures: figure.NewRegistry(),
		started: time.Now(),
	}
	r.logger = s.opts.Logger.With("run", r.ID, "stamp", r.Stamp.String())
	r.logger.Debug("run started", "function", src.Function, "file", src.File)

	ctx = figure.WithRegistry(ctx, r.figures)
	ctx = context.WithValue(ctx, runKey{}, r)
	r.ctx = ctx
	return r, ctx
}

// Figures returns the run's figure registry.
func (r *Run) Figures() *figure.Registry {
	return r.figures
}

// Finish ends the run with *errp as its outcome and, when the outcome is
// nil, stores any error from writing the artifacts in *errp. It is meant
// to be deferred with a named error result.
func (r *Run) Finish(errp *error) {
	var outcome error
	if errp != nil {
		outcome = *errp
	}
	if _, err := r.End(outcome); err != nil && errp != nil && *errp == nil {
		*errp = err
	}
}

// End finalizes the run: it writes the code artifact, saves every open
// figure, and renders the HTML document, then performs the optional site,
// publish and record steps. Only failures to write the triplet are
// returned as errors (a figure that fails to render is skipped with a
// warning); everything after that is reported in
// Result.Warnings. Calling End again returns the first result.
func (r *Run) End(outcome error) (*Result, error) {
	r.once.Do(func() {
		r.result, r.err = r.finish(outcome)
	})
	return r.result, r.err
}

func (r *Run) finish(outcome error) (*Result, error) {
	defer r.figures.Close()

	res := &Result{
		RunID:       r.ID,
		Stamp:       r.Stamp,
		Source:      r.Source,
		Title:       r.opts.Title,
		Author:      r.opts.Author,
		Description: r.opts.Description,
		Tags:        r.opts.Tags,
		Collection:  r.opts.Collection,
		Outcome:     outcome,
	}
	if res.Title == "" {
		res.Title = "Snapshot: " + r.Source.ShortFunction()
	}
	warn := func(msg string, err error, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Errorf("%s: %w", msg, err))
		r.logger.Warn(msg, append(args, "err", err)...)
	}

	name := r.opts.Name
	if name == "" {
		name = r.Source.FileName()
	}
	dir, err := OutputDir(r.opts.OutputDir, name)
	if err != nil {
		return res, err
	}
	res.Dir = dir
	layout := NewLayout(dir, r.Stamp)

	code := r.Source.Text
	if r.srcErr != nil || code == "" {
		if r.srcErr == nil {
			r.srcErr = ErrNoSource
		}
		warn("could not capture source", r.srcErr, "function", r.Source.Function)
		code = missingSource
	}
	if err := fsutil.WriteFileAtomic(layout.Code(), []byte(code), 0644); err != nil {
		return res, fmt.Errorf("failed to write code file: %w", err)
	}
	res.CodePath = layout.Code()

	plots, err := r.figures.SaveAll(layout.Plot, r.opts.DPI)
	res.PlotPaths = plots
	if err != nil {
		if !errors.Is(err, figure.ErrRender) {
			return res, fmt.Errorf("failed to save figure: %w", err)
		}
		warn("skipped figure that failed to render", err)
	}
	if len(plots) == 0 {
		r.logger.Info("no figures to save")
	}

	page := Page{
		Title:       res.Title,
		Author:      r.opts.Author,
		Description: r.opts.Description,
		Notes:       r.opts.Notes,
		Tags:        r.opts.Tags,
		FileName:    r.Source.FileName(),
		Function:    r.Source.ShortFunction(),
		Date:        r.Stamp.Display(),
		Code:        code,
		Plots:       plots,
	}
	if err := WriteHTML(layout.HTML(), page); err != nil {
		return res, err
	}
	res.HTMLPath = layout.HTML()
	res.Duration = time.Since(r.started)

	r.logger.Info("snapshot saved",
		"dir", dir,
		"figures", len(plots),
		"html", res.HTMLPath)

	if r.opts.Collection != "" {
		r.addToSite(res, warn)
	}
	if r.opts.Cloud != nil {
		r.publish(res, warn)
	}
	if r.opts.Recorder != nil {
		if err := r.opts.Recorder.RecordRun(res); err != nil {
			warn("failed to record run", err)
		}
	}
	return res, nil
}

type warnFunc func(msg string, err error, args ...any)

// addToSite files the run as an entry of the configured collection and
// rebuilds the site when asked to.
func (r *Run) addToSite(res *Result, warn warnFunc) {
	s, err := site.Open(r.opts.Site, r.logger)
	if err != nil {
		if errors.Is(err, site.ErrNotASite) {
			warn("site integration skipped; run 'snapshotplot init' first", err, "site", r.opts.Site)
			return
		}
		warn("failed to open site", err, "site", r.opts.Site)
		return
	}

	ne := site.NewEntry{
		Collection:  r.opts.Collection,
		Title:       res.Title,
		Author:      r.opts.Author,
		Description: r.opts.Description,
		Tags:        r.opts.Tags,
		Date:        r.Stamp.Time,
		Prefix:      r.Stamp.String(),
		CodePath:    res.CodePath,
		Function:    r.Source.ShortFunction(),
		FileName:    r.Source.FileName(),
	}
	if len(res.PlotPaths) > 0 {
		ne.PlotPath = res.PlotPaths[0]
		r.logExtraPlots(res, "not added to collection")
	}
	entry, err := s.AddEntry(ne)
	if err != nil {
		warn("failed to add run to site", err, "collection", r.opts.Collection)
		return
	}
	res.EntryDir = entry.Dir
	r.logger.Info("added to collection", "collection", r.opts.Collection, "entry", entry.Slug)

	if !r.opts.AutoBuild {
		return
	}
	report, err := site.NewBuilder(s).Build("")
	if err == nil {
		err = report.Err()
	}
	if err != nil {
		warn("site build failed", err, "site", r.opts.Site)
	}
}

func (r *Run) publish(res *Result, warn warnFunc) {
	client, err := publish.New(*r.opts.Cloud)
	if err != nil {
		warn("cloud publish skipped", err)
		return
	}

	meta := publish.Metadata{
		Collection:  r.opts.Collection,
		Title:       res.Title,
		Author:      r.opts.Author,
		Description: r.opts.Description,
		Tags:        r.opts.Tags,
	}
	meta.RepoFromEnv()

	files := publish.Files{Code: res.CodePath, HTML: res.HTMLPath}
	if len(res.PlotPaths) > 0 {
		files.Plot = res.PlotPaths[0]
		r.logExtraPlots(res, "not published")
	}
	out, err := client.Publish(r.ctx, files, meta)
	if err != nil {
		warn("cloud publish failed", err)
		return
	}
	res.RemoteID = out.SnapshotID
	r.logger.Info("published snapshot", "snapshot_id", out.SnapshotID)
}

// logExtraPlots notes the figures after the first, which entries and
// uploads have no slot for.
func (r *Run) logExtraPlots(res *Result, what string) {
	if len(res.PlotPaths) < 2 {
		return
	}
	r.logger.Info("only the first figure is kept; extra figures "+what,
		"kept", res.PlotPaths[0],
		"extra", res.PlotPaths[1:])
}
