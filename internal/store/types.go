package store

import "time"

// Run is the recorded summary of one captured run.
type Run struct {
	ID         string
	Stamp      string
	CreatedAt  time.Time
	Function   string
	File       string
	Title      string
	Author     string
	Collection string
	Tags       []string
	OutputDir  string
	CodePath   string
	HTMLPath   string
	PlotPaths  []string
	EntryDir   string
	RemoteID   string
	Outcome    string // empty when the instrumented code succeeded
	Warnings   int
	Duration   time.Duration
}

// Build records one site build.
type Build struct {
	ID          int64
	SiteDir     string
	OutputDir   string
	BuiltAt     time.Time
	Collections int
	Entries     int
	Pages       int
	Skipped     int
	Failures    int
}

// Publish records one upload to the publishing backend.
type Publish struct {
	ID          int64
	SnapshotDir string
	RemoteID    string
	BackendURL  string
	PublishedAt time.Time
	Files       int
}
