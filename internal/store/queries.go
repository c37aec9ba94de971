package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackwell-systems/snapshotplot/snapshot"
)

// Run operations

// RecordRun stores the summary of a finished run. It satisfies
// snapshot.Recorder.
func (s *Store) RecordRun(res *snapshot.Result) error {
	run := &Run{
		ID:         res.RunID,
		Stamp:      res.Stamp.String(),
		CreatedAt:  res.Stamp.Time,
		Function:   res.Source.Function,
		File:       res.Source.File,
		Title:      res.Title,
		Author:     res.Author,
		Collection: res.Collection,
		Tags:       res.Tags,
		OutputDir:  res.Dir,
		CodePath:   res.CodePath,
		HTMLPath:   res.HTMLPath,
		PlotPaths:  res.PlotPaths,
		EntryDir:   res.EntryDir,
		RemoteID:   res.RemoteID,
		Warnings:   len(res.Warnings),
		Duration:   res.Duration,
	}
	if res.Outcome != nil {
		run.Outcome = res.Outcome.Error()
	}
	return s.InsertRun(run)
}

// InsertRun inserts a run and its plot paths in one transaction.
func (s *Store) InsertRun(run *Run) error {
	tagsJSON, err := json.Marshal(run.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs
		(id, stamp, created_at, function, file, title, author, collection, tags,
		 output_dir, code_path, html_path, entry_dir, remote_id, outcome, warnings, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		run.ID,
		run.Stamp,
		run.CreatedAt.UTC().Format(runTimeLayout),
		run.Function,
		run.File,
		run.Title,
		run.Author,
		run.Collection,
		string(tagsJSON),
		run.OutputDir,
		run.CodePath,
		run.HTMLPath,
		run.EntryDir,
		run.RemoteID,
		run.Outcome,
		run.Warnings,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to insert run %s", run.ID), err)
	}

	for i, path := range run.PlotPaths {
		if _, err := tx.Exec("INSERT INTO run_plots (run_id, idx, path) VALUES (?, ?, ?)", run.ID, i, path); err != nil {
			return wrapErr(fmt.Sprintf("failed to insert plot for run %s", run.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// runTimeLayout has fixed width so created_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000Z"

const runColumns = `id, stamp, created_at, function, file, title, author, collection, tags,
	output_dir, code_path, html_path, entry_dir, remote_id, outcome, warnings, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		createdAt  string
		tagsJSON   string
		durationMS int64
	)
	err := row.Scan(
		&run.ID,
		&run.Stamp,
		&createdAt,
		&run.Function,
		&run.File,
		&run.Title,
		&run.Author,
		&run.Collection,
		&tagsJSON,
		&run.OutputDir,
		&run.CodePath,
		&run.HTMLPath,
		&run.EntryDir,
		&run.RemoteID,
		&run.Outcome,
		&run.Warnings,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, err = time.Parse(runTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &run.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for run %s: %w", run.ID, err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

// GetRun retrieves a run, with its plot paths, by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %s", id), err)
	}

	run.PlotPaths, err = s.runPlots(id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Collection string
	Since      time.Time
	Limit      int
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(f RunFilter) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	var args []any
	if f.Collection != "" {
		query += " AND collection = ?"
		args = append(args, f.Collection)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC().Format(runTimeLayout))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for _, run := range runs {
		if run.PlotPaths, err = s.runPlots(run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) runPlots(id string) ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM run_plots WHERE run_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get plots for run %s", id), err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan plot path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteRun removes a run and its plot paths. The artifact files are left
// in place.
func (s *Store) DeleteRun(id string) error {
	result, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to delete run %s", id), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// CountRuns returns the number of recorded runs.
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, wrapErr("failed to count runs", err)
	}
	return n, nil
}

// Build operations

// InsertBuild records a site build and returns its ID.
func (s *Store) InsertBuild(b *Build) (int64, error) {
	query := `
		INSERT INTO builds
		(site_dir, output_dir, built_at, collections, entries, pages, skipped, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		b.SiteDir,
		b.OutputDir,
		b.BuiltAt.UTC().Format(time.RFC3339),
		b.Collections,
		b.Entries,
		b.Pages,
		b.Skipped,
		b.Failures,
	)
	if err != nil {
		return 0, wrapErr("failed to insert build", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get build ID: %w", err)
	}
	return id, nil
}

// ListBuilds returns the most recent builds of siteDir, newest first.
func (s *Store) ListBuilds(siteDir string, limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, site_dir, output_dir, built_at, collections, entries, pages, skipped, failures
		FROM builds
		WHERE site_dir = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, siteDir, limit)
	if err != nil {
		return nil, wrapErr("failed to list builds", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		var b Build
		var builtAt string
		if err := rows.Scan(&b.ID, &b.SiteDir, &b.OutputDir, &builtAt, &b.Collections, &b.Entries, &b.Pages, &b.Skipped, &b.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		b.BuiltAt, err = time.Parse(time.RFC3339, builtAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built_at: %w", err)
		}
		builds = append(builds, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating builds: %w", err)
	}
	return builds, nil
}

// Publish operations

// InsertPublish records an upload to the publishing backend.
func (s *Store) InsertPublish(p *Publish) (int64, error) {
	query := `
		INSERT INTO publishes (snapshot_dir, remote_id, backend_url, published_at, files)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		p.SnapshotDir,
		p.RemoteID,
		p.BackendURL,
		p.PublishedAt.UTC().Format(time.RFC3339),
		p.Files,
	)
	if err != nil {
		return 0, wrapErr("failed to insert publish", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get publish ID: %w", err)
	}
	return id, nil
}

// ListPublishes returns every recorded publish, newest first.
func (s *Store) ListPublishes() ([]*Publish, error) {
	rows, err := s.db.Query(`
		SELECT id, snapshot_dir, remote_id, backend_url, published_at, files
		FROM publishes
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, wrapErr("failed to list publishes", err)
	}
	defer rows.Close()

	var out []*Publish
	for rows.Next() {
		var p Publish
		var publishedAt string
		if err := rows.Scan(&p.ID, &p.SnapshotDir, &p.RemoteID, &p.BackendURL, &publishedAt, &p.Files); err != nil {
			return nil, fmt.Errorf("failed to scan publish: %w", err)
		}
		p.PublishedAt, err = time.Parse(time.RFC3339, publishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse published_at: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publishes: %w", err)
	}
	return out, nil
}
