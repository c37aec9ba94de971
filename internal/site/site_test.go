package site

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSite scaffolds a site in a temp dir and opens it.
func newTestSite(t *testing.T) *Site {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "lab-notes")
	require.NoError(t, Init(dir, nil))
	s, err := Open(dir, nil)
	require.NoError(t, err)
	return s
}

// writeEntry writes an entry directory with the given index.md content and a
// placeholder plot.
func writeEntry(t *testing.T, s *Site, collection, slug, indexMD string) string {
	t.Helper()
	dir := filepath.Join(s.Dir, CollectionsDir, collection, slug)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if indexMD != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, EntryFile), []byte(indexMD), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plot.png"), []byte("not really a png"), 0644))
	return dir
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const kmeansMD = `---
title: K-Means Clustering
date: 2025-07-17
author: Ada
tags: [clustering, unsupervised]
plot_image: plot.png
---

Three clusters.
`

const dbscanMD = `---
title: DBSCAN Clustering
date: 2025-07-18
tags:
  - clustering
plot_image: plot.png
---
`

const walkMD = `---
title: Random Walk
date: 2025-07-16T09:30:00
tags: [timeseries]
plot_image: plot.png
---
`

func TestInitScaffoldsSite(t *testing.T) {
	s := newTestSite(t)

	for _, p := range []string{
		ConfigFile,
		"_layouts/index.html",
		"_includes/header.html",
		"assets/style.css",
		CollectionsDir,
		"docs",
	} {
		_, err := os.Stat(filepath.Join(s.Dir, p))
		assert.NoError(t, err, p)
	}
	assert.Equal(t, "Lab Notes Plots", s.Config.Title)
	assert.Equal(t, DefaultTheme, s.Config.Theme)

	err := Init(s.Dir, nil)
	assert.Error(t, err, "Init must refuse an existing directory")
}

func TestOpenWithoutConfig(t *testing.T) {
	_, err := Open(t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotASite))
}

func TestLoadConfigForcesTheme(t *testing.T) {
	dir := t.TempDir()
	cfg := "title: Mine\ntheme: minimal\ncollections:\n  exp:\n    title: Experiments\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(cfg), 0644))

	got, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
	assert.Equal(t, DefaultTheme, got.Theme)
	assert.Equal(t, "docs", got.BuildDir)
	assert.Equal(t, "Experiments", got.CollectionTitle("exp"))
	assert.Equal(t, "Model Runs", got.CollectionTitle("model-runs"))
}

func TestCollectionsSortAndSkip(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "kmeans", kmeansMD)
	writeEntry(t, s, "experiments", "dbscan", dbscanMD)
	writeEntry(t, s, "experiments", "walk", walkMD)
	writeEntry(t, s, "experiments", "untitled", "---\ndate: 2025-07-19\n---\n")
	writeEntry(t, s, "experiments", "broken", "no front matter here")

	collections, skipped, err := s.Collections()
	require.NoError(t, err)
	require.Len(t, collections, 1)

	var slugs []string
	for _, e := range collections[0].Entries {
		slugs = append(slugs, e.Slug)
	}
	assert.Equal(t, []string{"dbscan", "kmeans", "walk"}, slugs)

	require.Len(t, skipped, 2)
	var missing, malformed bool
	for _, sk := range skipped {
		switch filepath.Base(sk.Path) {
		case "untitled":
			missing = errors.Is(sk.Err, ErrMissingKey)
		case "broken":
			malformed = errors.Is(sk.Err, ErrNoFrontMatter)
		}
	}
	assert.True(t, missing, "entry without a title should fail with ErrMissingKey")
	assert.True(t, malformed, "entry without front matter should fail with ErrNoFrontMatter")
}

func TestSortEntriesTieBreak(t *testing.T) {
	day := NewDate(time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC))
	entries := []*Entry{
		{Slug: "b", Collection: "beta", Date: day},
		{Slug: "a", Collection: "beta", Date: day},
		{Slug: "z", Collection: "alpha", Date: day},
	}
	SortEntries(entries)
	assert.Equal(t, "z", entries[0].Slug)
	assert.Equal(t, "a", entries[1].Slug)
	assert.Equal(t, "b", entries[2].Slug)
}

func TestAutoGeneratedEntry(t *testing.T) {
	s := newTestSite(t)
	dir := writeEntry(t, s, "runs", "20250717_152701_767_random_walk", "")

	e, err := LoadEntry(dir)
	require.NoError(t, err)
	assert.True(t, e.AutoGenerated)
	assert.Equal(t, "plot.png", e.PlotImage)
	assert.Equal(t, "runs", e.Collection)
	assert.Equal(t, time.Date(2025, 7, 17, 15, 27, 1, 0, time.UTC), e.Date.Time)
}

func TestEntryWithoutImageIsNotAnEntry(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadEntry(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuildClusteringGalleryAndTagPage(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "kmeans", kmeansMD)
	writeEntry(t, s, "experiments", "dbscan", dbscanMD)
	writeEntry(t, s, "experiments", "walk", walkMD)

	report, err := NewBuilder(s).Build("")
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 1, report.Collections)

	gallery := readFile(t, filepath.Join(report.Output, "experiments", "index.html"))
	assert.Contains(t, gallery, "K-Means Clustering")
	assert.Contains(t, gallery, "DBSCAN Clustering")
	assert.Less(t, strings.Index(gallery, "DBSCAN Clustering"), strings.Index(gallery, "K-Means Clustering"),
		"newer entry should be listed first")

	tagPage := readFile(t, filepath.Join(report.Output, "tags", "clustering", "index.html"))
	assert.Contains(t, tagPage, "K-Means Clustering")
	assert.Contains(t, tagPage, "DBSCAN Clustering")
	assert.NotContains(t, tagPage, "Random Walk")

	clustering := FilterByTag(mustEntries(t, s), "clustering")
	require.Len(t, clustering, 2)
	assert.Equal(t, "2025-07-18", clustering[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2025-07-17", clustering[1].Date.Format("2006-01-02"))

	for _, p := range []string{
		"index.html",
		"assets/style.css",
		"experiments/kmeans/index.html",
		"experiments/kmeans/plot.png",
		"tags/timeseries/index.html",
	} {
		_, err := os.Stat(filepath.Join(report.Output, filepath.FromSlash(p)))
		assert.NoError(t, err, p)
	}
	_, err = os.Stat(filepath.Join(report.Output, "experiments", "kmeans", EntryFile))
	assert.True(t, os.IsNotExist(err), "markdown sources should not be copied")
}

func TestBuildMergesTagsThatShareASlug(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "upper", "---\ntitle: Upper Case Tag\ndate: 2025-07-17\ntags: [ML]\n---\n")
	writeEntry(t, s, "experiments", "lower", "---\ntitle: Lower Case Tag\ndate: 2025-07-18\ntags: [ml]\n---\n")

	report, err := NewBuilder(s).Build("")
	require.NoError(t, err)
	require.NoError(t, report.Err())

	tagPage := readFile(t, filepath.Join(report.Output, "tags", "ml", "index.html"))
	assert.Contains(t, tagPage, "Upper Case Tag")
	assert.Contains(t, tagPage, "Lower Case Tag")

	tagDirs, err := os.ReadDir(filepath.Join(report.Output, "tags"))
	require.NoError(t, err)
	assert.Len(t, tagDirs, 1)
}

func TestBuildIsIdempotent(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "kmeans", kmeansMD)
	writeEntry(t, s, "experiments", "dbscan", dbscanMD)
	writeEntry(t, s, "timeseries", "walk", walkMD)

	b := NewBuilder(s)
	first, err := b.Build("")
	require.NoError(t, err)
	before := readTree(t, first.Output)

	second, err := b.Build("")
	require.NoError(t, err)
	after := readTree(t, second.Output)

	require.NotEmpty(t, before)
	assert.Equal(t, before, after)
}

func TestBuildSkipsEntryMissingKey(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "kmeans", kmeansMD)
	writeEntry(t, s, "experiments", "nodate", "---\ntitle: No Date\n---\n")

	report, err := NewBuilder(s).Build("")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Entries)
	require.Len(t, report.Skipped, 1)
	assert.True(t, errors.Is(report.Skipped[0].Err, ErrMissingKey))

	_, err = os.Stat(filepath.Join(report.Output, "experiments", "kmeans", "index.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(report.Output, "experiments", "nodate"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildEscapesMetadata(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "evil", `---
title: "<script>alert(1)</script> & more"
date: 2025-07-17
author: "<b>Mallory</b>"
description: "<img src=x onerror=alert(1)>"
tags: ["<i>tag</i>"]
plot_image: plot.png
---

<script>alert("body")</script>
`)

	report, err := NewBuilder(s).Build("")
	require.NoError(t, err)
	require.NoError(t, report.Err())

	for _, page := range []string{"index.html", "experiments/index.html", "experiments/evil/index.html"} {
		html := readFile(t, filepath.Join(report.Output, filepath.FromSlash(page)))
		assert.NotContains(t, html, "<script>", page)
		assert.NotContains(t, html, "<b>Mallory", page)
		assert.NotContains(t, html, "<img src=x", page)
		assert.NotContains(t, html, "<i>tag", page)
	}
	detail := readFile(t, filepath.Join(report.Output, "experiments", "evil", "index.html"))
	assert.Contains(t, detail, "&lt;script&gt;alert(1)&lt;/script&gt; &amp; more")
}

func TestBuildRecordsTemplateFailure(t *testing.T) {
	s := newTestSite(t)
	writeEntry(t, s, "experiments", "kmeans", kmeansMD)
	broken := `{{define "gallery"}}{{.Collection.NoSuchField}}{{end}}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "_layouts", "gallery.html"), []byte(broken), 0644))

	report, err := NewBuilder(s).Build("")
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, filepath.Join("experiments", "index.html"), report.Failures[0].Page)
	assert.Error(t, report.Err())

	_, err = os.Stat(filepath.Join(report.Output, "experiments", "kmeans", "index.html"))
	assert.NoError(t, err, "other pages still render")
}

func TestBuildRefusesToDeleteSite(t *testing.T) {
	s := newTestSite(t)
	b := NewBuilder(s)

	_, err := b.Build(s.Dir)
	assert.Error(t, err)
	_, err = b.Build(filepath.Dir(s.Dir))
	assert.Error(t, err)
	_, err = b.Build(CollectionsDir)
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(s.Dir, ConfigFile))
	assert.NoError(t, err)
}

func TestCreateCollectionAndAddEntry(t *testing.T) {
	s := newTestSite(t)

	coll, err := s.CreateCollection("model-runs", "", "", []string{"ml"})
	require.NoError(t, err)
	assert.Equal(t, "Model Runs", coll.Title)

	_, err = s.CreateCollection("model-runs", "", "", nil)
	assert.Error(t, err, "duplicate collection")

	reloaded, err := LoadConfig(s.Dir)
	require.NoError(t, err)
	assert.Equal(t, "Model Runs", reloaded.Collections["model-runs"].Title)

	src := t.TempDir()
	plot := filepath.Join(src, "20250717_152701_767_plot.png")
	code := filepath.Join(src, "20250717_152701_767_code.go")
	require.NoError(t, os.WriteFile(plot, []byte("png"), 0644))
	require.NoError(t, os.WriteFile(code, []byte("package main\n"), 0644))

	added, err := s.AddEntry(NewEntry{
		Collection: "model-runs",
		Title:      "Loss Curve",
		Tags:       []string{"ml", "training"},
		Date:       time.Date(2025, 7, 17, 15, 27, 1, 0, time.UTC),
		Prefix:     "20250717_152701_767",
		PlotPath:   plot,
		CodePath:   code,
		Function:   "main.plotLoss",
		FileName:   "main.go",
	})
	require.NoError(t, err)
	assert.Equal(t, "20250717_152701_767_Loss-Curve", added.Slug)

	loaded, err := s.Entry("model-runs", added.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Loss Curve", loaded.Title)
	assert.Equal(t, []string{"ml", "training"}, loaded.Tags)
	assert.Equal(t, "plot.png", loaded.PlotImage)
	assert.Equal(t, "package main\n", loaded.Code)
	assert.Contains(t, loaded.Body, "Generated from `main.plotLoss` in `main.go`.")

	collections, _, err := s.Collections()
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "Model Runs", collections[0].Title)
	assert.Equal(t, []string{"ml"}, collections[0].Tags)
}

func mustEntries(t *testing.T, s *Site) []*Entry {
	t.Helper()
	entries, _, err := s.Entries()
	require.NoError(t, err)
	return entries
}
