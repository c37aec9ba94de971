package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

func TestInitCommand(t *testing.T) {
	resetFlags(t)
	dir := filepath.Join(t.TempDir(), "lab-notes")
	initTitle = "Lab Notes"
	initAuthor = "Data Team"
	buf := captureOutput(initCmd)

	if err := runInit(initCmd, []string{dir}); err != nil {
		t.Fatalf("runInit() error = %v", err)
	}

	cfg, err := site.LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Title != "Lab Notes" || cfg.Author != "Data Team" {
		t.Errorf("config = %+v, want title and author from flags", cfg)
	}
	for _, sub := range []string{"_layouts", "_includes", "assets", "collections", "docs"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("expected %s to be created: %v", sub, err)
		}
	}
	if !strings.Contains(buf.String(), "Created site") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	if err := runInit(initCmd, []string{dir}); err == nil {
		t.Error("runInit() on an existing directory should fail")
	}
}

func TestCollectionCreateAndList(t *testing.T) {
	resetFlags(t)
	newTestSite(t)

	collectionTitle = "Time Series"
	collectionTags = []string{"forecasting"}
	buf := captureOutput(collectionCreateCmd)
	if err := runCollectionCreate(collectionCreateCmd, []string{"timeseries"}); err != nil {
		t.Fatalf("runCollectionCreate() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Created collection timeseries (Time Series)") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	if err := runCollectionCreate(collectionCreateCmd, []string{"bad name"}); err == nil {
		t.Error("runCollectionCreate() should reject an invalid name")
	}

	buf = captureOutput(collectionListCmd)
	if err := runCollectionList(collectionListCmd, nil); err != nil {
		t.Fatalf("runCollectionList() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"clustering", "timeseries", "Time Series", "2025-07-18"} {
		if !strings.Contains(out, want) {
			t.Errorf("collection list missing %q\nGot:\n%s", want, out)
		}
	}
}

func TestCollectionListOutsideSite(t *testing.T) {
	resetFlags(t)
	siteDir = t.TempDir()

	if err := runCollectionList(collectionListCmd, nil); err == nil {
		t.Error("runCollectionList() outside a site should fail")
	}
}

func TestBuildCommandRecordsHistory(t *testing.T) {
	resetFlags(t)
	s := newTestSite(t)
	buf := captureOutput(buildCmd)

	if err := runBuild(buildCmd, nil); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Built 1 collections · 2 entries") {
		t.Errorf("unexpected build output:\n%s", out)
	}
	for _, page := range []string{"index.html", "clustering/index.html", "tags/ml/index.html", "assets/style.css"} {
		if _, err := os.Stat(filepath.Join(s.Dir, "docs", filepath.FromSlash(page))); err != nil {
			t.Errorf("expected %s to be built: %v", page, err)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	builds, err := st.ListBuilds(absPath(s.Dir), 10)
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 1 || builds[0].Entries != 2 {
		t.Errorf("ListBuilds() = %+v, want one build with 2 entries", builds)
	}
}

func TestBuildCommandCustomOutputWithoutHistory(t *testing.T) {
	resetFlags(t)
	s := newTestSite(t)
	buildOutput = "public"
	buildNoStore = true
	captureOutput(buildCmd)

	if err := runBuild(buildCmd, nil); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, "public", "index.html")); err != nil {
		t.Errorf("expected public/index.html: %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("--no-history should not create the database, stat err = %v", err)
	}
}

func TestBuildCommandRefusesSiteAsOutput(t *testing.T) {
	resetFlags(t)
	s := newTestSite(t)
	buildOutput = filepath.Dir(s.Dir)
	captureOutput(buildCmd)

	if err := runBuild(buildCmd, nil); err == nil {
		t.Fatal("runBuild() into a parent of the site should fail")
	}
	if _, err := os.Stat(filepath.Join(s.Dir, site.ConfigFile)); err != nil {
		t.Errorf("site config must survive a refused build: %v", err)
	}
}

func TestListCommand(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		want    []string
		notWant []string
	}{
		{
			name: "all entries newest first",
			want: []string{"K-means", "DBSCAN"},
		},
		{
			name:    "tag filter",
			setup:   func() { listTag = "kmeans" },
			want:    []string{"K-means"},
			notWant: []string{"DBSCAN"},
		},
		{
			name:    "author filter",
			setup:   func() { listAuthor = "Grace" },
			want:    []string{"DBSCAN"},
			notWant: []string{"K-means"},
		},
		{
			name:    "search",
			setup:   func() { listSearch = "dbscn" },
			want:    []string{"DBSCAN"},
			notWant: []string{"K-means"},
		},
		{
			name:    "unknown collection",
			setup:   func() { listCollection = "nope" },
			want:    []string{"No entries found"},
			notWant: []string{"DBSCAN"},
		},
		{
			name:    "limit",
			setup:   func() { listLimit = 1 },
			want:    []string{"K-means", "Showing 1 of 2 entries"},
			notWant: []string{"DBSCAN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			newTestSite(t)
			if tt.setup != nil {
				tt.setup()
			}
			buf := captureOutput(listCmd)

			if err := runList(listCmd, nil); err != nil {
				t.Fatalf("runList() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q\nGot:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q\nGot:\n%s", w, out)
				}
			}
			if len(tt.notWant) == 0 && strings.Index(out, "K-means") > strings.Index(out, "DBSCAN") {
				t.Errorf("entries not newest first:\n%s", out)
			}
		})
	}
}

func TestShowCommand(t *testing.T) {
	resetFlags(t)
	s := newTestSite(t)

	entries, _, err := s.Entries()
	if err != nil || len(entries) == 0 {
		t.Fatalf("Entries() = %v, %v", entries, err)
	}
	ref := entries[0].Collection + "/" + entries[0].Slug

	showRaw = true
	buf := captureOutput(showCmd)
	if err := runShow(showCmd, []string{ref}); err != nil {
		t.Fatalf("runShow(--raw) error = %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"# K-means", "July 18, 2025 · clustering · Ada", "`kmeans`", "```go", "func plot()"} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw output missing %q\nGot:\n%s", want, raw)
		}
	}

	showRaw = false
	buf = captureOutput(showCmd)
	if err := runShow(showCmd, []string{ref}); err != nil {
		t.Fatalf("runShow() error = %v", err)
	}
	if !strings.Contains(buf.String(), "K-means") {
		t.Errorf("rendered output missing title:\n%s", buf.String())
	}

	if err := runShow(showCmd, []string{"clustering/missing"}); err == nil {
		t.Error("runShow() of a missing entry should fail")
	}
	if err := runShow(showCmd, []string{"no-slash"}); err == nil {
		t.Error("runShow() with a malformed reference should fail")
	}
}

func TestHistoryCommand(t *testing.T) {
	resetFlags(t)

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	now := time.Now().UTC()
	runs := []*store.Run{
		{ID: "r1", Stamp: "20250717_152701_767", CreatedAt: now.Add(-48 * time.Hour), Function: "main.old", Collection: "a"},
		{ID: "r2", Stamp: "20250718_090000_000", CreatedAt: now.Add(-time.Minute), Function: "main.recent", Collection: "b", Outcome: "boom"},
	}
	for _, r := range runs {
		if err := st.InsertRun(r); err != nil {
			t.Fatalf("InsertRun() error = %v", err)
		}
	}
	if _, err := st.InsertPublish(&store.Publish{SnapshotDir: "snapshots/snapshot_main", RemoteID: "snap-9", PublishedAt: now, Files: 3}); err != nil {
		t.Fatalf("InsertPublish() error = %v", err)
	}
	st.Close()

	buf := captureOutput(historyCmd)
	if err := runHistory(historyCmd, nil); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "main.old") || !strings.Contains(out, "✗ boom") {
		t.Errorf("unexpected history:\n%s", out)
	}

	historySince = 24 * time.Hour
	buf = captureOutput(historyCmd)
	if err := runHistory(historyCmd, nil); err != nil {
		t.Fatalf("runHistory(--since) error = %v", err)
	}
	if strings.Contains(buf.String(), "main.old") {
		t.Errorf("--since should hide older runs:\n%s", buf.String())
	}

	historySince = 0
	historyPublishes = true
	buf = captureOutput(historyCmd)
	if err := runHistory(historyCmd, nil); err != nil {
		t.Fatalf("runHistory(--publishes) error = %v", err)
	}
	if !strings.Contains(buf.String(), "snap-9") {
		t.Errorf("publish history missing snap-9:\n%s", buf.String())
	}

	historyBuilds = true
	if err := runHistory(historyCmd, nil); err == nil {
		t.Error("--builds with --publishes should fail")
	}
}
