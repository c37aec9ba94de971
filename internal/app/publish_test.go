package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/snapshotplot/publish"
	"github.com/blackwell-systems/snapshotplot/internal/store"
)

// newBackend starts a publishing backend that accepts everything and
// counts uploads.
func newBackend(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	var (
		mu      sync.Mutex
		uploads int
		srv     *httptest.Server
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshots/publish", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"snapshot_id": "snap-42",
			"upload_urls": map[string]string{
				"code": srv.URL + "/upload/code",
				"plot": srv.URL + "/upload/plot",
				"html": srv.URL + "/upload/html",
			},
		})
	})
	mux.HandleFunc("/upload/", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		mu.Lock()
		uploads++
		mu.Unlock()
	})
	mux.HandleFunc("/api/snapshots/finalize", func(w http.ResponseWriter, r *http.Request) {})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &uploads
}

func writeSnapshot(t *testing.T, dir, prefix string) {
	t.Helper()
	files := map[string]string{
		prefix + "_code.go":       "package main\n",
		prefix + "_plot.png":      "png",
		prefix + "_snapshot.html": "<html></html>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPublishCommand(t *testing.T) {
	resetFlags(t)
	t.Setenv(publish.TokenEnv, "secret")
	srv, uploads := newBackend(t)

	snapDir := t.TempDir()
	writeSnapshot(t, snapDir, "20250717_152701_767")

	publishURL = srv.URL
	publishProject = "lab"
	publishTags = []string{"nightly"}
	buf := captureOutput(publishCmd)

	if err := runPublish(publishCmd, []string{snapDir}); err != nil {
		t.Fatalf("runPublish() error = %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "Published 1 of 1") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if *uploads != 3 {
		t.Errorf("uploads = %d, want 3", *uploads)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()
	pubs, err := st.ListPublishes()
	if err != nil {
		t.Fatalf("ListPublishes() error = %v", err)
	}
	if len(pubs) != 1 || pubs[0].RemoteID != "snap-42" || pubs[0].Files != 3 {
		t.Errorf("ListPublishes() = %+v", pubs)
	}
}

func TestPublishCommandPartialFailure(t *testing.T) {
	resetFlags(t)
	srv, _ := newBackend(t)

	good := t.TempDir()
	writeSnapshot(t, good, "20250717_152701_767")
	empty := t.TempDir()

	publishURL = srv.URL
	publishProject = "lab"
	publishToken = "secret"
	buf := captureOutput(publishCmd)

	err := runPublish(publishCmd, []string{good, empty})
	if err == nil {
		t.Fatal("runPublish() should report the directory without a snapshot")
	}
	if !strings.Contains(buf.String(), "Published 1 of 2") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestPublishCommandRejected(t *testing.T) {
	resetFlags(t)
	srv, uploads := newBackend(t)

	snapDir := t.TempDir()
	writeSnapshot(t, snapDir, "20250717_152701_767")

	publishURL = srv.URL
	publishProject = "lab"
	publishToken = "wrong"
	captureOutput(publishCmd)

	if err := runPublish(publishCmd, []string{snapDir}); err == nil {
		t.Error("runPublish() with a rejected token should fail")
	}
	if *uploads != 0 {
		t.Errorf("uploads = %d after rejection, want 0", *uploads)
	}
}

func TestPublishCommandMissingConfig(t *testing.T) {
	resetFlags(t)
	t.Setenv(publish.TokenEnv, "")
	publishURL = "https://plots.example.com"
	publishProject = "lab"

	if err := runPublish(publishCmd, []string{t.TempDir()}); err == nil {
		t.Error("runPublish() without a token should fail")
	}
}
