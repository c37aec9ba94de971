// Package publish uploads snapshot triplets to a hosted backend.
//
// The backend contract is three calls: POST /api/snapshots/publish with the
// snapshot metadata returns a snapshot ID and one signed upload URL per
// artifact; each artifact is PUT to its URL; POST /api/snapshots/finalize
// marks the record complete. Finalize failures are not fatal.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenEnv is the environment variable the CLI reads a token from.
const TokenEnv = "SNAPSHOTPLOT_TOKEN"

// ErrNoCode is returned when a snapshot directory holds no code artifact.
var ErrNoCode = errors.New("no *_code.go file in snapshot directory")

// Config identifies the backend and the project snapshots belong to.
type Config struct {
	URL        string
	Token      string
	ProjectID  string
	HTTPClient *http.Client
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("publish: missing backend URL")
	case c.Token == "":
		return errors.New("publish: missing token")
	case c.ProjectID == "":
		return errors.New("publish: missing project ID")
	}
	return nil
}

// Metadata describes the published snapshot.
type Metadata struct {
	Collection  string   `json:"collection,omitempty"`
	Title       string   `json:"title,omitempty"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	RepoOwner   string   `json:"repo_owner,omitempty"`
	RepoName    string   `json:"repo_name,omitempty"`
	CommitSHA   string   `json:"commit_sha,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	PRNumber    int      `json:"pr_number,omitempty"`
}

// RepoFromEnv fills the repository fields from GitHub Actions variables,
// leaving fields already set untouched.
func (m *Metadata) RepoFromEnv() {
	if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" && m.RepoOwner == "" && m.RepoName == "" {
		if owner, name, ok := strings.Cut(repo, "/"); ok {
			m.RepoOwner, m.RepoName = owner, name
		}
	}
	if m.CommitSHA == "" {
		m.CommitSHA = os.Getenv("GITHUB_SHA")
	}
	if m.Branch == "" {
		m.Branch = os.Getenv("GITHUB_REF_NAME")
	}
}

// Files are the artifact paths of one snapshot. Plot and HTML are optional.
type Files struct {
	Code string
	Plot string
	HTML string
}

// DiscoverFiles finds the artifacts of the newest run in dir. Runs are
// grouped by their stamp prefix, which sorts chronologically.
func DiscoverFiles(dir string) (Files, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Files{}, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var codes []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_code.go") {
			codes = append(codes, e.Name())
		}
	}
	if len(codes) == 0 {
		return Files{}, fmt.Errorf("%s: %w", dir, ErrNoCode)
	}
	sort.Strings(codes)
	prefix := strings.TrimSuffix(codes[len(codes)-1], "_code.go")

	files := Files{Code: filepath.Join(dir, prefix+"_code.go")}
	if p := filepath.Join(dir, prefix+"_plot.png"); fileExists(p) {
		files.Plot = p
	}
	if p := filepath.Join(dir, prefix+"_snapshot.html"); fileExists(p) {
		files.HTML = p
	}
	return files, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Result is what the backend returned for a published snapshot.
type Result struct {
	SnapshotID string
	UploadURLs map[string]string
	Uploaded   []string
}

// Client talks to the publishing backend.
type Client struct {
	cfg    Config
	base   string
	client *http.Client
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{cfg: cfg, base: strings.TrimRight(cfg.URL, "/"), client: client}, nil
}

type publishRequest struct {
	ProjectID string `json:"project_id"`
	Metadata
	Artifacts map[string]bool `json:"artifacts"`
}

type publishResponse struct {
	SnapshotID string            `json:"snapshot_id"`
	UploadURLs map[string]string `json:"upload_urls"`
}

// Publish registers the snapshot, uploads every artifact the backend asked
// for, and finalizes the record.
func (c *Client) Publish(ctx context.Context, files Files, meta Metadata) (*Result, error) {
	if files.Code == "" {
		return nil, ErrNoCode
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	requestID := uuid.Must(uuid.NewV7()).String()

	var resp publishResponse
	err := c.postJSON(ctx, "/api/snapshots/publish", requestID, publishRequest{
		ProjectID: c.cfg.ProjectID,
		Metadata:  meta,
		Artifacts: map[string]bool{
			"code": true,
			"plot": files.Plot != "",
			"html": files.HTML != "",
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to request upload URLs: %w", err)
	}

	res := &Result{SnapshotID: resp.SnapshotID, UploadURLs: resp.UploadURLs}
	if res.SnapshotID == "" {
		res.SnapshotID = resp.UploadURLs["snapshot_id"]
	}

	for _, a := range []struct{ kind, path string }{
		{"code", files.Code},
		{"plot", files.Plot},
		{"html", files.HTML},
	} {
		url := resp.UploadURLs[a.kind]
		if url == "" || a.path == "" {
			continue
		}
		if err := c.upload(ctx, url, a.path); err != nil {
			return res, fmt.Errorf("failed to upload %s: %w", a.kind, err)
		}
		res.Uploaded = append(res.Uploaded, a.path)
	}

	// A backend without a finalize endpoint is still a successful publish.
	_ = c.postJSON(ctx, "/api/snapshots/finalize", requestID, map[string]string{
		"project_id":  c.cfg.ProjectID,
		"snapshot_id": res.SnapshotID,
	}, nil)
	return res, nil
}

func (c *Client) postJSON(ctx context.Context, path, requestID string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) upload(ctx context.Context, url, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType(path))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from upload URL", resp.StatusCode)
	}
	return nil
}

func contentType(path string) string {
	if filepath.Ext(path) == ".go" {
		return "text/x-go; charset=utf-8"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
