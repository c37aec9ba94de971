package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/snapshotplot/internal/fsutil"
	"github.com/blackwell-systems/snapshotplot/internal/highlight"
)

//go:embed theme
var themeFS embed.FS

// LatestCount is the number of entries listed on the index page.
const LatestCount = 12

// PageError records a page that failed to render.
type PageError struct {
	Page string
	Err  error
}

func (e PageError) Error() string {
	return e.Page + ": " + e.Err.Error()
}

// BuildReport summarises a build.
type BuildReport struct {
	Output      string
	Collections int
	Entries     int
	Pages       int
	Skipped     []Skipped
	Failures    []PageError
}

// Err joins the page failures, or returns nil when every page rendered.
func (r *BuildReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Builder renders a site to static HTML.
type Builder struct {
	site   *Site
	logger *slog.Logger
}

// NewBuilder returns a builder for s.
func NewBuilder(s *Site) *Builder {
	return &Builder{site: s, logger: s.logger}
}

// pageData is the view every layout is executed with. Base is the relative
// path from the page back to the site root.
type pageData struct {
	Site        *Config
	Title       string
	Base        string
	Collections []*Collection
	Collection  *Collection
	Entries     []*Entry
	Entry       *Entry
	Tag         TagCount
	Tags        []TagCount
}

type cardData struct {
	Base  string
	Entry *Entry
}

// Build renders the site into out, which is removed and recreated first.
// A relative out is resolved against the site directory; an empty out uses
// the configured build directory. Entries that fail to load and pages that
// fail to render are recorded in the report and do not stop the build.
func (b *Builder) Build(out string) (*BuildReport, error) {
	if out == "" {
		out = b.site.Config.BuildDir
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(b.site.Dir, out)
	}
	if err := b.checkOutput(out); err != nil {
		return nil, err
	}

	tmpl, err := b.templates()
	if err != nil {
		return nil, err
	}

	collections, skipped, err := b.site.Collections()
	if err != nil {
		return nil, err
	}
	var entries []*Entry
	for _, c := range collections {
		entries = append(entries, c.Entries...)
	}
	SortEntries(entries)

	if err := os.RemoveAll(out); err != nil {
		return nil, fmt.Errorf("failed to clean output directory: %w", err)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := b.copyAssets(out); err != nil {
		return nil, err
	}

	report := &BuildReport{
		Output:      out,
		Collections: len(collections),
		Entries:     len(entries),
		Skipped:     skipped,
	}
	tags := Tags(entries)
	render := func(name, rel string, data pageData) {
		if err := writePage(tmpl, name, filepath.Join(out, rel), data); err != nil {
			b.logger.Warn("failed to render page", "page", rel, "err", err)
			report.Failures = append(report.Failures, PageError{Page: rel, Err: err})
			return
		}
		report.Pages++
	}

	latest := entries
	if len(latest) > LatestCount {
		latest = latest[:LatestCount]
	}
	render("index", "index.html", pageData{
		Site:        b.site.Config,
		Base:        ".",
		Collections: collections,
		Entries:     latest,
		Tags:        tags,
	})

	for _, c := range collections {
		render("gallery", filepath.Join(c.Name, "index.html"), pageData{
			Site:        b.site.Config,
			Title:       c.Title,
			Base:        "..",
			Collections: collections,
			Collection:  c,
			Entries:     c.Entries,
		})

		for _, e := range c.Entries {
			dst := filepath.Join(out, c.Name, e.Slug)
			if err := copyEntryFiles(e.Dir, dst); err != nil {
				b.logger.Warn("failed to copy entry files", "entry", e.URL(), "err", err)
			}
			if err := e.loadCode(); err != nil {
				b.logger.Warn("failed to load entry code", "entry", e.URL(), "err", err)
			}
			render("plot", filepath.Join(c.Name, e.Slug, "index.html"), pageData{
				Site:        b.site.Config,
				Title:       e.Title,
				Base:        "../..",
				Collections: collections,
				Collection:  c,
				Entry:       e,
			})
		}
	}

	for _, t := range tags {
		render("tag", filepath.Join("tags", t.Slug, "index.html"), pageData{
			Site:        b.site.Config,
			Title:       t.Name,
			Base:        "../..",
			Collections: collections,
			Entries:     FilterByTagSlug(entries, t.Slug),
			Tag:         t,
		})
	}

	b.logger.Info("site built",
		"output", out,
		"collections", report.Collections,
		"entries", report.Entries,
		"pages", report.Pages,
		"skipped", len(report.Skipped),
		"failures", len(report.Failures))
	return report, nil
}

// checkOutput refuses output directories whose removal would destroy the
// site itself.
func (b *Builder) checkOutput(out string) error {
	absOut, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	absSite, err := filepath.Abs(b.site.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve site directory: %w", err)
	}
	if isWithin(absSite, absOut) {
		return fmt.Errorf("output directory %s contains the site", out)
	}
	if isWithin(filepath.Join(absSite, CollectionsDir), absOut) {
		return fmt.Errorf("output directory %s is inside %s", out, CollectionsDir)
	}
	return nil
}

// isWithin reports whether path is dir or lies beneath it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// templates parses the built-in theme, then any layouts and includes the
// site overrides them with.
func (b *Builder) templates() (*template.Template, error) {
	tmpl, err := template.New("site").Funcs(templateFuncs).ParseFS(themeFS,
		"theme/includes/*.html", "theme/layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse theme: %w", err)
	}

	for _, dir := range []string{"_includes", "_layouts"} {
		matches, err := filepath.Glob(filepath.Join(b.site.Dir, dir, "*.html"))
		if err != nil || len(matches) == 0 {
			continue
		}
		if tmpl, err = tmpl.ParseFiles(matches...); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", dir, err)
		}
	}
	return tmpl, nil
}

var templateFuncs = template.FuncMap{
	"rel":     relURL,
	"slugify": Slugify,
	"title":   titleCase,
	"card": func(base string, e *Entry) cardData {
		return cardData{Base: base, Entry: e}
	},
	"highlight": func(code, filename string) template.HTML {
		if filename == "" {
			filename = "go"
		}
		return highlight.Code(code, filename, highlight.DefaultStyle)
	},
}

// relURL joins a site-relative path onto base, keeping a trailing slash.
func relURL(base, p string) string {
	joined := path.Join(base, p)
	if p == "" || strings.HasSuffix(p, "/") {
		joined += "/"
	}
	return joined
}

func writePage(tmpl *template.Template, name, dst string, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// copyAssets writes the theme stylesheet and then copies the site's own
// assets over it.
func (b *Builder) copyAssets(out string) error {
	css, err := fs.ReadFile(themeFS, "theme/assets/style.css")
	if err != nil {
		return fmt.Errorf("failed to read theme stylesheet: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(out, "assets"), 0755); err != nil {
		return fmt.Errorf("failed to create assets directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(out, "assets", "style.css"), css, 0644); err != nil {
		return fmt.Errorf("failed to write stylesheet: %w", err)
	}

	src := filepath.Join(b.site.Dir, "assets")
	if !fsutil.Exists(src) {
		return nil
	}
	if err := fsutil.CopyDir(src, filepath.Join(out, "assets")); err != nil {
		return fmt.Errorf("failed to copy assets: %w", err)
	}
	return nil
}

// copyEntryFiles copies everything but markdown from an entry directory.
func copyEntryFiles(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		if err := fsutil.CopyFile(filepath.Join(src, f.Name()), filepath.Join(dst, f.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ThemeFiles returns the built-in theme files keyed by their path relative
// to a site root (_layouts/, _includes/, assets/).
func ThemeFiles() (map[string][]byte, error) {
	files := map[string][]byte{}
	dirs := map[string]string{
		"theme/layouts":  "_layouts",
		"theme/includes": "_includes",
		"theme/assets":   "assets",
	}
	for src, dst := range dirs {
		entries, err := fs.ReadDir(themeFS, src)
		if err != nil {
			return nil, fmt.Errorf("failed to read theme: %w", err)
		}
		for _, e := range entries {
			data, err := fs.ReadFile(themeFS, path.Join(src, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("failed to read theme: %w", err)
			}
			files[path.Join(dst, e.Name())] = data
		}
	}
	return files, nil
}
