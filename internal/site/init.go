package site

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackwell-systems/snapshotplot/internal/fsutil"
)

// Init scaffolds a new site in dir, which must not exist yet.
func Init(dir string, cfg *Config) error {
	if fsutil.Exists(dir) {
		return fmt.Errorf("directory %s already exists", dir)
	}
	if cfg == nil {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		cfg = DefaultConfig(filepath.Base(abs))
	}

	for _, sub := range []string{"_layouts", "_includes", "_data", "assets", CollectionsDir, cfg.BuildDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	files, err := ThemeFiles()
	if err != nil {
		return err
	}
	for rel, data := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}

	return cfg.Save(dir)
}

// CreateCollection adds a collection directory with an _index.md and
// registers it in the site settings.
func (s *Site) CreateCollection(name, title, description string, tags []string) (*Collection, error) {
	if name == "" || name != fsutil.SanitizeName(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	dir := filepath.Join(s.Dir, CollectionsDir, name)
	if fsutil.Exists(dir) {
		return nil, fmt.Errorf("collection %s already exists", name)
	}
	if title == "" {
		title = titleCase(strings.ReplaceAll(name, "-", " "))
	}
	if description == "" {
		description = "Plot collection for " + name
	}

	coll := &Collection{
		Name:        name,
		Title:       title,
		Description: description,
		Tags:        tags,
		Created:     time.Now().UTC().Format("2006-01-02"),
	}
	body := "# " + title + "\n\n" + description
	content, err := encodeFrontMatter(coll, body)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collection directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, CollectionFile), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write collection metadata: %w", err)
	}

	s.Config.Collections[name] = CollectionConfig{Title: title, Description: description}
	if err := s.Config.Save(s.Dir); err != nil {
		return nil, err
	}
	return coll, nil
}

// NewEntry describes a plot to add to a collection.
type NewEntry struct {
	Collection  string
	Title       string
	Author      string
	Description string
	Tags        []string
	Date        time.Time
	Prefix      string // directory name prefix, usually the run stamp
	PlotPath    string // copied to plot.png when set
	CodePath    string // copied to code.go when set
	Function    string
	FileName    string
}

// AddEntry copies a plot and its code into a new entry directory and writes
// its index.md. The collection directory is created if needed.
func (s *Site) AddEntry(ne NewEntry) (*Entry, error) {
	if ne.Collection == "" {
		return nil, fmt.Errorf("entry needs a collection")
	}
	if ne.Title == "" {
		return nil, fmt.Errorf("entry needs a title")
	}
	if ne.Date.IsZero() {
		ne.Date = time.Now().UTC()
	}

	slug := fsutil.SanitizeName(ne.Title)
	if ne.Prefix != "" {
		slug = ne.Prefix + "_" + slug
	}
	dir := filepath.Join(s.Dir, CollectionsDir, fsutil.SanitizeName(ne.Collection), slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create entry directory: %w", err)
	}

	entry := &Entry{
		Title:        ne.Title,
		Date:         NewDate(ne.Date),
		Author:       ne.Author,
		Description:  ne.Description,
		Tags:         ne.Tags,
		Collection:   ne.Collection,
		FunctionName: ne.Function,
		FileName:     ne.FileName,
	}
	if ne.PlotPath != "" {
		if err := fsutil.CopyFile(ne.PlotPath, filepath.Join(dir, "plot.png")); err != nil {
			return nil, fmt.Errorf("failed to copy plot: %w", err)
		}
		entry.PlotImage = "plot.png"
	}
	if ne.CodePath != "" {
		if err := fsutil.CopyFile(ne.CodePath, filepath.Join(dir, "code.go")); err != nil {
			return nil, fmt.Errorf("failed to copy code: %w", err)
		}
		entry.CodeFile = "code.go"
	}

	body := ne.Description
	if ne.Function != "" {
		if body != "" {
			body += "\n\n"
		}
		body += fmt.Sprintf("Generated from `%s`", ne.Function)
		if ne.FileName != "" {
			body += fmt.Sprintf(" in `%s`", ne.FileName)
		}
		body += "."
	}
	content, err := encodeFrontMatter(entry, body)
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, EntryFile), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write entry metadata: %w", err)
	}

	entry.Body = body
	entry.fill(dir)
	return entry, nil
}
