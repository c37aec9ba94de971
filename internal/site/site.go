// Package site discovers plot collections on disk and renders them as a
// static site.
//
// A site is a directory with a _config.yml and a collections/ tree:
//
//	_config.yml
//	collections/
//	  experiments/
//	    _index.md                              collection metadata (optional)
//	    20250717_152701_767_Random-Walk/
//	      index.md                             entry front matter + markdown
//	      plot.png
//	      code.go
//
// Nothing is cached between builds; every Build reprocesses the whole tree.
package site

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackwell-systems/snapshotplot/internal/markdown"
)

// CollectionsDir is the directory under the site root holding collections.
const CollectionsDir = "collections"

// CollectionFile is the optional metadata file of a collection.
const CollectionFile = "_index.md"

// Skipped records an entry left out of a build and why.
type Skipped struct {
	Path string
	Err  error
}

// Collection is a named group of entries rendered as one gallery.
type Collection struct {
	Name        string        `yaml:"-"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description,omitempty"`
	Tags        []string      `yaml:"tags,omitempty"`
	Created     string        `yaml:"created,omitempty"`
	Content     template.HTML `yaml:"-"`
	Entries     []*Entry      `yaml:"-"`
}

// URL returns the collection's gallery path relative to the site root.
func (c *Collection) URL() string {
	return c.Name + "/"
}

// Site is an opened site directory.
type Site struct {
	Dir    string
	Config *Config
	logger *slog.Logger
}

// Open loads the site rooted at dir. A nil logger uses slog.Default().
func Open(dir string, logger *slog.Logger) (*Site, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	return &Site{Dir: dir, Config: cfg, logger: logger}, nil
}

// Collections discovers every collection and its entries. Collections and
// entries are visited in directory-name order; entries within a collection
// are then sorted newest first. Entries that fail to load are returned in
// the skipped list and logged, and do not stop discovery.
func (s *Site) Collections() ([]*Collection, []Skipped, error) {
	root := filepath.Join(s.Dir, CollectionsDir)
	dirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read collections directory: %w", err)
	}

	var (
		collections []*Collection
		skipped     []Skipped
	)
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		coll := s.loadCollection(d.Name())

		entryDirs, err := os.ReadDir(filepath.Join(root, d.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read collection %s: %w", d.Name(), err)
		}
		for _, ed := range entryDirs {
			if !ed.IsDir() || strings.HasPrefix(ed.Name(), "_") || strings.HasPrefix(ed.Name(), ".") {
				continue
			}
			path := filepath.Join(root, d.Name(), ed.Name())
			entry, err := LoadEntry(path)
			if err != nil {
				s.logger.Warn("skipping entry", "path", path, "err", err)
				skipped = append(skipped, Skipped{Path: path, Err: err})
				continue
			}
			coll.Entries = append(coll.Entries, entry)
		}

		SortEntries(coll.Entries)
		collections = append(collections, coll)
	}
	return collections, skipped, nil
}

// Entries returns the entries of every collection, newest first.
func (s *Site) Entries() ([]*Entry, []Skipped, error) {
	collections, skipped, err := s.Collections()
	if err != nil {
		return nil, nil, err
	}
	var all []*Entry
	for _, c := range collections {
		all = append(all, c.Entries...)
	}
	SortEntries(all)
	return all, skipped, nil
}

// Entry loads a single entry by collection and slug.
func (s *Site) Entry(collection, slug string) (*Entry, error) {
	entry, err := LoadEntry(filepath.Join(s.Dir, CollectionsDir, collection, slug))
	if err != nil {
		return nil, err
	}
	if err := entry.loadCode(); err != nil {
		return nil, err
	}
	return entry, nil
}

// loadCollection reads a collection's _index.md, falling back to defaults
// derived from its name and the site settings.
func (s *Site) loadCollection(name string) *Collection {
	coll := &Collection{
		Name:        name,
		Title:       s.Config.CollectionTitle(name),
		Description: "Plot collection for " + name,
	}
	if cc, ok := s.Config.Collections[name]; ok && cc.Description != "" {
		coll.Description = cc.Description
	}

	path := filepath.Join(s.Dir, CollectionsDir, name, CollectionFile)
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read collection metadata", "path", path, "err", err)
		}
		return coll
	}

	meta := *coll
	_, body, err := parseFrontMatter(content, &meta)
	if err != nil {
		s.logger.Warn("ignoring malformed collection metadata", "path", path, "err", err)
		return coll
	}
	if html, err := markdown.ToHTML(body); err == nil {
		meta.Content = html
	}
	meta.Name = name
	return &meta
}

// SortEntries orders entries newest first. Ties are broken by collection and
// then slug so the order never depends on filesystem enumeration.
func SortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Time.Equal(b.Date.Time) {
			return a.Date.Time.After(b.Date.Time)
		}
		if a.Collection != b.Collection {
			return a.Collection < b.Collection
		}
		return a.Slug < b.Slug
	})
}
