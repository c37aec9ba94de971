package site

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/snapshotplot/internal/markdown"
)

// EntryFile is the metadata file of a collection entry.
const EntryFile = "index.md"

// ErrMissingKey is returned when an entry's front matter lacks a required key.
var ErrMissingKey = errors.New("missing required front matter key")

// requiredKeys must be present and non-empty in every entry's front matter.
var requiredKeys = []string{"title", "date"}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date is a front matter date. It keeps the text it was written with so
// entries round-trip unchanged.
type Date struct {
	Raw  string
	Time time.Time
}

// NewDate returns a Date for t written in RFC 3339.
func NewDate(t time.Time) Date {
	return Date{Raw: t.Format(time.RFC3339), Time: t}
}

// ParseDate accepts RFC 3339, ISO 8601 without zone, and plain dates.
func ParseDate(v string) (Date, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Date{Raw: v, Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognised date %q", v)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("date must be a scalar, got %v at line %d", n.Tag, n.Line)
	}
	parsed, err := ParseDate(n.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Date) MarshalYAML() (any, error) {
	return d.Raw, nil
}

// Format formats the date with a Go time layout.
func (d Date) Format(layout string) string {
	if d.Time.IsZero() {
		return d.Raw
	}
	return d.Time.Format(layout)
}

// Entry is one plot of a collection: the front matter of its index.md plus
// what the builder derives from the directory.
type Entry struct {
	Title        string   `yaml:"title"`
	Date         Date     `yaml:"date"`
	Author       string   `yaml:"author,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	Collection   string   `yaml:"collection,omitempty"`
	PlotImage    string   `yaml:"plot_image,omitempty"`
	CodeFile     string   `yaml:"code_file,omitempty"`
	FunctionName string   `yaml:"function_name,omitempty"`
	FileName     string   `yaml:"filename,omitempty"`

	Slug          string        `yaml:"-"`
	Dir           string        `yaml:"-"`
	Body          string        `yaml:"-"`
	Content       template.HTML `yaml:"-"`
	Code          string        `yaml:"-"`
	AutoGenerated bool          `yaml:"-"`
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// URL returns the entry's page path relative to the site root.
func (e *Entry) URL() string {
	return e.Collection + "/" + e.Slug + "/"
}

// LoadEntry reads the entry stored in dir. The collection is taken from the
// parent directory name and overrides any collection key in the file.
func LoadEntry(dir string) (*Entry, error) {
	path := filepath.Join(dir, EntryFile)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return autoGenerateEntry(dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entry Entry
	keys, body, err := parseFrontMatter(content, &entry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, key := range requiredKeys {
		if v, ok := keys[key]; !ok || v == nil || fmt.Sprint(v) == "" {
			return nil, fmt.Errorf("%s: %w %q", path, ErrMissingKey, key)
		}
	}

	entry.Body = body
	entry.Content, err = markdown.ToHTML(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	entry.fill(dir)
	return &entry, nil
}

// autoGenerateEntry derives metadata for a directory that holds an image but
// no index.md. Directories without an image are not entries.
func autoGenerateEntry(dir string) (*Entry, error) {
	images := globFirst(dir, "*.png", "*.jpg", "*.jpeg", "*.svg")
	if images == "" {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, EntryFile), os.ErrNotExist)
	}

	name := filepath.Base(dir)
	entry := &Entry{
		Title:         titleCase(strings.ReplaceAll(name, "_", " ")),
		PlotImage:     images,
		CodeFile:      globFirst(dir, "*.go", "*.py"),
		AutoGenerated: true,
	}

	// Directory names written by the capture engine start with the run stamp.
	parts := strings.SplitN(name, "_", 3)
	if len(parts) >= 2 {
		if t, err := time.Parse("20060102_150405", parts[0]+"_"+parts[1]); err == nil {
			entry.Date = Date{Raw: t.Format("2006-01-02T15:04:05"), Time: t}
		}
	}
	if entry.Date.Time.IsZero() {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		t := info.ModTime().UTC().Truncate(time.Second)
		entry.Date = Date{Raw: t.Format("2006-01-02T15:04:05"), Time: t}
	}

	entry.fill(dir)
	return entry, nil
}

func (e *Entry) fill(dir string) {
	e.Dir = dir
	e.Slug = filepath.Base(dir)
	e.Collection = filepath.Base(filepath.Dir(dir))
}

// loadCode reads the entry's code file, if it has one.
func (e *Entry) loadCode() error {
	if e.CodeFile == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(e.Dir, e.CodeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read code file for %s: %w", e.Slug, err)
	}
	e.Code = string(data)
	return nil
}

func globFirst(dir string, patterns ...string) string {
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		if len(matches) > 0 {
			return filepath.Base(matches[0])
		}
	}
	return ""
}
