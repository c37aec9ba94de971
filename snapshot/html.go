package snapshot

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/snapshotplot/internal/highlight"
)

//go:embed snapshot.html.tmpl
var pageTemplateText string

var pageTemplate = template.Must(template.New("snapshot").Parse(pageTemplateText))

// Page is everything rendered into a snapshot document. All string fields
// are escaped on output.
type Page struct {
	Title       string
	Author      string
	Description string
	Notes       string
	Tags        []string
	FileName    string
	Function    string
	Date        string
	Code        string
	Plots       []string // image paths relative to the document
}

// pageData is the template view of a Page. Code is the only field that
// bypasses escaping, and it is produced by the highlighter.
type pageData struct {
	Page
	HighlightedCode template.HTML
}

// RenderHTML renders p as a complete HTML document.
func RenderHTML(p Page) ([]byte, error) {
	if p.Title == "" {
		p.Title = "Snapshot: " + p.Function
	}

	data := pageData{
		Page:            p,
		HighlightedCode: highlight.Code(p.Code, "go", highlight.DefaultStyle),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render snapshot page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders p and writes it to path. Plot paths are rewritten
// relative to the document's directory.
func WriteHTML(path string, p Page) error {
	rel := make([]string, 0, len(p.Plots))
	for _, plot := range p.Plots {
		if r, err := filepath.Rel(filepath.Dir(path), plot); err == nil {
			plot = r
		}
		rel = append(rel, filepath.ToSlash(plot))
	}
	p.Plots = rel

	html, err := RenderHTML(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0644); err != nil {
		return fmt.Errorf("failed to write HTML file %s: %w", path, err)
	}
	return nil
}
