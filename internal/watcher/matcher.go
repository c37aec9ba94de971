package watcher

import (
	"path/filepath"
	"strings"
)

// editorSuffixes mark scratch files written by editors and atomic writers.
var editorSuffixes = []string{"~", ".swp", ".swx", ".tmp"}

// Relevant reports whether a change to path should trigger a rebuild.
// Hidden files, editor scratch files and anything under an ignored
// directory are not relevant.
func (w *Watcher) Relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") {
		return false
	}
	for _, suffix := range editorSuffixes {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return true
}

// ignored reports whether path is an ignored directory or lies beneath one.
func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, dir := range w.ignore {
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
