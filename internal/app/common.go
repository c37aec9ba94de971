package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// absPath returns the absolute form of path, or path itself when it cannot
// be resolved.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// splitEntryRef parses "<collection>/<slug>".
func splitEntryRef(ref string) (collection, slug string, err error) {
	collection, slug, ok := strings.Cut(strings.Trim(ref, "/"), "/")
	if !ok || collection == "" || slug == "" || strings.Contains(slug, "/") {
		return "", "", fmt.Errorf("invalid entry %q: expected <collection>/<slug>", ref)
	}
	return collection, slug, nil
}

// commandContext returns the command's context, which is nil when a RunE
// function is invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
