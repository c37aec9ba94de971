package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/snapshotplot/internal/fsutil"
)

// DefaultOutputDir is where runs write their triplets when Options.OutputDir is empty.
const DefaultOutputDir = "snapshots"

// Artifact file suffixes. Every artifact of a run is named <stamp><suffix>.
const (
	CodeSuffix = "_code.go"
	PlotSuffix = "_plot.png"
	HTMLSuffix = "_snapshot.html"
)

// Layout holds the deterministic artifact paths of one run.
type Layout struct {
	Dir   string
	Stamp Stamp
}

// NewLayout computes the artifact paths for stamp inside dir.
func NewLayout(dir string, stamp Stamp) Layout {
	return Layout{Dir: dir, Stamp: stamp}
}

// Code returns the path of the captured source file.
func (l Layout) Code() string {
	return filepath.Join(l.Dir, l.Stamp.String()+CodeSuffix)
}

// HTML returns the path of the rendered snapshot document.
func (l Layout) HTML() string {
	return filepath.Join(l.Dir, l.Stamp.String()+HTMLSuffix)
}

// Plot returns the image path of the i-th figure (0-based). The first figure
// keeps the plain "_plot.png" name; later ones are numbered from 2.
func (l Layout) Plot(i int) string {
	if i == 0 {
		return filepath.Join(l.Dir, l.Stamp.String()+PlotSuffix)
	}
	return filepath.Join(l.Dir, fmt.Sprintf("%s_plot_%d.png", l.Stamp.String(), i+1))
}

// OutputDir creates <base>/snapshot_<name> and returns its path.
// A ".go" suffix on name is dropped before sanitizing.
func OutputDir(base, name string) (string, error) {
	if base == "" {
		base = DefaultOutputDir
	}
	name = strings.TrimSuffix(name, ".go")
	dir := filepath.Join(base, "snapshot_"+SanitizeName(name))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return dir, nil
}

// SanitizeName makes name safe for use as a file or URL path segment.
func SanitizeName(name string) string {
	return fsutil.SanitizeName(name)
}
