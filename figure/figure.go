// Package figure keeps track of the plots opened while an instrumented region
// runs, so that all of them can be written out when the region ends.
//
// A Registry plays the role of a plotting library's list of open figures.
// It is scoped to a run and travels in a context.Context, so code running
// under different runs (or different goroutines) never sees another run's
// figures:
//
//	p := figure.New(ctx, "loss")
//	p.Title.Text = "Training loss"
//	line, _ := plotter.NewLine(points)
//	p.Add(line)
//
// When the run ends the snapshot engine calls SaveAll and Close on the
// registry it created.
package figure

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Default figure size, matching the usual 6.4x4.8 inch plotting default.
const (
	DefaultWidth  = 6.4 * vg.Inch
	DefaultHeight = 4.8 * vg.Inch
	DefaultDPI    = 300
)

// Figure is one open plot and the size it is rendered at.
type Figure struct {
	Name   string
	Plot   *plot.Plot
	Width  vg.Length
	Height vg.Length
}

// Registry is the set of figures opened during a run, in open order.
type Registry struct {
	mu   sync.Mutex
	figs []*Figure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Open creates a new plot, registers it, and returns it.
func (r *Registry) Open(name string) *plot.Plot {
	p := plot.New()
	r.Add(name, p)
	return p
}

// Add registers an existing plot under name and returns its Figure so the
// caller can adjust the render size.
func (r *Registry) Add(name string, p *plot.Plot) *Figure {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("figure-%d", len(r.figs)+1)
	}
	fig := &Figure{Name: name, Plot: p, Width: DefaultWidth, Height: DefaultHeight}
	r.figs = append(r.figs, fig)
	return fig
}

// Figures returns a copy of the registered figures in open order.
func (r *Registry) Figures() []*Figure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Figure, len(r.figs))
	copy(out, r.figs)
	return out
}

// Len returns the number of open figures.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.figs)
}

// Close drops every registered figure.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.figs = nil
}

// ErrRender marks a figure that could not be drawn. It never wraps a
// filesystem failure.
var ErrRender = errors.New("failed to render figure")

// SaveAll renders every figure as PNG to pathFor(i) at dpi (0 means
// DefaultDPI) and returns the paths that were written. A figure that fails
// to render is skipped and reported in the returned error, which then
// matches ErrRender. A file that cannot be written stops SaveAll and its
// error is returned as is. With no figures open it returns nil, nil.
func (r *Registry) SaveAll(pathFor func(i int) string, dpi int) ([]string, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	var (
		paths   []string
		skipped []error
	)
	for i, fig := range r.Figures() {
		path := pathFor(i)
		if err := fig.Save(path, dpi); err != nil {
			if errors.Is(err, ErrRender) {
				skipped = append(skipped, err)
				continue
			}
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(skipped...)
}

// Save renders the figure as a PNG file on a white background. Drawing
// failures match ErrRender; nothing is written in that case.
func (f *Figure) Save(path string, dpi int) error {
	c, err := f.render(dpi)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file for figure %s: %w", f.Name, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write figure %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write figure %s: %w", f.Name, err)
	}
	return nil
}

func (f *Figure) render(dpi int) (c *vgimg.Canvas, err error) {
	defer func() {
		// gonum panics on some degenerate inputs (e.g. empty ranges).
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w %s: %v", ErrRender, f.Name, r)
		}
	}()

	c = vgimg.NewWith(
		vgimg.UseWH(f.Width, f.Height),
		vgimg.UseDPI(dpi),
		vgimg.UseBackgroundColor(color.White),
	)
	f.Plot.Draw(draw.New(c))
	return c, nil
}

type ctxKey struct{}

// WithRegistry returns a context carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the registry carried by ctx, if any.
func FromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Registry)
	return r, ok && r != nil
}

// New opens a figure in the run carried by ctx. Outside a run the plot is
// still returned but nothing will save it.
func New(ctx context.Context, name string) *plot.Plot {
	if r, ok := FromContext(ctx); ok {
		return r.Open(name)
	}
	return plot.New()
}

// Register adds an existing plot to the run carried by ctx and reports
// whether a run was found.
func Register(ctx context.Context, name string, p *plot.Plot) bool {
	r, ok := FromContext(ctx)
	if !ok {
		return false
	}
	r.Add(name, p)
	return true
}
