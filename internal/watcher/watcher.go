package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports batches of changed paths under a root directory.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	onChange func(paths []string)
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is delivered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithIgnore excludes dir (typically the build output) from watching.
func WithIgnore(dir string) Option {
	return func(w *Watcher) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		w.ignore = append(w.ignore, dir)
	}
}

// WithLogger sets the logger used for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher for root. onChange receives the sorted set of paths
// that changed since the previous call.
func New(root string, onChange func(paths []string), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange cannot be nil")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	w := &Watcher{
		root:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
		pending:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start subscribes to every directory under the root and begins
// delivering batches.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop halts the watcher. A batch still waiting for its debounce is
// dropped. Stop may be called more than once, and before Start; later
// calls return the first result.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.fsw != nil {
			w.stopErr = w.fsw.Close()
		}
	})
	return w.stopErr
}

// addTree watches dir and every directory beneath it that is not ignored
// or hidden.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The directory may vanish between the event and the walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && (w.ignored(path) || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if isDir, err := statDir(ev.Name); err == nil && isDir {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("watcher: failed to watch new directory", "path", ev.Name, "err", err)
					}
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Relevant(ev.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[ev.Name] = struct{}{}
			w.mu.Unlock()
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: filesystem notification error", "err", err)

		case <-timer.C:
			if paths := w.drain(); len(paths) > 0 {
				w.onChange(paths)
			}

		case <-w.stopCh:
			return
		}
	}
}

// drain returns and clears the pending paths.
func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(paths)
	return paths
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
