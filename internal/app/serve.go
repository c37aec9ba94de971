package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/snapshotplot/internal/output"
	"github.com/blackwell-systems/snapshotplot/internal/site"
	"github.com/blackwell-systems/snapshotplot/internal/watcher"
)

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the site and serve it locally",
	Long: `Build the site, then serve the build directory over HTTP with caching
disabled so a browser refresh always shows the latest build.

With --watch, changes anywhere in the site (entries, collections, templates,
assets, _config.yml) trigger a rebuild. Changes inside the build directory
are ignored. Press Ctrl+C to stop.`,
	Example: `  # Serve on http://localhost:8000
  snapshotplot serve

  # Rebuild on change and listen on all interfaces
  snapshotplot serve --watch --host 0.0.0.0 --port 4000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "host to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "port to listen on")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "rebuild when site files change")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSite()
	if err != nil {
		return err
	}

	report, err := buildSite(s, "", false)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, output.RenderBuildSummary(report))

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveWatch {
		w, err := watcher.New(s.Dir, rebuildOnChange(s, out), watcher.WithIgnore(report.Output))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to watch site: %w", err)
		}
		defer w.Stop()
		fmt.Fprintf(out, "Watching %s for changes\n", absPath(s.Dir))
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(serveHost, strconv.Itoa(servePort)),
		Handler:           newSiteHandler(report.Output),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "root", report.Output)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	fmt.Fprintf(out, "Serving at http://%s/ (Ctrl+C to stop)\n", srv.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
	slog.Info("server stopped")
	return nil
}

// newSiteHandler serves root as static files with caching disabled.
func newSiteHandler(root string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	fs := http.FileServer(http.Dir(root))
	r.Handle("/*", fs)
	return r
}

// requestLogger logs each request at debug level through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// rebuildOnChange returns the watcher callback for serve --watch. The
// watcher calls it from a single goroutine, so rebuilds never overlap.
func rebuildOnChange(s *site.Site, out io.Writer) func([]string) {
	return func(paths []string) {
		rel := make([]string, 0, len(paths))
		for _, p := range paths {
			if r, err := filepath.Rel(absPath(s.Dir), p); err == nil {
				p = r
			}
			rel = append(rel, p)
		}
		slog.Debug("site changed", "paths", rel)

		// Settings may have changed, so reopen before building.
		fresh, err := site.Open(s.Dir, slog.Default())
		if err != nil {
			slog.Warn("rebuild skipped", "err", err)
			return
		}
		report, err := buildSite(fresh, "", false)
		if err != nil {
			slog.Warn("rebuild failed", "err", err)
			return
		}
		fmt.Fprintf(out, "%s  rebuilt after %d change(s): %s\n",
			time.Now().Format("15:04:05"), len(paths), output.RenderBuildSummary(report))
	}
}
