// Package watcher rebuilds a site when its sources change.
//
// A Watcher subscribes to filesystem notifications (fsnotify) for every
// directory under a site root, coalesces bursts of events with a debounce
// timer, and hands the changed paths to a callback on a single goroutine,
// so rebuilds never overlap.
//
// Example usage:
//
//	w, err := watcher.New(siteDir, func(paths []string) {
//		if _, err := site.NewBuilder(s).Build(""); err != nil {
//			logger.Error("rebuild failed", "err", err)
//		}
//	}, watcher.WithIgnore(filepath.Join(siteDir, "docs")))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
