package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fidx/internal/fidx"
	"fidx/internal/model"
	"fidx/internal/telemetry"
	"fidx/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// Watch keeps the index in sync with every enabled watched directory until
// ctx is cancelled. With scanFirst set the directories are scanned before
// notifications are consumed, so changes made while fidx was not running
// are picked up.
//
// The watcher, the consumer and the optional metrics server run in one
// errgroup; the first to fail stops the others.
func (a *App) Watch(ctx context.Context, scanFirst bool) error {
	if err := a.persistOperation(); err != nil {
		return err
	}

	dirs, err := a.service.ListWatchedDirectories()
	if err != nil {
		return a.op.Record(err)
	}
	var enabled []*model.WatchedDirectory
	for _, d := range dirs {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	if len(enabled) == 0 {
		return a.op.Record(errors.New("no watched directories; add one with 'fidx dir add'"))
	}

	w, err := watcher.New(a.queue, a.logger, watcher.WithFilter(a.skipFunc(enabled)))
	if err != nil {
		return a.op.Record(err)
	}
	defer w.Close()

	for _, d := range enabled {
		if err := w.Watch(d.Path, d.Recursive); err != nil {
			return a.op.Record(fmt.Errorf("watching %s: %w", d.Path, err))
		}
		a.logger.Info("watching", "path", d.Path, "recursive", d.Recursive)
	}

	// Notifications queue up while the scan runs and are applied after it.
	if scanFirst {
		results, err := a.service.ScanWatchedDirectories(a.cfg.Scan.MaxDepth)
		for _, r := range results {
			a.logger.Info("scan finished", "path", r.ScanPath, "scanned", r.ScannedFiles,
				"added", r.AddedFiles, "updated", r.UpdatedFiles, "skipped", r.SkippedFiles, "errors", len(r.Errors))
		}
		if err != nil {
			a.logger.Warn("initial scan incomplete", "error", err)
		}
	}

	handler := watcher.NewDebouncedHandler(a.service, a.queue.Config().DebounceDelay, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		err := watcher.Consume(gctx, a.queue, handler, a.logger)
		handler.Flush(context.Background())
		handler.Close()
		return err
	})
	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.metricsMux()}
		g.Go(func() error {
			a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	a.logger.Info("watch stopped", "dropped", a.queue.Dropped())
	return a.op.Record(err)
}

func (a *App) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(a.registry))
	return mux
}

// skipFunc filters notifications the way a scan of the owning directory
// would: hidden directories, global and per-directory exclude patterns,
// ignore files and the directory's extension allow-list. Watched roots
// themselves are never skipped.
func (a *App) skipFunc(dirs []*model.WatchedDirectory) func(string) bool {
	global := watcher.SkipFunc(a.cfg.Scan.ExcludePatterns, nil)

	type rootFilter struct {
		root string
		skip func(string) bool
	}
	filters := make([]rootFilter, 0, len(dirs))
	for _, d := range dirs {
		root := d.Path
		exts := extensionSet(d.Extensions)
		filters = append(filters, rootFilter{
			root: root,
			skip: watcher.SkipFunc(d.ExcludePatterns, func(path string) bool {
				if ignored, err := a.fsmgr.IsIgnored(path, root); err == nil && ignored {
					return true
				}
				return a.hidden(root, path) || !a.extensionAllowed(path, exts)
			}),
		})
	}

	return func(path string) bool {
		for _, f := range filters {
			if path == f.root {
				return false
			}
		}
		if global(path) {
			return true
		}
		for _, f := range filters {
			if strings.HasPrefix(path, f.root+string(filepath.Separator)) {
				return f.skip(path)
			}
		}
		return false
	}
}

func (a *App) isDir(path string) bool {
	meta, err := a.fsmgr.Stat(path)
	return err == nil && meta.Mode.IsDir()
}

// hidden reports whether path is, or lies below, a dot-directory under root.
// Dotfiles themselves are indexed.
func (a *App) hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	for i, part := range parts {
		if !strings.HasPrefix(part, ".") {
			continue
		}
		if i < len(parts)-1 || a.isDir(path) {
			return true
		}
	}
	return false
}

// extensionAllowed reports whether path passes exts. Directories always
// pass; a path that no longer exists is judged by its name alone.
func (a *App) extensionAllowed(path string, exts map[string]struct{}) bool {
	if len(exts) == 0 || a.isDir(path) {
		return true
	}
	_, ext := fidx.SplitName(path)
	_, ok := exts[strings.ToLower(ext)]
	return ok
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
