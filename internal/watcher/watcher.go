package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"fidx/internal/logging"
)

var (
	ErrAlreadyWatched = errors.New("path is already watched")
	ErrNotWatched     = errors.New("path is not watched")
	ErrWatcherClosed  = errors.New("watcher closed")
)

// Sink receives translated events. TrySend must not block.
type Sink interface {
	TrySend(ev FileEvent) bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter drops events, and skips directories, for which skip returns true.
func WithFilter(skip func(path string) bool) Option {
	return func(w *Watcher) { w.skip = skip }
}

type watchRoot struct {
	recursive bool
	dirs      map[string]struct{} // every directory registered for this root
}

// Watcher subscribes to OS change notifications for a set of paths and
// forwards them to a Sink as FileEvents. It never touches storage.
type Watcher struct {
	fsw    *fsnotify.Watcher
	sink   Sink
	logger logging.Logger
	skip   func(path string) bool

	// add registers one directory with the OS subscription.
	add func(dir string) error

	mu     sync.Mutex
	roots  map[string]*watchRoot
	owner  map[string]string // registered directory -> one root covering it
	refs   map[string]int    // registered directory -> number of roots covering it
	closed bool
}

// New creates a Watcher that pushes events into sink.
func New(sink Sink, logger logging.Logger, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:    fsw,
		sink:   sink,
		logger: logger,
		skip:   func(string) bool { return false },
		roots:  make(map[string]*watchRoot),
		owner:  make(map[string]string),
		refs:   make(map[string]int),
	}
	w.add = fsw.Add
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch registers path. With recursive set, every directory below it is
// registered too, and directories created later are picked up as they
// appear. Either every directory is registered or none is.
func (w *Watcher) Watch(path string, recursive bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat watch path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.roots[absPath]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyWatched, absPath)
	}
	if _, ok := w.owner[absPath]; ok {
		return fmt.Errorf("%w: %s (covered by %s)", ErrAlreadyWatched, absPath, w.owner[absPath])
	}

	dirs := []string{absPath}
	if recursive && info.IsDir() {
		dirs, err = w.collectDirs(absPath)
		if err != nil {
			return err
		}
	}

	// Directories another root already covers share its OS watch.
	var added []string
	for _, dir := range dirs {
		if w.refs[dir] > 0 {
			continue
		}
		if err := w.add(dir); err != nil {
			for _, d := range added {
				_ = w.fsw.Remove(d)
			}
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		added = append(added, dir)
	}

	root := &watchRoot{recursive: recursive, dirs: make(map[string]struct{}, len(dirs))}
	for _, dir := range dirs {
		w.claim(absPath, root, dir)
	}
	w.roots[absPath] = root

	w.logger.Info("watching path", "path", absPath, "recursive", recursive, "directories", len(root.dirs))
	return nil
}

// claim records that root covers dir, which is already registered.
func (w *Watcher) claim(rootPath string, root *watchRoot, dir string) {
	root.dirs[dir] = struct{}{}
	w.refs[dir]++
	if _, ok := w.owner[dir]; !ok {
		w.owner[dir] = rootPath
	}
}

// collectDirs lists dir and every directory below it that is not skipped.
func (w *Watcher) collectDirs(dir string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.skip(p) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return dirs, nil
}

// Unwatch removes a path previously passed to Watch.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unwatchLocked(absPath)
}

func (w *Watcher) unwatchLocked(absPath string) error {
	root, ok := w.roots[absPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatched, absPath)
	}

	delete(w.roots, absPath)

	var errs []error
	for dir := range root.dirs {
		w.refs[dir]--
		if w.refs[dir] > 0 {
			if w.owner[dir] == absPath {
				w.owner[dir] = w.coveringRoot(dir)
			}
			continue
		}
		delete(w.refs, dir)
		delete(w.owner, dir)
		// Deleted directories drop their watch on their own.
		if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			errs = append(errs, fmt.Errorf("unwatching %s: %w", dir, err))
		}
	}

	w.logger.Info("stopped watching path", "path", absPath)
	return errors.Join(errs...)
}

// coveringRoot returns a remaining root that covers dir, preferring the
// lexically smallest so the choice is stable.
func (w *Watcher) coveringRoot(dir string) string {
	var best string
	for path, root := range w.roots {
		if _, ok := root.dirs[dir]; ok && (best == "" || path < best) {
			best = path
		}
	}
	return best
}

// UnwatchAll removes every watched path.
func (w *Watcher) UnwatchAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for path := range w.roots {
		if err := w.unwatchLocked(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WatchedPaths returns the registered root paths in sorted order.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.roots))
	for path := range w.roots {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Run forwards notifications to the sink until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.dispatch(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Warn("watch error", "error", err)
			w.emit(Error{Message: err.Error()})
		}
	}
}

func (w *Watcher) dispatch(raw fsnotify.Event) {
	if w.skip(raw.Name) {
		return
	}

	if raw.Has(fsnotify.Create) {
		if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
			w.addSubdirectory(raw.Name)
			return
		}
	}

	for _, ev := range Translate(raw) {
		w.emit(ev)
	}
}

// addSubdirectory registers a directory created under a recursive root,
// and reports files that landed in it before the watch was in place.
func (w *Watcher) addSubdirectory(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	parent := filepath.Dir(dir)
	var recursive []string
	for path, root := range w.roots {
		if _, ok := root.dirs[parent]; ok && root.recursive {
			recursive = append(recursive, path)
		}
	}
	if len(recursive) == 0 {
		return
	}
	sort.Strings(recursive)

	dirs, err := w.collectDirs(dir)
	if err != nil {
		w.logger.Warn("walking new directory", "path", dir, "error", err)
		w.emit(Error{Path: dir, Message: err.Error()})
		return
	}
	for _, d := range dirs {
		if w.refs[d] > 0 {
			continue
		}
		if err := w.add(d); err != nil {
			w.logger.Warn("watching new directory", "path", d, "error", err)
			w.emit(Error{Path: d, Message: err.Error()})
			continue
		}
		for _, rootPath := range recursive {
			w.claim(rootPath, w.roots[rootPath], d)
		}

		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			p := filepath.Join(d, e.Name())
			if e.Type().IsRegular() && !w.skip(p) {
				w.emit(Created{Path: p})
			}
		}
	}
}

func (w *Watcher) emit(ev FileEvent) {
	if !w.sink.TrySend(ev) {
		w.logger.Debug("event dropped", "event", ev)
	}
}

// Close releases the OS subscription. Run returns once it is closed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.fsw.Close()
}

// Translate maps a raw notification to FileEvents. Create becomes Created,
// Remove becomes Deleted, and content, metadata and name changes become
// Modified. Anything else is dropped.
func Translate(raw fsnotify.Event) []FileEvent {
	if raw.Name == "" {
		return nil
	}
	path := filepath.Clean(raw.Name)

	switch {
	case raw.Has(fsnotify.Remove):
		return []FileEvent{Deleted{Path: path}}
	case raw.Has(fsnotify.Create):
		return []FileEvent{Created{Path: path}}
	case raw.Has(fsnotify.Write), raw.Has(fsnotify.Chmod), raw.Has(fsnotify.Rename):
		return []FileEvent{Modified{Path: path}}
	}
	return nil
}

// SkipFunc builds a filter for WithFilter from case-insensitive exclude
// substrings and an optional extra predicate.
func SkipFunc(excludes []string, extra func(path string) bool) func(string) bool {
	lowered := make([]string, 0, len(excludes))
	for _, e := range excludes {
		if e = strings.TrimSpace(e); e != "" {
			lowered = append(lowered, strings.ToLower(e))
		}
	}
	return func(path string) bool {
		lp := strings.ToLower(path)
		for _, e := range lowered {
			if strings.Contains(lp, e) {
				return true
			}
		}
		return extra != nil && extra(path)
	}
}
