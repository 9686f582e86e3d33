package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fidx/internal/fidx"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	patterns []string

	mu    sync.Mutex
	roots map[string]*IgnoreMatcher // per-root matchers including .fidxignore
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignorePatterns apply under every root in addition to each root's .fidxignore.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	patterns := append(append([]string{}, defaultIgnorePatterns...), ignorePatterns...)
	return &OSFilesystemManager{
		patterns: patterns,
		roots:    make(map[string]*IgnoreMatcher),
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*fidx.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return fidx.NewPath(absPath, info.IsDir(), info), nil
}

// ReadDir lists a directory's entries sorted by name.
func (m *OSFilesystemManager) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

// Stat returns fresh metadata for path without following symlinks.
func (m *OSFilesystemManager) Stat(path string) (*fidx.FileMeta, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	created, accessed := statTimes(path, info)
	return &fidx.FileMeta{
		Size:       info.Size(),
		Mode:       info.Mode(),
		CreatedAt:  created,
		ModifiedAt: info.ModTime(),
		AccessedAt: accessed,
	}, nil
}

// IsIgnored reports whether path matches the configured patterns or the
// .fidxignore at root. Paths outside root are matched by basename only.
func (m *OSFilesystemManager) IsIgnored(path, root string) (bool, error) {
	matcher, err := m.matcherFor(root)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return matcher.Match(rel), nil
}

func (m *OSFilesystemManager) matcherFor(root string) (*IgnoreMatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if matcher, ok := m.roots[root]; ok {
		return matcher, nil
	}

	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, m.patterns...), local...))
	m.roots[root] = matcher
	return matcher, nil
}

// Compile-time check that OSFilesystemManager implements fidx.FilesystemManager interface
var _ fidx.FilesystemManager = (*OSFilesystemManager)(nil)
