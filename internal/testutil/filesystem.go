package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fidx/internal/fidx"
)

// MockFile represents an entry in the mock filesystem.
type MockFile struct {
	Size        int64
	Mode        fs.FileMode
	ModTime     time.Time
	AccessTime  time.Time
	BirthTime   time.Time // zero when the "platform" cannot supply it
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute and slash-separated. Safe for concurrent use.
type MockFilesystemManager struct {
	mu      sync.Mutex
	files   map[string]*MockFile
	statErr map[string]error
	readErr map[string]error
	ignored map[string]bool
	modTime time.Time
}

// NewMockFilesystemManager creates a new mock filesystem stamped with times from FixedClock.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:   make(map[string]*MockFile),
		statErr: make(map[string]error),
		readErr: make(map[string]error),
		ignored: make(map[string]bool),
		modTime: FixedClock().Now(),
	}
}

// AddFile adds a regular file, creating missing parent directories.
func (m *MockFilesystemManager) AddFile(path string, size int64) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addParents(path)
	f := &MockFile{
		Size:       size,
		Mode:       0644,
		ModTime:    m.modTime,
		AccessTime: m.modTime,
		BirthTime:  m.modTime,
	}
	m.files[path] = f
	return f
}

// AddDirectory adds a directory, creating missing parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addParents(path)
	m.addDir(path)
}

// AddSymlink adds a symbolic link entry.
func (m *MockFilesystemManager) AddSymlink(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addParents(path)
	m.files[path] = &MockFile{Mode: fs.ModeSymlink | 0777, ModTime: m.modTime}
}

// Remove deletes an entry and everything below it.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
}

// FailStat makes Stat of path return err.
func (m *MockFilesystemManager) FailStat(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErr[path] = err
}

// FailReadDir makes ReadDir of dir return err.
func (m *MockFilesystemManager) FailReadDir(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr[dir] = err
}

// Ignore marks path as matching an ignore pattern.
func (m *MockFilesystemManager) Ignore(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[path] = true
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		m.addDir(dir)
	}
}

func (m *MockFilesystemManager) addDir(path string) {
	if _, ok := m.files[path]; ok {
		return
	}
	m.files[path] = &MockFile{Mode: fs.ModeDir | 0755, ModTime: m.modTime, IsDirectory: true}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*fidx.Path, error) {
	absPath := filepath.Clean(rawPath)

	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat path: %w", fs.ErrNotExist)
	}
	return fidx.NewPath(absPath, file.IsDirectory, newFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) ReadDir(dir string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.readErr[dir]; ok {
		return nil, err
	}
	d, ok := m.files[dir]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	if !d.IsDirectory {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fmt.Errorf("not a directory")}
	}

	var entries []fs.DirEntry
	for p, f := range m.files {
		if p != dir && filepath.Dir(p) == dir {
			entries = append(entries, fs.FileInfoToDirEntry(newFileInfo(p, f)))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MockFilesystemManager) Stat(path string) (*fidx.FileMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.statErr[path]; ok {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
	}
	return &fidx.FileMeta{
		Size:       file.Size,
		Mode:       file.Mode,
		CreatedAt:  file.BirthTime,
		ModifiedAt: file.ModTime,
		AccessedAt: file.AccessTime,
	}, nil
}

func (m *MockFilesystemManager) IsIgnored(path, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored[path], nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name string
	file *MockFile
}

func newFileInfo(path string, file *MockFile) *mockFileInfo {
	return &mockFileInfo{name: filepath.Base(path), file: file}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.file.Size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.file.Mode }
func (m *mockFileInfo) ModTime() time.Time { return m.file.ModTime }
func (m *mockFileInfo) IsDir() bool        { return m.file.IsDirectory }
func (m *mockFileInfo) Sys() any           { return m.file }

// Compile-time check
var _ fidx.FilesystemManager = (*MockFilesystemManager)(nil)
