package fidx

import (
	"io/fs"
	"time"
)

// FileMeta is the metadata the index keeps for a filesystem entry.
// Zero timestamps mean the platform could not supply them.
type FileMeta struct {
	Size       int64
	Mode       fs.FileMode
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time
}

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// ReadDir lists the entries of a directory sorted by name.
	ReadDir(dir string) ([]fs.DirEntry, error)

	// Stat returns fresh metadata without following symlinks.
	// A missing path yields an error matching fs.ErrNotExist.
	Stat(path string) (*FileMeta, error)

	// IsIgnored reports whether path, inside root, matches an ignore pattern.
	IsIgnored(path, root string) (bool, error)
}
