package model

import "time"

// FileRecord represents an indexed file on the local host.
type FileRecord struct {
	ID         int64  // Assigned by the database on creation
	Path       string // Absolute path, unique among active records
	Name       string // Base name including extension
	Extension  string // Extension without the leading dot
	Size       int64  // Size in bytes
	FileType   FileType
	CreatedAt  time.Time // Birth time, or the index time when the OS cannot supply it
	ModifiedAt time.Time // mtime
	AccessedAt time.Time // atime
	Status     FileStatus
	IndexedAt  time.Time
	Metadata   string // Optional free-form JSON
}

// TagRecord represents a tag that can be attached to files.
type TagRecord struct {
	ID          int64
	Name        string // Unique
	DisplayName string
	TagType     TagType
	Color       string
	Icon        string // Empty when unset
	UseCount    int64  // Number of associations; never negative
	CreatedAt   time.Time
}

// FileTagAssociation links a file to a tag.
// There is at most one association per (FileID, TagID) pair.
type FileTagAssociation struct {
	FileID    int64
	TagID     int64
	TagName   string
	IsAuto    bool // true when applied by the rule engine
	CreatedAt time.Time
}

// WatchedDirectory is a directory registered for scanning and live watching.
type WatchedDirectory struct {
	ID              int64
	Path            string
	Recursive       bool
	Extensions      []string // Optional extension allow-list
	ExcludePatterns []string // Optional case-insensitive substrings
	Enabled         bool
	CreatedAt       time.Time
	LastScannedAt   *time.Time
}

// Operation is a recorded CLI operation (scan, watch, tag changes).
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Operation  string
	Parameters string
	Status     string // "running", "success" or "error"
}

// Stats summarises the index.
type Stats struct {
	TotalFiles         int64
	ActiveFiles        int64
	TotalTags          int64
	WatchedDirectories int64
}
