package fidx

import (
	"time"

	"fidx/internal/model"
	"fidx/internal/search"
)

// Database provides an interface for index storage operations.
// Lookups return (nil, nil) when nothing matches. Every method that changes
// more than one row does so in a single transaction.
type Database interface {
	// File operations

	// CreateFile inserts an active file record and sets file.ID.
	CreateFile(file *model.FileRecord) (int64, error)

	// FindFileByPath returns the active record at path.
	FindFileByPath(path string) (*model.FileRecord, error)

	// FindFileByID returns a record in any status.
	FindFileByID(id int64) (*model.FileRecord, error)

	// UpdateFileStatus moves a record to a new lifecycle status.
	UpdateFileStatus(id int64, status model.FileStatus) error

	// UpdateFileMetadata rewrites size, type, timestamps and indexed_at of file.ID.
	UpdateFileMetadata(file *model.FileRecord) error

	// MoveFile marks id as moved, creates an active record for dest and
	// carries the user-applied tags across. It returns the new record.
	MoveFile(id int64, dest *model.FileRecord) (*model.FileRecord, error)

	// DeleteFile removes a record and its associations for good.
	DeleteFile(id int64) error

	// ListFiles returns records with the given status, newest first.
	ListFiles(status model.FileStatus, limit, offset int) ([]*model.FileRecord, error)

	// Tag operations

	// GetOrCreateTagByName returns the tag called name, creating it with
	// tagType when it does not exist yet.
	GetOrCreateTagByName(name string, tagType model.TagType) (*model.TagRecord, error)

	// CreateTag inserts a tag and sets tag.ID.
	CreateTag(tag *model.TagRecord) error

	FindTagByName(name string) (*model.TagRecord, error)
	ListTags() ([]*model.TagRecord, error)

	// UpdateTag rewrites display name, colour and icon.
	UpdateTag(tag *model.TagRecord) error

	// DeleteTag removes a tag and every association to it.
	DeleteTag(id int64) error

	// Association operations

	// AddTagAssociation links a file and a tag. Re-adding an existing pair
	// replaces it without counting it twice.
	AddTagAssociation(fileID, tagID int64, isAuto bool) error

	// RemoveTagAssociation unlinks a file and a tag. The tag's use count
	// never drops below zero.
	RemoveTagAssociation(fileID, tagID int64) error

	GetTagsForFile(fileID int64) ([]*model.TagRecord, error)
	ListFileTagAssociations(fileID int64) ([]*model.FileTagAssociation, error)

	// FindFilesByTags returns active files carrying every named tag.
	FindFilesByTags(names []string) ([]*model.FileRecord, error)

	// Search

	// FullTextSearch ranks active files against a match expression and
	// returns one page plus the unpaginated total.
	FullTextSearch(expression string, fileType *model.FileType, limit, offset int) ([]*search.Match, int64, error)

	// Watched directory operations

	CreateWatchedDirectory(dir *model.WatchedDirectory) error
	FindWatchedDirectoryByPath(path string) (*model.WatchedDirectory, error)
	ListWatchedDirectories() ([]*model.WatchedDirectory, error)
	DeleteWatchedDirectory(id int64) error
	TouchWatchedDirectory(id int64, scannedAt time.Time) error

	// Operation history

	CreateOperation(operation, parameters string) (*model.Operation, error)
	FinishOperation(id int64, status string) error
	ListOperations(limit int) ([]*model.Operation, error)

	Stats() (*model.Stats, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
