package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fidx/internal/database/migrations"
	"fidx/internal/fidx"
	"fidx/internal/model"

	_ "modernc.org/sqlite" // SQLite driver with FTS5
)

// SQLiteDatabase implements the Database interface using SQLite.
//
// The pool is limited to a single connection, so every call is serialized
// at the storage boundary and a transaction must never issue queries
// outside itself while it is open.
type SQLiteDatabase struct {
	db    *sql.DB
	clock fidx.Clock
	path  string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the real time.
func NewSQLiteDatabase(path string, clock fidx.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, clock, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock fidx.Clock, path string) *SQLiteDatabase {
	if clock == nil {
		clock = fidx.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One logical connection: mutual exclusion for every caller, and a
	// single shared database for ":memory:".
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// File operations

const fileColumns = "id, path, name, extension, size, file_type, created_at, modified_at, accessed_at, status, indexed_at, metadata"

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.FileRecord, error) {
	var (
		f                                        model.FileRecord
		fileType, status                         string
		createdAt, modifiedAt, accessedAt, index int64
		metadata                                 sql.NullString
	)
	err := row.Scan(&f.ID, &f.Path, &f.Name, &f.Extension, &f.Size, &fileType,
		&createdAt, &modifiedAt, &accessedAt, &status, &index, &metadata)
	if err != nil {
		return nil, err
	}

	f.FileType, err = model.ParseFileType(fileType)
	if err != nil {
		return nil, err
	}
	f.Status, err = model.ParseFileStatus(status)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = fromUnix(createdAt)
	f.ModifiedAt = fromUnix(modifiedAt)
	f.AccessedAt = fromUnix(accessedAt)
	f.IndexedAt = fromUnix(index)
	f.Metadata = metadata.String
	return &f, nil
}

func collectFiles(rows *sql.Rows) ([]*model.FileRecord, error) {
	defer rows.Close()
	var files []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFile(ctx context.Context, ex execer, file *model.FileRecord) (int64, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO files
		(path, name, extension, size, file_type, created_at, modified_at, accessed_at, status, indexed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'active', ?, ?)`,
		file.Path, file.Name, file.Extension, file.Size, string(file.FileType),
		toUnix(file.CreatedAt), toUnix(file.ModifiedAt), toUnix(file.AccessedAt),
		toUnix(file.IndexedAt), nullString(file.Metadata))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDatabase) CreateFile(file *model.FileRecord) (int64, error) {
	id, err := insertFile(context.Background(), s.db, file)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	file.ID = id
	file.Status = model.FileStatusActive
	return id, nil
}

func (s *SQLiteDatabase) FindFileByPath(path string) (*model.FileRecord, error) {
	row := s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE path = ? AND status = 'active'", path)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by path: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) FindFileByID(id int64) (*model.FileRecord, error) {
	row := s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by id: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) UpdateFileStatus(id int64, status model.FileStatus) error {
	_, err := s.db.Exec("UPDATE files SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("updating file status: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateFileMetadata(file *model.FileRecord) error {
	_, err := s.db.Exec(`UPDATE files SET
		size = ?, file_type = ?, created_at = ?, modified_at = ?, accessed_at = ?, indexed_at = ?, metadata = ?
		WHERE id = ?`,
		file.Size, string(file.FileType),
		toUnix(file.CreatedAt), toUnix(file.ModifiedAt), toUnix(file.AccessedAt), toUnix(file.IndexedAt),
		nullString(file.Metadata), file.ID)
	if err != nil {
		return fmt.Errorf("updating file metadata: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) MoveFile(id int64, dest *model.FileRecord) (*model.FileRecord, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE files SET status = 'moved' WHERE id = ? AND status = 'active'", id)
	if err != nil {
		return nil, fmt.Errorf("marking file moved: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("moving file %d: no active record", id)
	}

	// Something may already be indexed at the destination.
	if _, err := tx.ExecContext(ctx, "UPDATE files SET status = 'deleted' WHERE path = ? AND status = 'active'", dest.Path); err != nil {
		return nil, fmt.Errorf("retiring destination record: %w", err)
	}

	newID, err := insertFile(ctx, tx, dest)
	if err != nil {
		return nil, fmt.Errorf("creating moved file: %w", err)
	}

	now := toUnix(s.clock.Now())
	res, err = tx.ExecContext(ctx, `INSERT INTO file_tags (file_id, tag_id, is_auto, created_at)
		SELECT ?, tag_id, 0, ? FROM file_tags WHERE file_id = ? AND is_auto = 0`, newID, now, id)
	if err != nil {
		return nil, fmt.Errorf("copying tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tags SET use_count = use_count + 1
		WHERE id IN (SELECT tag_id FROM file_tags WHERE file_id = ?)`, newID); err != nil {
		return nil, fmt.Errorf("updating tag counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	dest.ID = newID
	dest.Status = model.FileStatusActive
	return dest, nil
}

func (s *SQLiteDatabase) DeleteFile(id int64) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE tags SET use_count = MAX(use_count - 1, 0)
		WHERE id IN (SELECT tag_id FROM file_tags WHERE file_id = ?)`, id); err != nil {
		return fmt.Errorf("updating tag counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListFiles(status model.FileStatus, limit, offset int) ([]*model.FileRecord, error) {
	rows, err := s.db.Query("SELECT "+fileColumns+` FROM files WHERE status = ?
		ORDER BY indexed_at DESC, id DESC LIMIT ? OFFSET ?`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	files, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return files, nil
}

// Helpers

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time check that SQLiteDatabase implements fidx.Database interface
var _ fidx.Database = (*SQLiteDatabase)(nil)
