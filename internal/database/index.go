package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fidx/internal/model"
	"fidx/internal/search"
)

// Search

// trailing scans extra columns that follow a full record.
type trailing struct {
	rowScanner
	extra []any
}

func (t trailing) Scan(dest ...any) error {
	return t.rowScanner.Scan(append(dest, t.extra...)...)
}

func (s *SQLiteDatabase) FullTextSearch(expression string, fileType *model.FileType, limit, offset int) ([]*search.Match, int64, error) {
	where := "files_fts MATCH ? AND f.status = 'active'"
	args := []any{expression}
	if fileType != nil {
		where += " AND f.file_type = ?"
		args = append(args, string(*fileType))
	}

	var total int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files_fts
		JOIN files f ON f.id = files_fts.rowid WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting matches: %w", err)
	}

	rows, err := s.db.Query("SELECT "+prefixed("f", fileColumns)+`, -bm25(files_fts) AS relevance
		FROM files_fts JOIN files f ON f.id = files_fts.rowid
		WHERE `+where+`
		ORDER BY relevance DESC, f.created_at DESC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var matches []*search.Match
	for rows.Next() {
		var relevance float64
		f, err := scanFile(trailing{rows, []any{&relevance}})
		if err != nil {
			return nil, 0, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, &search.Match{File: f, Relevance: relevance})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("searching: %w", err)
	}
	return matches, total, nil
}

// Watched directory operations

const watchedColumns = "id, path, recursive, extensions, exclude_patterns, enabled, created_at, last_scanned_at"

func scanWatched(row rowScanner) (*model.WatchedDirectory, error) {
	var (
		d                   model.WatchedDirectory
		recursive, enabled  int
		extensions, exclude string
		createdAt           int64
		lastScanned         sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.Path, &recursive, &extensions, &exclude, &enabled, &createdAt, &lastScanned); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(extensions), &d.Extensions); err != nil {
		return nil, fmt.Errorf("decoding extensions: %w", err)
	}
	if err := json.Unmarshal([]byte(exclude), &d.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("decoding exclude patterns: %w", err)
	}
	d.Recursive = recursive != 0
	d.Enabled = enabled != 0
	d.CreatedAt = fromUnix(createdAt)
	if lastScanned.Valid {
		t := fromUnix(lastScanned.Int64)
		d.LastScannedAt = &t
	}
	return &d, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLiteDatabase) CreateWatchedDirectory(dir *model.WatchedDirectory) error {
	extensions, err := encodeList(dir.Extensions)
	if err != nil {
		return fmt.Errorf("encoding extensions: %w", err)
	}
	exclude, err := encodeList(dir.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("encoding exclude patterns: %w", err)
	}
	if dir.CreatedAt.IsZero() {
		dir.CreatedAt = s.clock.Now()
	}

	res, err := s.db.Exec(`INSERT INTO watched_directories (path, recursive, extensions, exclude_patterns, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		dir.Path, boolInt(dir.Recursive), extensions, exclude, boolInt(dir.Enabled), toUnix(dir.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating watched directory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading watched directory id: %w", err)
	}
	dir.ID = id
	return nil
}

func (s *SQLiteDatabase) FindWatchedDirectoryByPath(path string) (*model.WatchedDirectory, error) {
	row := s.db.QueryRow("SELECT "+watchedColumns+" FROM watched_directories WHERE path = ?", path)
	d, err := scanWatched(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding watched directory: %w", err)
	}
	return d, nil
}

func (s *SQLiteDatabase) ListWatchedDirectories() ([]*model.WatchedDirectory, error) {
	rows, err := s.db.Query("SELECT " + watchedColumns + " FROM watched_directories ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing watched directories: %w", err)
	}
	defer rows.Close()

	var dirs []*model.WatchedDirectory
	for rows.Next() {
		d, err := scanWatched(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning watched directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

func (s *SQLiteDatabase) DeleteWatchedDirectory(id int64) error {
	if _, err := s.db.Exec("DELETE FROM watched_directories WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting watched directory: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) TouchWatchedDirectory(id int64, scannedAt time.Time) error {
	if _, err := s.db.Exec("UPDATE watched_directories SET last_scanned_at = ? WHERE id = ?", toUnix(scannedAt), id); err != nil {
		return fmt.Errorf("updating scan time: %w", err)
	}
	return nil
}

// Operation history

func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*model.Operation, error) {
	startedAt := s.clock.Now()
	res, err := s.db.Exec("INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, 'running')",
		toUnix(startedAt), operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &model.Operation{
		ID:         id,
		StartedAt:  fromUnix(toUnix(startedAt)),
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec("UPDATE operations SET finished_at = ?, status = ? WHERE id = ?",
		toUnix(s.clock.Now()), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, operation, parameters, status
		FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var (
			op         model.Operation
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &startedAt, &finishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		op.StartedAt = fromUnix(startedAt)
		if finishedAt.Valid {
			t := fromUnix(finishedAt.Int64)
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (s *SQLiteDatabase) Stats() (*model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(*) FROM files WHERE status = 'active'),
		(SELECT COUNT(*) FROM tags),
		(SELECT COUNT(*) FROM watched_directories WHERE enabled = 1)`).
		Scan(&st.TotalFiles, &st.ActiveFiles, &st.TotalTags, &st.WatchedDirectories)
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return &st, nil
}
