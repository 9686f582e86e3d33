package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fidx/internal/model"
)

// Tag operations

const tagColumns = "id, name, display_name, tag_type, color, icon, use_count, created_at"

func scanTag(row rowScanner) (*model.TagRecord, error) {
	var (
		t         model.TagRecord
		tagType   string
		icon      sql.NullString
		createdAt int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &tagType, &t.Color, &icon, &t.UseCount, &createdAt); err != nil {
		return nil, err
	}
	var err error
	t.TagType, err = model.ParseTagType(tagType)
	if err != nil {
		return nil, err
	}
	t.Icon = icon.String
	t.CreatedAt = fromUnix(createdAt)
	return &t, nil
}

func collectTags(rows *sql.Rows) ([]*model.TagRecord, error) {
	defer rows.Close()
	var tags []*model.TagRecord
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *SQLiteDatabase) GetOrCreateTagByName(name string, tagType model.TagType) (*model.TagRecord, error) {
	_, err := s.db.Exec(`INSERT INTO tags (name, display_name, tag_type, color, use_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?) ON CONFLICT(name) DO NOTHING`,
		name, name, string(tagType), model.DefaultTagColor, toUnix(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	tag, err := s.FindTagByName(name)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q vanished after insert", name)
	}
	return tag, nil
}

func (s *SQLiteDatabase) CreateTag(tag *model.TagRecord) error {
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = s.clock.Now()
	}
	res, err := s.db.Exec(`INSERT INTO tags (name, display_name, tag_type, color, icon, use_count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		tag.Name, tag.DisplayName, string(tag.TagType), tag.Color, nullString(tag.Icon), toUnix(tag.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading tag id: %w", err)
	}
	tag.ID = id
	tag.UseCount = 0
	return nil
}

func (s *SQLiteDatabase) FindTagByName(name string) (*model.TagRecord, error) {
	row := s.db.QueryRow("SELECT "+tagColumns+" FROM tags WHERE name = ?", name)
	t, err := scanTag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding tag: %w", err)
	}
	return t, nil
}

func (s *SQLiteDatabase) ListTags() ([]*model.TagRecord, error) {
	rows, err := s.db.Query("SELECT " + tagColumns + " FROM tags ORDER BY use_count DESC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tags, err := collectTags(rows)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) UpdateTag(tag *model.TagRecord) error {
	_, err := s.db.Exec("UPDATE tags SET display_name = ?, color = ?, icon = ? WHERE id = ?",
		tag.DisplayName, tag.Color, nullString(tag.Icon), tag.ID)
	if err != nil {
		return fmt.Errorf("updating tag: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteTag(id int64) error {
	if _, err := s.db.Exec("DELETE FROM tags WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	return nil
}

// Association operations

func (s *SQLiteDatabase) AddTagAssociation(fileID, tagID int64, isAuto bool) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_tags WHERE file_id = ? AND tag_id = ?", fileID, tagID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking association: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO file_tags (file_id, tag_id, is_auto, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id, tag_id) DO UPDATE SET is_auto = excluded.is_auto, created_at = excluded.created_at`,
		fileID, tagID, boolInt(isAuto), toUnix(s.clock.Now()))
	if err != nil {
		return fmt.Errorf("adding association: %w", err)
	}

	if exists == 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE tags SET use_count = use_count + 1 WHERE id = ?", tagID); err != nil {
			return fmt.Errorf("updating tag count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) RemoveTagAssociation(fileID, tagID int64) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM file_tags WHERE file_id = ? AND tag_id = ?", fileID, tagID)
	if err != nil {
		return fmt.Errorf("removing association: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE tags SET use_count = MAX(use_count - 1, 0) WHERE id = ?", tagID); err != nil {
			return fmt.Errorf("updating tag count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) GetTagsForFile(fileID int64) ([]*model.TagRecord, error) {
	rows, err := s.db.Query("SELECT "+prefixed("t", tagColumns)+` FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ? ORDER BY t.name`, fileID)
	if err != nil {
		return nil, fmt.Errorf("getting tags for file: %w", err)
	}
	tags, err := collectTags(rows)
	if err != nil {
		return nil, fmt.Errorf("getting tags for file: %w", err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) ListFileTagAssociations(fileID int64) ([]*model.FileTagAssociation, error) {
	rows, err := s.db.Query(`SELECT ft.file_id, ft.tag_id, t.name, ft.is_auto, ft.created_at
		FROM file_tags ft JOIN tags t ON t.id = ft.tag_id
		WHERE ft.file_id = ? ORDER BY t.name`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing associations: %w", err)
	}
	defer rows.Close()

	var assocs []*model.FileTagAssociation
	for rows.Next() {
		var (
			a         model.FileTagAssociation
			isAuto    int
			createdAt int64
		)
		if err := rows.Scan(&a.FileID, &a.TagID, &a.TagName, &isAuto, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		a.IsAuto = isAuto != 0
		a.CreatedAt = fromUnix(createdAt)
		assocs = append(assocs, &a)
	}
	return assocs, rows.Err()
}

func (s *SQLiteDatabase) FindFilesByTags(names []string) ([]*model.FileRecord, error) {
	seen := make(map[string]bool, len(names))
	args := make([]any, 0, len(names)+1)
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			args = append(args, n)
		}
	}
	if len(args) == 0 {
		return nil, nil
	}
	count := len(args)
	args = append(args, count)

	rows, err := s.db.Query("SELECT "+prefixed("f", fileColumns)+` FROM files f
		JOIN file_tags ft ON ft.file_id = f.id
		JOIN tags t ON t.id = ft.tag_id
		WHERE f.status = 'active' AND t.name IN (`+placeholders(count)+`)
		GROUP BY f.id
		HAVING COUNT(DISTINCT t.id) = ?
		ORDER BY f.path`, args...)
	if err != nil {
		return nil, fmt.Errorf("finding files by tags: %w", err)
	}
	files, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("finding files by tags: %w", err)
	}
	return files, nil
}

func placeholders(n int) string {
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
