package fidx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"fidx/internal/model"
	"fidx/internal/watcher"
)

// Handle applies one change event to the index. It implements
// watcher.Handler and is the storage side of the watch pipeline.
//
// Created and Modified re-read the file: a path that is gone marks its
// record deleted, directories are ignored, anything else is created or
// refreshed and re-tagged. Deleted marks the record deleted. Moved keeps
// the user's tags by moving the record to its new path.
func (s *IndexService) Handle(ctx context.Context, ev watcher.FileEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch e := ev.(type) {
	case watcher.Created:
		err = s.applyUpsert(e.Path)
	case watcher.Modified:
		err = s.applyUpsert(e.Path)
	case watcher.Deleted:
		err = s.applyDelete(e.Path)
	case watcher.Moved:
		err = s.applyMove(e.From, e.To)
	case watcher.ScanStart:
		s.logger.Debug("scan marker", "event", e)
	case watcher.ScanEnd:
		s.logger.Debug("scan marker", "event", e)
	case watcher.Error:
		s.logger.Warn("watcher reported an error", "path", e.Path, "message", e.Message)
	default:
		err = fmt.Errorf("unknown event type %T", ev)
	}

	if err != nil {
		s.metrics.EventFailed(ev.Kind())
		return fmt.Errorf("applying %v: %w", ev, err)
	}
	s.metrics.EventApplied(ev.Kind())
	s.logger.Debug("event applied", "event", ev)
	return nil
}

func (s *IndexService) applyUpsert(path string) error {
	meta, err := s.fsmgr.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Gone before we got to it; renames away from a path look like this too.
		return s.applyDelete(path)
	}
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !meta.Mode.IsRegular() {
		return nil
	}

	existing, err := s.database.FindFileByPath(path)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}

	record := s.recordFromMeta(path, meta)
	if existing == nil {
		if _, err := s.database.CreateFile(record); err != nil {
			return fmt.Errorf("creating file record: %w", err)
		}
		s.logger.Info("file indexed", "path", path)
	} else {
		record.ID = existing.ID
		record.Metadata = existing.Metadata
		if err := s.database.UpdateFileMetadata(record); err != nil {
			return fmt.Errorf("updating file record: %w", err)
		}
	}

	if _, err := s.TagFile(record); err != nil {
		return fmt.Errorf("tagging: %w", err)
	}
	return nil
}

func (s *IndexService) applyDelete(path string) error {
	existing, err := s.database.FindFileByPath(path)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}
	if existing == nil {
		return nil
	}
	if err := s.database.UpdateFileStatus(existing.ID, model.FileStatusDeleted); err != nil {
		return fmt.Errorf("marking file deleted: %w", err)
	}
	s.logger.Info("file removed from index", "path", path)
	return nil
}

func (s *IndexService) applyMove(from, to string) error {
	existing, err := s.database.FindFileByPath(from)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}
	if existing == nil {
		return s.applyUpsert(to)
	}

	meta, err := s.fsmgr.Stat(to)
	if errors.Is(err, fs.ErrNotExist) {
		return s.applyDelete(from)
	}
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !meta.Mode.IsRegular() {
		return s.applyDelete(from)
	}

	moved, err := s.database.MoveFile(existing.ID, s.recordFromMeta(to, meta))
	if err != nil {
		return fmt.Errorf("moving file record: %w", err)
	}
	s.logger.Info("file moved", "from", from, "to", to)

	// Path rules depend on the new location.
	if _, err := s.TagFile(moved); err != nil {
		return fmt.Errorf("tagging: %w", err)
	}
	return nil
}

func (s *IndexService) recordFromMeta(path string, meta *FileMeta) *model.FileRecord {
	now := s.clock.Now()
	name, ext := SplitName(path)
	return &model.FileRecord{
		Path:       path,
		Name:       name,
		Extension:  ext,
		Size:       meta.Size,
		FileType:   model.FileTypeFromExtension(ext),
		CreatedAt:  orNow(meta.CreatedAt, now),
		ModifiedAt: orNow(meta.ModifiedAt, now),
		AccessedAt: orNow(meta.AccessedAt, now),
		Status:     model.FileStatusActive,
		IndexedAt:  now,
	}
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
