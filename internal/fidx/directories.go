package fidx

import (
	"errors"
	"fmt"

	"fidx/internal/model"
)

// AddWatchedDirectory registers a directory for scanning and watching.
// If the directory is already registered, the existing record is returned.
func (s *IndexService) AddWatchedDirectory(path *Path, cfg ScanConfig) (*model.WatchedDirectory, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path.String())
	}

	existing, err := s.database.FindWatchedDirectoryByPath(path.String())
	if err != nil {
		return nil, fmt.Errorf("checking for existing directory: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	dir := &model.WatchedDirectory{
		Path:            path.String(),
		Recursive:       cfg.Recursive,
		Extensions:      cfg.Extensions,
		ExcludePatterns: cfg.ExcludePatterns,
		Enabled:         true,
	}
	if err := s.database.CreateWatchedDirectory(dir); err != nil {
		return nil, fmt.Errorf("creating watched directory: %w", err)
	}

	s.logger.Info("directory watched", "path", dir.Path, "recursive", dir.Recursive)
	return dir, nil
}

// ListWatchedDirectories returns every registered directory.
func (s *IndexService) ListWatchedDirectories() ([]*model.WatchedDirectory, error) {
	dirs, err := s.database.ListWatchedDirectories()
	if err != nil {
		return nil, fmt.Errorf("listing watched directories: %w", err)
	}
	return dirs, nil
}

// RemoveWatchedDirectory unregisters a directory. Indexed files stay.
func (s *IndexService) RemoveWatchedDirectory(absPath string) error {
	dir, err := s.database.FindWatchedDirectoryByPath(absPath)
	if err != nil {
		return fmt.Errorf("finding watched directory: %w", err)
	}
	if dir == nil {
		return fmt.Errorf("%w: %s", ErrDirNotFound, absPath)
	}
	if err := s.database.DeleteWatchedDirectory(dir.ID); err != nil {
		return fmt.Errorf("deleting watched directory: %w", err)
	}
	s.logger.Info("directory unwatched", "path", absPath)
	return nil
}

// ScanWatchedDirectories scans every enabled directory with its own
// settings and stamps its last scan time. A directory that cannot be
// scanned gets a result carrying the failure and the rest still run.
func (s *IndexService) ScanWatchedDirectories(maxDepth int) ([]*ScanResult, error) {
	dirs, err := s.database.ListWatchedDirectories()
	if err != nil {
		return nil, fmt.Errorf("listing watched directories: %w", err)
	}

	var results []*ScanResult
	var errs []error
	for _, dir := range dirs {
		if !dir.Enabled {
			continue
		}

		result, err := s.scanWatched(dir, maxDepth)
		if err != nil {
			errs = append(errs, fmt.Errorf("scanning %s: %w", dir.Path, err))
			result = &ScanResult{ScanPath: dir.Path}
			result.addError(dir.Path, err)
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func (s *IndexService) scanWatched(dir *model.WatchedDirectory, maxDepth int) (*ScanResult, error) {
	root, err := s.fsmgr.Resolve(dir.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	result, err := s.Scan(root, ScanConfig{
		Recursive:       dir.Recursive,
		Extensions:      dir.Extensions,
		ExcludePatterns: dir.ExcludePatterns,
		MaxDepth:        maxDepth,
	})
	if err != nil {
		return nil, err
	}

	if err := s.database.TouchWatchedDirectory(dir.ID, s.clock.Now()); err != nil {
		return result, fmt.Errorf("recording scan time: %w", err)
	}
	return result, nil
}
