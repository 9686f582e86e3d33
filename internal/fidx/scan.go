package fidx

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"fidx/internal/model"
	"fidx/internal/watcher"
)

// ScanConfig controls which entries a scan visits.
type ScanConfig struct {
	Recursive       bool
	Extensions      []string // allow-list; empty means every extension
	ExcludePatterns []string // case-insensitive substrings of directory paths
	MaxDepth        int      // deepest directory level processed, root is 0; 0 means unlimited
}

// ScanError is a non-fatal failure for one entry.
type ScanError struct {
	Path    string
	Message string
}

// ScanResult reports what a scan did. It is not persisted.
type ScanResult struct {
	ScanPath     string
	ScannedFiles int
	AddedFiles   int
	UpdatedFiles int
	SkippedFiles int
	Errors       []ScanError
}

func (r *ScanResult) addError(path string, err error) {
	r.Errors = append(r.Errors, ScanError{Path: path, Message: err.Error()})
}

type scanDir struct {
	path  string
	depth int
}

// Scan walks the directory at root and indexes every file that passes cfg.
//
// Hidden directories and directories whose path contains an exclude
// pattern are skipped with everything below them. The root is checked the
// same way: a hidden or excluded root yields an empty result. Files outside the extension allow-list are passed over
// without being counted, files matching an ignore pattern and non-regular
// entries count as skipped. New files are created, already indexed ones
// count as updated and are left as stored. Both are run through the rule
// engine.
//
// Only a root that cannot be read is an error; every other failure is
// recorded in the result and the walk goes on.
func (s *IndexService) Scan(root *Path, cfg ScanConfig) (*ScanResult, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root.String())
	}

	rootPath := root.String()
	excludes := lowerAll(cfg.ExcludePatterns)
	if skipDirectory(rootPath, filepath.Base(rootPath), excludes) {
		s.logger.Info("scan root is hidden or excluded", "path", rootPath)
		return &ScanResult{ScanPath: rootPath}, nil
	}

	entries, err := s.fsmgr.ReadDir(rootPath)
	if err != nil {
		return nil, fmt.Errorf("reading scan root: %w", err)
	}

	s.logger.Info("scan started", "path", rootPath, "recursive", cfg.Recursive)
	s.announce(watcher.ScanStart{Path: rootPath})

	result := &ScanResult{ScanPath: rootPath}
	allowed := extensionSet(cfg.Extensions)

	stack := []scanDir{{path: rootPath, depth: 0}}
	first := true
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !first {
			entries, err = s.fsmgr.ReadDir(dir.path)
			if err != nil {
				s.logger.Warn("reading directory failed", "path", dir.path, "error", err)
				result.addError(dir.path, err)
				s.metrics.ScanEntry(ScanEntryError)
				continue
			}
		}
		first = false

		// Push in reverse so siblings are visited in name order.
		for i := len(entries) - 1; i >= 0; i-- {
			entry := entries[i]
			if !entry.IsDir() || !cfg.Recursive {
				continue
			}
			sub := filepath.Join(dir.path, entry.Name())
			if skipDirectory(sub, entry.Name(), excludes) {
				s.logger.Debug("skipping directory", "path", sub)
				continue
			}
			if cfg.MaxDepth > 0 && dir.depth+1 > cfg.MaxDepth {
				continue
			}
			stack = append(stack, scanDir{path: sub, depth: dir.depth + 1})
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			s.scanEntry(rootPath, filepath.Join(dir.path, entry.Name()), entry, allowed, result)
		}
	}

	s.logger.Info("scan finished",
		"path", rootPath,
		"scanned", result.ScannedFiles,
		"added", result.AddedFiles,
		"updated", result.UpdatedFiles,
		"skipped", result.SkippedFiles,
		"errors", len(result.Errors))
	s.announce(watcher.ScanEnd{Path: rootPath, Count: result.ScannedFiles})

	return result, nil
}

func (s *IndexService) scanEntry(root, path string, entry fs.DirEntry, allowed map[string]struct{}, result *ScanResult) {
	if !entry.Type().IsRegular() {
		result.SkippedFiles++
		s.metrics.ScanEntry(ScanEntrySkipped)
		return
	}

	_, ext := SplitName(path)
	if allowed != nil {
		if _, ok := allowed[strings.ToLower(ext)]; !ok {
			return
		}
	}

	ignored, err := s.fsmgr.IsIgnored(path, root)
	if err != nil {
		result.addError(path, err)
		s.metrics.ScanEntry(ScanEntryError)
		return
	}
	if ignored {
		result.SkippedFiles++
		s.metrics.ScanEntry(ScanEntrySkipped)
		return
	}

	result.ScannedFiles++

	record, err := s.buildRecord(path)
	if err != nil {
		s.logger.Warn("reading file metadata failed", "path", path, "error", err)
		result.addError(path, err)
		s.metrics.ScanEntry(ScanEntryError)
		return
	}

	existing, err := s.database.FindFileByPath(path)
	if err != nil {
		result.addError(path, fmt.Errorf("looking up file: %w", err))
		s.metrics.ScanEntry(ScanEntryError)
		return
	}

	if existing == nil {
		if _, err := s.database.CreateFile(record); err != nil {
			result.addError(path, fmt.Errorf("creating file record: %w", err))
			s.metrics.ScanEntry(ScanEntryError)
			return
		}
		result.AddedFiles++
		s.metrics.ScanEntry(ScanEntryAdded)
	} else {
		record = existing
		result.UpdatedFiles++
		s.metrics.ScanEntry(ScanEntryUpdated)
	}

	if _, err := s.TagFile(record); err != nil {
		result.addError(path, fmt.Errorf("tagging: %w", err))
	}
}

// buildRecord stats path and derives a new active FileRecord from it.
func (s *IndexService) buildRecord(path string) (*model.FileRecord, error) {
	meta, err := s.fsmgr.Stat(path)
	if err != nil {
		return nil, err
	}
	return s.recordFromMeta(path, meta), nil
}

func skipDirectory(path, name string, excludes []string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(path)
	for _, pattern := range excludes {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))] = struct{}{}
	}
	return set
}

func lowerAll(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
