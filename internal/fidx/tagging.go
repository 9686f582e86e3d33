package fidx

import (
	"errors"
	"fmt"

	"fidx/internal/model"
)

// TagReport describes what auto-tagging did to one or more files.
// Failures are collected per association; the rest still apply.
type TagReport struct {
	Files   int
	Applied int // new auto associations
	Removed int // stale auto associations removed
	Errors  []error
}

func (r *TagReport) merge(other *TagReport) {
	r.Files += other.Files
	r.Applied += other.Applied
	r.Removed += other.Removed
	r.Errors = append(r.Errors, other.Errors...)
}

// Err joins the collected failures, or returns nil when there were none.
func (r *TagReport) Err() error {
	return errors.Join(r.Errors...)
}

// TagFile runs the rule engine over file and brings its automatic tags in
// line with the result: missing tags are provisioned as system tags and
// associated with is_auto set, and auto tags whose rule no longer matches
// are removed. Tags the user applied are never touched.
//
// The report is always returned; the error joins per-tag failures.
func (s *IndexService) TagFile(file *model.FileRecord) (*TagReport, error) {
	report := &TagReport{Files: 1}

	names := s.engine.GenerateTags(file, s.clock.Now())
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	current, err := s.database.ListFileTagAssociations(file.ID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("listing tags of %s: %w", file.Path, err))
		return report, report.Err()
	}
	have := make(map[string]*model.FileTagAssociation, len(current))
	for _, a := range current {
		have[a.TagName] = a
	}

	for _, name := range names {
		if _, ok := have[name]; ok {
			continue
		}
		tagID, err := s.systemTagID(name)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("tag %q for %s: %w", name, file.Path, err))
			continue
		}
		if err := s.database.AddTagAssociation(file.ID, tagID, true); err != nil {
			// The cached ID may belong to a tag deleted since.
			s.tagIDs.Remove(name)
			report.Errors = append(report.Errors, fmt.Errorf("tag %q for %s: %w", name, file.Path, err))
			continue
		}
		report.Applied++
	}

	for _, a := range current {
		if !a.IsAuto {
			continue
		}
		if _, ok := wanted[a.TagName]; ok {
			continue
		}
		if err := s.database.RemoveTagAssociation(file.ID, a.TagID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("removing stale tag %q from %s: %w", a.TagName, file.Path, err))
			continue
		}
		report.Removed++
	}

	if report.Applied > 0 {
		s.metrics.AutoTagsApplied(report.Applied)
	}
	for _, err := range report.Errors {
		s.logger.Warn("auto-tagging failed", "path", file.Path, "error", err)
	}
	return report, report.Err()
}

// TagFiles runs TagFile over every file and keeps going past failures.
func (s *IndexService) TagFiles(files []*model.FileRecord) (*TagReport, error) {
	report := &TagReport{}
	for _, f := range files {
		r, _ := s.TagFile(f)
		report.merge(r)
	}
	return report, report.Err()
}

// RetagAll re-runs auto-tagging over every active file, for example after
// the rule set changed.
func (s *IndexService) RetagAll() (*TagReport, error) {
	const page = 500
	report := &TagReport{}
	for offset := 0; ; offset += page {
		files, err := s.database.ListFiles(model.FileStatusActive, page, offset)
		if err != nil {
			return report, fmt.Errorf("listing files: %w", err)
		}
		r, _ := s.TagFiles(files)
		report.merge(r)
		if len(files) < page {
			break
		}
	}
	s.logger.Info("retagged files", "files", report.Files, "applied", report.Applied, "removed", report.Removed, "errors", len(report.Errors))
	return report, report.Err()
}

// systemTagID resolves a tag name to its ID, provisioning a system tag on
// first use.
func (s *IndexService) systemTagID(name string) (int64, error) {
	if id, ok := s.tagIDs.Get(name); ok {
		return id, nil
	}
	tag, err := s.database.GetOrCreateTagByName(name, model.TagTypeSystem)
	if err != nil {
		return 0, err
	}
	s.tagIDs.Add(name, tag.ID)
	return tag.ID, nil
}
