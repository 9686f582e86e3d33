package fidx

import (
	"fmt"
	"strings"

	"fidx/internal/model"
)

// TagSpec describes a user-created tag.
type TagSpec struct {
	Name        string
	DisplayName string // defaults to Name
	Color       string // defaults to model.DefaultTagColor
	Icon        string
}

// CreateTag creates a custom tag.
func (s *IndexService) CreateTag(spec TagSpec) (*model.TagRecord, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}

	existing, err := s.database.FindTagByName(name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing tag: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrTagExists, name)
	}

	tag := &model.TagRecord{
		Name:        name,
		DisplayName: spec.DisplayName,
		TagType:     model.TagTypeCustom,
		Color:       spec.Color,
		Icon:        spec.Icon,
	}
	if tag.DisplayName == "" {
		tag.DisplayName = name
	}
	if tag.Color == "" {
		tag.Color = model.DefaultTagColor
	}
	if err := s.database.CreateTag(tag); err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	s.logger.Info("tag created", "name", name)
	return tag, nil
}

// UpdateTag changes the presentation of an existing tag. Empty fields in
// spec keep their current value.
func (s *IndexService) UpdateTag(spec TagSpec) (*model.TagRecord, error) {
	tag, err := s.findTag(spec.Name)
	if err != nil {
		return nil, err
	}
	if spec.DisplayName != "" {
		tag.DisplayName = spec.DisplayName
	}
	if spec.Color != "" {
		tag.Color = spec.Color
	}
	if spec.Icon != "" {
		tag.Icon = spec.Icon
	}
	if err := s.database.UpdateTag(tag); err != nil {
		return nil, fmt.Errorf("updating tag: %w", err)
	}
	return tag, nil
}

// ListTags returns every tag.
func (s *IndexService) ListTags() ([]*model.TagRecord, error) {
	tags, err := s.database.ListTags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and all of its associations.
func (s *IndexService) DeleteTag(name string) error {
	tag, err := s.findTag(name)
	if err != nil {
		return err
	}
	if err := s.database.DeleteTag(tag.ID); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	s.tagIDs.Remove(tag.Name)
	s.logger.Info("tag deleted", "name", tag.Name)
	return nil
}

// AddTagToFile applies a tag to an indexed file on the user's behalf.
// An unknown tag name is provisioned as a custom tag.
func (s *IndexService) AddTagToFile(path *Path, tagName string) error {
	file, err := s.findFile(path)
	if err != nil {
		return err
	}

	tagName = strings.TrimSpace(tagName)
	if tagName == "" {
		return fmt.Errorf("tag name is required")
	}
	tag, err := s.database.GetOrCreateTagByName(tagName, model.TagTypeCustom)
	if err != nil {
		return fmt.Errorf("resolving tag: %w", err)
	}

	if err := s.database.AddTagAssociation(file.ID, tag.ID, false); err != nil {
		return fmt.Errorf("adding tag: %w", err)
	}
	s.logger.Info("tag added", "path", file.Path, "tag", tag.Name)
	return nil
}

// RemoveTagFromFile removes a tag from an indexed file.
func (s *IndexService) RemoveTagFromFile(path *Path, tagName string) error {
	file, err := s.findFile(path)
	if err != nil {
		return err
	}
	tag, err := s.findTag(tagName)
	if err != nil {
		return err
	}
	if err := s.database.RemoveTagAssociation(file.ID, tag.ID); err != nil {
		return fmt.Errorf("removing tag: %w", err)
	}
	s.logger.Info("tag removed", "path", file.Path, "tag", tag.Name)
	return nil
}

// FileTags returns the tags of an indexed file.
func (s *IndexService) FileTags(path *Path) ([]*model.FileTagAssociation, error) {
	file, err := s.findFile(path)
	if err != nil {
		return nil, err
	}
	assocs, err := s.database.ListFileTagAssociations(file.ID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return assocs, nil
}

// FilesByTags returns active files that carry every named tag.
func (s *IndexService) FilesByTags(names []string) ([]*model.FileRecord, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}
	files, err := s.database.FindFilesByTags(names)
	if err != nil {
		return nil, fmt.Errorf("finding files by tags: %w", err)
	}
	return files, nil
}

func (s *IndexService) findFile(path *Path) (*model.FileRecord, error) {
	file, err := s.database.FindFileByPath(path.String())
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path.String())
	}
	return file, nil
}

func (s *IndexService) findTag(name string) (*model.TagRecord, error) {
	tag, err := s.database.FindTagByName(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("finding tag: %w", err)
	}
	if tag == nil {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, name)
	}
	return tag, nil
}
