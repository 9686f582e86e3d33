package rules

import (
	"fmt"
	"strings"
	"time"

	"fidx/internal/model"
)

// Condition is a test over a file's metadata. The variants are FileTypeIn,
// SizeRange, DateMatch, PathContains, ExtensionIn and NameContains.
//
// Match must be total: it never fails for a well-formed record.
type Condition interface {
	Match(file *model.FileRecord, now time.Time) bool
	String() string

	condition()
}

// FileTypeIn matches files whose type is one of Types.
type FileTypeIn struct {
	Types []model.FileType
}

// SizeRange matches sizes within [Min, Max]. A nil bound is open.
type SizeRange struct {
	Min *int64
	Max *int64
}

// DateMatch matches files whose modification time falls in a calendar period.
type DateMatch struct {
	Pattern DatePattern
}

// PathContains matches a case-insensitive substring of the absolute path.
type PathContains struct {
	Substring string
}

// ExtensionIn matches a case-insensitive extension, with or without the dot.
type ExtensionIn struct {
	Extensions []string
}

// NameContains matches a case-insensitive substring of the file name.
type NameContains struct {
	Substring string
}

func (FileTypeIn) condition()   {}
func (SizeRange) condition()    {}
func (DateMatch) condition()    {}
func (PathContains) condition() {}
func (ExtensionIn) condition()  {}
func (NameContains) condition() {}

func (c FileTypeIn) Match(file *model.FileRecord, _ time.Time) bool {
	for _, t := range c.Types {
		if file.FileType == t {
			return true
		}
	}
	return false
}

func (c SizeRange) Match(file *model.FileRecord, _ time.Time) bool {
	if c.Min != nil && file.Size < *c.Min {
		return false
	}
	if c.Max != nil && file.Size > *c.Max {
		return false
	}
	return true
}

func (c DateMatch) Match(file *model.FileRecord, now time.Time) bool {
	return c.Pattern.Contains(file.ModifiedAt, now)
}

func (c PathContains) Match(file *model.FileRecord, _ time.Time) bool {
	return containsFold(file.Path, c.Substring)
}

func (c ExtensionIn) Match(file *model.FileRecord, _ time.Time) bool {
	ext := strings.TrimPrefix(file.Extension, ".")
	if ext == "" {
		return false
	}
	for _, e := range c.Extensions {
		if strings.EqualFold(ext, strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

func (c NameContains) Match(file *model.FileRecord, _ time.Time) bool {
	return containsFold(file.Name, c.Substring)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (c FileTypeIn) String() string {
	names := make([]string, len(c.Types))
	for i, t := range c.Types {
		names[i] = string(t)
	}
	return "type in [" + strings.Join(names, ", ") + "]"
}

func (c SizeRange) String() string {
	switch {
	case c.Min != nil && c.Max != nil:
		return fmt.Sprintf("size %d..%d", *c.Min, *c.Max)
	case c.Min != nil:
		return fmt.Sprintf("size >= %d", *c.Min)
	case c.Max != nil:
		return fmt.Sprintf("size <= %d", *c.Max)
	}
	return "any size"
}

func (c DateMatch) String() string    { return "modified " + string(c.Pattern) }
func (c PathContains) String() string { return fmt.Sprintf("path contains %q", c.Substring) }
func (c ExtensionIn) String() string {
	return "extension in [" + strings.Join(c.Extensions, ", ") + "]"
}
func (c NameContains) String() string { return fmt.Sprintf("name contains %q", c.Substring) }

// Bound returns a pointer to n, for building SizeRange literals.
func Bound(n int64) *int64 { return &n }
