package rules

import "fidx/internal/model"

const (
	kib = 1024
	mib = 1024 * kib

	SmallFileThreshold = 10 * kib  // small files are strictly below this
	LargeFileThreshold = 100 * mib // large files are strictly above this
)

// DefaultRules returns the built-in rule set: one rule per concrete file
// type, small and large size thresholds, recent-modification periods and
// common home directory segments.
func DefaultRules() []Rule {
	typeRule := func(t model.FileType) Rule {
		return Rule{Name: string(t), Condition: FileTypeIn{Types: []model.FileType{t}}}
	}
	pathRule := func(name, segment string) Rule {
		return Rule{Name: name, Condition: PathContains{Substring: segment}}
	}

	return []Rule{
		typeRule(model.FileTypeImage),
		typeRule(model.FileTypeAudio),
		typeRule(model.FileTypeVideo),
		typeRule(model.FileTypeText),
		typeRule(model.FileTypeBinary),

		{Name: "small-file", Condition: SizeRange{Max: Bound(SmallFileThreshold - 1)}},
		{Name: "large-file", Condition: SizeRange{Min: Bound(LargeFileThreshold + 1)}},

		{Name: "today", Condition: DateMatch{Pattern: Today}},
		{Name: "this-week", Condition: DateMatch{Pattern: ThisWeek}},
		{Name: "this-month", Condition: DateMatch{Pattern: ThisMonth}},

		pathRule("downloads", "downloads"),
		pathRule("documents", "documents"),
		pathRule("desktop", "desktop"),
		pathRule("image", "pictures"),
		pathRule("music", "music"),
		pathRule("video", "videos"),
	}
}
