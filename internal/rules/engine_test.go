package rules

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"fidx/internal/model"
)

// Monday 2024-01-15 10:30 UTC.
var now = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func file(path string, size int64, modified time.Time) *model.FileRecord {
	name := path
	ext := ""
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			ext = path[i+1:]
			break
		}
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			name = path[i+1:]
			break
		}
	}
	return &model.FileRecord{
		Path:       path,
		Name:       name,
		Extension:  ext,
		Size:       size,
		FileType:   model.FileTypeFromExtension(ext),
		ModifiedAt: modified,
	}
}

func TestEngine_GenerateTags(t *testing.T) {
	t.Run("large video matches type and size rules", func(t *testing.T) {
		e := NewDefaultEngine()
		f := file("/srv/media/movie.mp4", 200*mib, now.AddDate(-1, 0, 0))

		got := e.GenerateTags(f, now)
		sort.Strings(got)
		want := []string{"large-file", "video"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GenerateTags() = %v, want %v", got, want)
		}
	})

	t.Run("emits every matching rule", func(t *testing.T) {
		e := NewDefaultEngine()
		f := file("/home/ann/Downloads/notes.txt", 100, now.Add(-time.Hour))

		got := e.GenerateTags(f, now)
		want := []string{"text", "small-file", "today", "this-week", "this-month", "downloads"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GenerateTags() = %v, want %v", got, want)
		}
	})

	t.Run("emits a name once when two rules share it", func(t *testing.T) {
		e := NewDefaultEngine()
		f := file("/home/ann/Pictures/cat.jpg", 50*kib, now.AddDate(0, -2, 0))

		got := e.GenerateTags(f, now)
		want := []string{"image"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("GenerateTags() = %v, want %v", got, want)
		}
	})

	t.Run("other files get no type tag", func(t *testing.T) {
		e := NewDefaultEngine()
		f := file("/srv/blob.xyz", 20*kib, now.AddDate(-2, 0, 0))
		if got := e.GenerateTags(f, now); len(got) != 0 {
			t.Errorf("GenerateTags() = %v, want none", got)
		}
	})
}

func TestSizeRange(t *testing.T) {
	t.Run("max only is inclusive", func(t *testing.T) {
		c := SizeRange{Max: Bound(1000)}
		for _, tc := range []struct {
			size int64
			want bool
		}{{0, true}, {999, true}, {1000, true}, {1001, false}} {
			if got := c.Match(&model.FileRecord{Size: tc.size}, now); got != tc.want {
				t.Errorf("Match(size=%d) = %v, want %v", tc.size, got, tc.want)
			}
		}
	})

	t.Run("min only is inclusive", func(t *testing.T) {
		c := SizeRange{Min: Bound(10)}
		if c.Match(&model.FileRecord{Size: 9}, now) {
			t.Error("Match(9) = true")
		}
		if !c.Match(&model.FileRecord{Size: 10}, now) {
			t.Error("Match(10) = false")
		}
	})

	t.Run("default thresholds", func(t *testing.T) {
		small := SizeRange{Max: Bound(SmallFileThreshold - 1)}
		large := SizeRange{Min: Bound(LargeFileThreshold + 1)}
		if small.Match(&model.FileRecord{Size: SmallFileThreshold}, now) {
			t.Error("a 10 KiB file counted as small")
		}
		if large.Match(&model.FileRecord{Size: LargeFileThreshold}, now) {
			t.Error("a 100 MiB file counted as large")
		}
	})
}

func TestStringConditions(t *testing.T) {
	f := file("/Home/Ann/Reports/Q1-Report.PDF", 1, now)

	tests := []struct {
		name string
		c    Condition
		want bool
	}{
		{"path substring ignores case", PathContains{Substring: "/home/ann"}, true},
		{"path substring miss", PathContains{Substring: "/tmp"}, false},
		{"extension ignores case and dot", ExtensionIn{Extensions: []string{".pdf"}}, true},
		{"extension miss", ExtensionIn{Extensions: []string{"doc"}}, false},
		{"name substring ignores case", NameContains{Substring: "report"}, true},
		{"name substring does not look at dirs", NameContains{Substring: "ann"}, false},
		{"type membership", FileTypeIn{Types: []model.FileType{model.FileTypeText, model.FileTypeOther}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Match(f, now); got != tt.want {
				t.Errorf("%s Match() = %v, want %v", tt.c, got, tt.want)
			}
		})
	}

	if (ExtensionIn{Extensions: []string{""}}).Match(file("/a/README", 1, now), now) {
		t.Error("empty extension matched")
	}
}

func TestDatePattern_Contains(t *testing.T) {
	// now is Monday; the week starts today at midnight.
	tests := []struct {
		pattern DatePattern
		t       time.Time
		want    bool
	}{
		{Today, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{Today, time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC), false},
		{Yesterday, time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC), true},
		{ThisWeek, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{ThisWeek, time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC), false},
		{LastWeek, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), true},
		{LastWeek, time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC), true},
		{ThisMonth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{ThisMonth, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), false},
		{LastMonth, time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC), true},
		{ThisYear, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{LastYear, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{LastYear, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.pattern)+" "+tt.t.Format(time.DateTime), func(t *testing.T) {
			if got := tt.pattern.Contains(tt.t, now); got != tt.want {
				t.Errorf("Contains() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("this week is calendar based, not seven days", func(t *testing.T) {
		sunday := time.Date(2024, 1, 21, 18, 0, 0, 0, time.UTC)
		lastMonday := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
		if !ThisWeek.Contains(lastMonday, sunday) {
			t.Error("Monday not in the week ending Sunday")
		}
		sixDaysBeforeMonday := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
		monday := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
		if ThisWeek.Contains(sixDaysBeforeMonday, monday) {
			t.Error("previous Sunday counted as this week")
		}
	})
}

func TestParseDatePattern(t *testing.T) {
	got, err := ParseDatePattern("This_Week")
	if err != nil || got != ThisWeek {
		t.Errorf("ParseDatePattern() = %q, %v", got, err)
	}
	if _, err := ParseDatePattern("fortnight"); err == nil {
		t.Error("ParseDatePattern(fortnight) expected error")
	}
}

func TestEngine_RuleManagement(t *testing.T) {
	e := NewEngine(nil)

	if err := e.AddRule(Rule{Name: "reports", Condition: NameContains{Substring: "report"}}); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	if err := e.AddRule(Rule{Name: "", Condition: NameContains{Substring: "x"}}); err == nil {
		t.Error("AddRule() expected error for empty name")
	}
	if err := e.AddRule(Rule{Name: "bad", Condition: SizeRange{Min: Bound(5), Max: Bound(1)}}); err == nil {
		t.Error("AddRule() expected error for inverted range")
	}
	if err := e.AddRule(Rule{Name: "bad", Condition: DateMatch{Pattern: "someday"}}); err == nil {
		t.Error("AddRule() expected error for unknown date pattern")
	}

	if n := len(e.Rules()); n != 1 {
		t.Fatalf("len(Rules()) = %d, want 1", n)
	}
	if n := e.RemoveRule("reports"); n != 1 {
		t.Errorf("RemoveRule() = %d, want 1", n)
	}
	if n := len(e.Rules()); n != 0 {
		t.Errorf("len(Rules()) = %d after remove", n)
	}

	e.ResetToDefault()
	if got, want := len(e.Rules()), len(DefaultRules()); got != want {
		t.Errorf("len(Rules()) = %d after reset, want %d", got, want)
	}
}
