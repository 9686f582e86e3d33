package fidx_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fidx/internal/database"
	"fidx/internal/fidx"
	"fidx/internal/logging"
	"fidx/internal/model"
	"fidx/internal/rules"
	"fidx/internal/testutil"
	"fidx/internal/watcher"
)

// testRules is a small rule set whose results are easy to predict.
func testRules() []rules.Rule {
	return []rules.Rule{
		{Name: "text", Condition: rules.FileTypeIn{Types: []model.FileType{model.FileTypeText}}},
		{Name: "image", Condition: rules.FileTypeIn{Types: []model.FileType{model.FileTypeImage}}},
		{Name: "reports", Condition: rules.NameContains{Substring: "report"}},
		{Name: "big", Condition: rules.SizeRange{Min: rules.Bound(1000)}},
	}
}

type fixture struct {
	svc   *fidx.IndexService
	db    *database.SQLiteDatabase
	fsmgr *testutil.MockFilesystemManager
	clock *testutil.StubClock
	sink  *recordingSink
}

func newFixture(t *testing.T, opts ...fidx.Option) *fixture {
	t.Helper()

	clock := testutil.FixedClock()
	f := &fixture{
		db:    testutil.NewTestDatabase(t, clock),
		fsmgr: testutil.NewMockFilesystemManager(),
		clock: clock,
		sink:  &recordingSink{},
	}
	opts = append([]fidx.Option{fidx.WithEventSink(f.sink)}, opts...)

	svc, err := fidx.NewIndexService(f.db, f.fsmgr, rules.NewEngine(testRules()), logging.NewNopLogger(), clock, opts...)
	if err != nil {
		t.Fatalf("NewIndexService() error = %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) resolve(t *testing.T, path string) *fidx.Path {
	t.Helper()
	p, err := f.fsmgr.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", path, err)
	}
	return p
}

func (f *fixture) mustFind(t *testing.T, path string) *model.FileRecord {
	t.Helper()
	rec, err := f.db.FindFileByPath(path)
	if err != nil {
		t.Fatalf("FindFileByPath(%s) error = %v", path, err)
	}
	if rec == nil {
		t.Fatalf("FindFileByPath(%s) = nil, want record", path)
	}
	return rec
}

func (f *fixture) tagNames(t *testing.T, fileID int64) map[string]bool {
	t.Helper()
	tags, err := f.db.GetTagsForFile(fileID)
	if err != nil {
		t.Fatalf("GetTagsForFile() error = %v", err)
	}
	names := make(map[string]bool, len(tags))
	for _, tag := range tags {
		names[tag.Name] = true
	}
	return names
}

// recordingSink keeps every event it is offered.
type recordingSink struct {
	mu     sync.Mutex
	events []watcher.FileEvent
}

func (s *recordingSink) TrySend(ev watcher.FileEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) kinds() []watcher.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []watcher.Kind
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

func TestNewIndexService(t *testing.T) {
	t.Run("rejects a non-positive tag cache size", func(t *testing.T) {
		db := testutil.NewTestDatabase(t, nil)
		_, err := fidx.NewIndexService(db, testutil.NewMockFilesystemManager(), rules.NewDefaultEngine(),
			logging.NewNopLogger(), testutil.FixedClock(), fidx.WithTagCacheSize(0))
		if err == nil {
			t.Error("NewIndexService() expected error for cache size 0")
		}
	})

	t.Run("exposes its engine", func(t *testing.T) {
		f := newFixture(t)
		if got := len(f.svc.Engine().Rules()); got != len(testRules()) {
			t.Errorf("Engine().Rules() = %d rules, want %d", got, len(testRules()))
		}
	})
}

func TestIndexService_WatchedDirectories(t *testing.T) {
	t.Run("adds new directory", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/home/user/docs")

		dir, err := f.svc.AddWatchedDirectory(f.resolve(t, "/home/user/docs"), fidx.ScanConfig{Recursive: true, Extensions: []string{"txt"}})
		if err != nil {
			t.Fatalf("AddWatchedDirectory() error = %v", err)
		}
		if dir.ID == 0 || !dir.Enabled || !dir.Recursive {
			t.Errorf("AddWatchedDirectory() = %+v", dir)
		}

		stored, err := f.db.FindWatchedDirectoryByPath("/home/user/docs")
		if err != nil {
			t.Fatalf("FindWatchedDirectoryByPath() error = %v", err)
		}
		if stored == nil || len(stored.Extensions) != 1 {
			t.Errorf("stored directory = %+v", stored)
		}
	})

	t.Run("returns error for non-directory path", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/home/user/file.txt", 10)

		_, err := f.svc.AddWatchedDirectory(f.resolve(t, "/home/user/file.txt"), fidx.ScanConfig{})
		if !errors.Is(err, fidx.ErrNotDirectory) {
			t.Errorf("AddWatchedDirectory() error = %v, want ErrNotDirectory", err)
		}
	})

	t.Run("is idempotent for existing directory", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/home/user/docs")
		path := f.resolve(t, "/home/user/docs")

		first, err := f.svc.AddWatchedDirectory(path, fidx.ScanConfig{})
		if err != nil {
			t.Fatalf("first AddWatchedDirectory() error = %v", err)
		}
		second, err := f.svc.AddWatchedDirectory(path, fidx.ScanConfig{Recursive: true})
		if err != nil {
			t.Fatalf("second AddWatchedDirectory() error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("IDs differ: %d vs %d", first.ID, second.ID)
		}
	})

	t.Run("removes directory", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/home/user/docs")
		if _, err := f.svc.AddWatchedDirectory(f.resolve(t, "/home/user/docs"), fidx.ScanConfig{}); err != nil {
			t.Fatalf("AddWatchedDirectory() error = %v", err)
		}

		if err := f.svc.RemoveWatchedDirectory("/home/user/docs"); err != nil {
			t.Fatalf("RemoveWatchedDirectory() error = %v", err)
		}
		dirs, err := f.svc.ListWatchedDirectories()
		if err != nil {
			t.Fatalf("ListWatchedDirectories() error = %v", err)
		}
		if len(dirs) != 0 {
			t.Errorf("ListWatchedDirectories() = %d, want 0", len(dirs))
		}

		if err := f.svc.RemoveWatchedDirectory("/home/user/docs"); !errors.Is(err, fidx.ErrDirNotFound) {
			t.Errorf("second RemoveWatchedDirectory() error = %v, want ErrDirNotFound", err)
		}
	})

	t.Run("scans every directory with its own settings", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/a/one.txt", 10)
		f.fsmgr.AddFile("/a/sub/two.txt", 10)
		f.fsmgr.AddFile("/b/three.txt", 10)
		f.fsmgr.AddFile("/b/sub/four.txt", 10)

		if _, err := f.svc.AddWatchedDirectory(f.resolve(t, "/a"), fidx.ScanConfig{Recursive: true}); err != nil {
			t.Fatalf("AddWatchedDirectory(/a) error = %v", err)
		}
		if _, err := f.svc.AddWatchedDirectory(f.resolve(t, "/b"), fidx.ScanConfig{Recursive: false}); err != nil {
			t.Fatalf("AddWatchedDirectory(/b) error = %v", err)
		}

		results, err := f.svc.ScanWatchedDirectories(0)
		if err != nil {
			t.Fatalf("ScanWatchedDirectories() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("ScanWatchedDirectories() = %d results, want 2", len(results))
		}
		if results[0].AddedFiles != 2 || results[1].AddedFiles != 1 {
			t.Errorf("added = %d, %d, want 2, 1", results[0].AddedFiles, results[1].AddedFiles)
		}

		dirs, err := f.svc.ListWatchedDirectories()
		if err != nil {
			t.Fatalf("ListWatchedDirectories() error = %v", err)
		}
		for _, d := range dirs {
			if d.LastScannedAt == nil || !d.LastScannedAt.Equal(f.clock.Now()) {
				t.Errorf("%s LastScannedAt = %v, want %v", d.Path, d.LastScannedAt, f.clock.Now())
			}
		}
	})

	t.Run("a vanished directory does not stop the others", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/a/one.txt", 10)
		f.fsmgr.AddFile("/b/two.txt", 10)
		for _, p := range []string{"/a", "/b"} {
			if _, err := f.svc.AddWatchedDirectory(f.resolve(t, p), fidx.ScanConfig{}); err != nil {
				t.Fatalf("AddWatchedDirectory(%s) error = %v", p, err)
			}
		}
		f.fsmgr.Remove("/a")

		results, err := f.svc.ScanWatchedDirectories(0)
		if err == nil {
			t.Error("ScanWatchedDirectories() expected error for missing directory")
		}
		if len(results) != 2 {
			t.Fatalf("ScanWatchedDirectories() = %d results, want 2", len(results))
		}
		if len(results[0].Errors) != 1 {
			t.Errorf("missing directory result errors = %v", results[0].Errors)
		}
		if results[1].AddedFiles != 1 {
			t.Errorf("second directory added = %d, want 1", results[1].AddedFiles)
		}
	})
}

func TestIndexService_StatsAndHistory(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/docs/a.txt", 10)
	f.fsmgr.AddFile("/docs/b.txt", 10)
	if _, err := f.svc.Scan(f.resolve(t, "/docs"), fidx.ScanConfig{}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := f.db.UpdateFileStatus(f.mustFind(t, "/docs/b.txt").ID, model.FileStatusDeleted); err != nil {
		t.Fatalf("UpdateFileStatus() error = %v", err)
	}

	stats, err := f.svc.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalFiles != 2 || stats.ActiveFiles != 1 || stats.TotalTags != 1 {
		t.Errorf("Stats() = %+v, want 2 total, 1 active, 1 tag", stats)
	}

	for _, name := range []string{"scan", "tag"} {
		op, err := f.db.CreateOperation(name, "")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		f.clock.Advance(time.Second)
		if err := f.db.FinishOperation(op.ID, "success"); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}
	}

	history, err := f.svc.GetHistory(1)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Operation != "tag" {
		t.Errorf("GetHistory(1) = %+v, want the tag operation", history)
	}
}
