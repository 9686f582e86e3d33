package fidx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fidx/internal/model"
	"fidx/internal/watcher"
)

func TestIndexService_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("created indexes and tags a new file", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/report.txt", 10)

		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/report.txt"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		rec := f.mustFind(t, "/w/report.txt")
		if rec.FileType != model.FileTypeText || rec.Extension != "txt" || rec.Name != "report.txt" {
			t.Errorf("record = %+v", rec)
		}
		names := f.tagNames(t, rec.ID)
		if !names["text"] || !names["reports"] {
			t.Errorf("tags = %v, want text and reports", names)
		}
	})

	t.Run("modified refreshes metadata and retags", func(t *testing.T) {
		f := newFixture(t)
		file := f.fsmgr.AddFile("/w/a.txt", 10)
		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(created) error = %v", err)
		}
		before := f.mustFind(t, "/w/a.txt")

		file.Size = 5000
		file.ModTime = file.ModTime.Add(time.Hour)
		if err := f.svc.Handle(ctx, watcher.Modified{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(modified) error = %v", err)
		}
		after := f.mustFind(t, "/w/a.txt")
		if after.ID != before.ID {
			t.Errorf("ID changed: %d -> %d", before.ID, after.ID)
		}
		if after.Size != 5000 || !after.ModifiedAt.Equal(file.ModTime) {
			t.Errorf("record not refreshed: %+v", after)
		}
		if !f.tagNames(t, after.ID)["big"] {
			t.Error("size rule not re-evaluated")
		}
	})

	t.Run("modified on a vanished path marks it deleted", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.txt", 10)
		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(created) error = %v", err)
		}
		id := f.mustFind(t, "/w/a.txt").ID
		f.fsmgr.Remove("/w/a.txt")

		if err := f.svc.Handle(ctx, watcher.Modified{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(modified) error = %v", err)
		}
		rec, err := f.db.FindFileByID(id)
		if err != nil {
			t.Fatalf("FindFileByID() error = %v", err)
		}
		if rec.Status != model.FileStatusDeleted {
			t.Errorf("Status = %s, want deleted", rec.Status)
		}
	})

	t.Run("directories are ignored", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/w/sub")

		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/sub"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		rec, err := f.db.FindFileByPath("/w/sub")
		if err != nil {
			t.Fatalf("FindFileByPath() error = %v", err)
		}
		if rec != nil {
			t.Error("directory was indexed")
		}
	})

	t.Run("deleted marks the record and frees the path", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.txt", 10)
		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(created) error = %v", err)
		}

		if err := f.svc.Handle(ctx, watcher.Deleted{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(deleted) error = %v", err)
		}
		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/a.txt"}); err != nil {
			t.Fatalf("Handle(re-created) error = %v", err)
		}
		stats, err := f.db.Stats()
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalFiles != 2 || stats.ActiveFiles != 1 {
			t.Errorf("Stats() = %+v, want 2 total and 1 active", stats)
		}
	})

	t.Run("deleted for an unknown path is a no-op", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.Handle(ctx, watcher.Deleted{Path: "/nowhere"}); err != nil {
			t.Errorf("Handle() error = %v", err)
		}
	})

	t.Run("moved keeps user tags and recomputes auto tags", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/report.txt", 10)
		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/report.txt"}); err != nil {
			t.Fatalf("Handle(created) error = %v", err)
		}
		if err := f.svc.AddTagToFile(f.resolve(t, "/w/report.txt"), "keep"); err != nil {
			t.Fatalf("AddTagToFile() error = %v", err)
		}
		old := f.mustFind(t, "/w/report.txt")

		f.fsmgr.Remove("/w/report.txt")
		f.fsmgr.AddFile("/w/photo.png", 10)
		if err := f.svc.Handle(ctx, watcher.Moved{From: "/w/report.txt", To: "/w/photo.png"}); err != nil {
			t.Fatalf("Handle(moved) error = %v", err)
		}

		rec, err := f.db.FindFileByID(old.ID)
		if err != nil {
			t.Fatalf("FindFileByID() error = %v", err)
		}
		if rec.Status != model.FileStatusMoved {
			t.Errorf("old Status = %s, want moved", rec.Status)
		}

		moved := f.mustFind(t, "/w/photo.png")
		names := f.tagNames(t, moved.ID)
		if !names["keep"] || !names["image"] {
			t.Errorf("moved tags = %v, want keep and image", names)
		}
		if names["text"] || names["reports"] {
			t.Errorf("stale auto tags carried over: %v", names)
		}
	})

	t.Run("moved from an unindexed path indexes the destination", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/new.txt", 10)

		if err := f.svc.Handle(ctx, watcher.Moved{From: "/elsewhere/new.txt", To: "/w/new.txt"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		f.mustFind(t, "/w/new.txt")
	})

	t.Run("stat failures are reported", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.txt", 10)
		f.fsmgr.FailStat("/w/a.txt", errors.New("permission denied"))

		if err := f.svc.Handle(ctx, watcher.Created{Path: "/w/a.txt"}); err == nil {
			t.Error("Handle() expected error for stat failure")
		}
	})

	t.Run("scan and error events change nothing", func(t *testing.T) {
		f := newFixture(t)
		events := []watcher.FileEvent{
			watcher.ScanStart{Path: "/w"},
			watcher.ScanEnd{Path: "/w", Count: 3},
			watcher.Error{Path: "/w", Message: "overflow"},
		}
		for _, ev := range events {
			if err := f.svc.Handle(ctx, ev); err != nil {
				t.Errorf("Handle(%v) error = %v", ev, err)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.txt", 10)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if err := f.svc.Handle(cctx, watcher.Created{Path: "/w/a.txt"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Handle() error = %v, want context.Canceled", err)
		}
	})
}
