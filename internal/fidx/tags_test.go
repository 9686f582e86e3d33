package fidx_test

import (
	"errors"
	"testing"

	"fidx/internal/fidx"
	"fidx/internal/model"
)

func TestIndexService_Tags(t *testing.T) {
	t.Run("create applies defaults", func(t *testing.T) {
		f := newFixture(t)

		tag, err := f.svc.CreateTag(fidx.TagSpec{Name: " work "})
		if err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if tag.Name != "work" || tag.DisplayName != "work" || tag.Color != model.DefaultTagColor {
			t.Errorf("CreateTag() = %+v", tag)
		}
		if tag.TagType != model.TagTypeCustom {
			t.Errorf("TagType = %s, want custom", tag.TagType)
		}
	})

	t.Run("create rejects duplicates and blank names", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateTag(fidx.TagSpec{Name: "work"}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if _, err := f.svc.CreateTag(fidx.TagSpec{Name: "work"}); !errors.Is(err, fidx.ErrTagExists) {
			t.Errorf("duplicate CreateTag() error = %v, want ErrTagExists", err)
		}
		if _, err := f.svc.CreateTag(fidx.TagSpec{Name: "  "}); err == nil {
			t.Error("CreateTag() expected error for blank name")
		}
	})

	t.Run("update keeps unset fields", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateTag(fidx.TagSpec{Name: "work", Color: "#ff0000", Icon: "briefcase"}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}

		tag, err := f.svc.UpdateTag(fidx.TagSpec{Name: "work", DisplayName: "Work"})
		if err != nil {
			t.Fatalf("UpdateTag() error = %v", err)
		}
		if tag.DisplayName != "Work" || tag.Color != "#ff0000" || tag.Icon != "briefcase" {
			t.Errorf("UpdateTag() = %+v", tag)
		}

		if _, err := f.svc.UpdateTag(fidx.TagSpec{Name: "missing"}); !errors.Is(err, fidx.ErrTagNotFound) {
			t.Errorf("UpdateTag(missing) error = %v, want ErrTagNotFound", err)
		}
	})

	t.Run("add and remove on a file", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.png", 10)
		if _, err := f.svc.Scan(f.resolve(t, "/w"), fidx.ScanConfig{}); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		path := f.resolve(t, "/w/a.png")

		if err := f.svc.AddTagToFile(path, "holiday"); err != nil {
			t.Fatalf("AddTagToFile() error = %v", err)
		}
		assocs, err := f.svc.FileTags(path)
		if err != nil {
			t.Fatalf("FileTags() error = %v", err)
		}
		byName := map[string]*model.FileTagAssociation{}
		for _, a := range assocs {
			byName[a.TagName] = a
		}
		if a := byName["holiday"]; a == nil || a.IsAuto {
			t.Errorf("holiday association = %+v, want user association", a)
		}
		if a := byName["image"]; a == nil || !a.IsAuto {
			t.Errorf("image association = %+v, want auto association", a)
		}

		if err := f.svc.RemoveTagFromFile(path, "holiday"); err != nil {
			t.Fatalf("RemoveTagFromFile() error = %v", err)
		}
		if f.tagNames(t, f.mustFind(t, "/w/a.png").ID)["holiday"] {
			t.Error("holiday still attached")
		}
	})

	t.Run("file operations need an indexed file", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/a.txt", 10)
		path := f.resolve(t, "/w/a.txt")

		if err := f.svc.AddTagToFile(path, "x"); !errors.Is(err, fidx.ErrFileNotFound) {
			t.Errorf("AddTagToFile() error = %v, want ErrFileNotFound", err)
		}
		if _, err := f.svc.FileTags(path); !errors.Is(err, fidx.ErrFileNotFound) {
			t.Errorf("FileTags() error = %v, want ErrFileNotFound", err)
		}
	})

	t.Run("files by tags", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/report.txt", 10)
		f.fsmgr.AddFile("/w/notes.txt", 10)
		if _, err := f.svc.Scan(f.resolve(t, "/w"), fidx.ScanConfig{}); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}

		files, err := f.svc.FilesByTags([]string{"text", "reports"})
		if err != nil {
			t.Fatalf("FilesByTags() error = %v", err)
		}
		if len(files) != 1 || files[0].Path != "/w/report.txt" {
			t.Errorf("FilesByTags() = %v, want [/w/report.txt]", files)
		}

		if _, err := f.svc.FilesByTags(nil); err == nil {
			t.Error("FilesByTags(nil) expected error")
		}
	})

	t.Run("delete removes associations", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/w/report.txt", 10)
		if _, err := f.svc.Scan(f.resolve(t, "/w"), fidx.ScanConfig{}); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}

		if err := f.svc.DeleteTag("reports"); err != nil {
			t.Fatalf("DeleteTag() error = %v", err)
		}
		if f.tagNames(t, f.mustFind(t, "/w/report.txt").ID)["reports"] {
			t.Error("association survived tag deletion")
		}
		if err := f.svc.DeleteTag("reports"); !errors.Is(err, fidx.ErrTagNotFound) {
			t.Errorf("second DeleteTag() error = %v, want ErrTagNotFound", err)
		}
	})
}
