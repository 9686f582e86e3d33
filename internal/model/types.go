package model

import (
	"fmt"
	"strings"
)

// FileType is a coarse classification derived from a file's extension.
type FileType string

const (
	FileTypeImage  FileType = "image"
	FileTypeAudio  FileType = "audio"
	FileTypeVideo  FileType = "video"
	FileTypeText   FileType = "text"
	FileTypeBinary FileType = "binary"
	FileTypeOther  FileType = "other"
)

// AllFileTypes lists every FileType in a stable order.
var AllFileTypes = []FileType{
	FileTypeImage,
	FileTypeAudio,
	FileTypeVideo,
	FileTypeText,
	FileTypeBinary,
	FileTypeOther,
}

var extensionTypes = map[string]FileType{}

func init() {
	register := func(ft FileType, exts ...string) {
		for _, ext := range exts {
			extensionTypes[ext] = ft
		}
	}
	register(FileTypeImage, "jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "ico", "tiff")
	register(FileTypeAudio, "mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "opus")
	register(FileTypeVideo, "mp4", "avi", "mkv", "mov", "webm", "flv", "wmv", "m4v")
	register(FileTypeText, "txt", "md", "json", "xml", "yaml", "yml", "csv", "log", "toml", "ini", "cfg", "conf", "rtf")
	register(FileTypeBinary, "exe", "dll", "so", "bin", "zip", "rar", "7z", "tar", "gz", "bz2")
}

// FileTypeFromExtension maps an extension (with or without a leading dot,
// any case) to its FileType. Unknown extensions map to FileTypeOther.
func FileTypeFromExtension(ext string) FileType {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ft, ok := extensionTypes[ext]; ok {
		return ft
	}
	return FileTypeOther
}

// ParseFileType parses a FileType name such as "image" or "Video".
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFileTypes {
		if ft == known {
			return ft, nil
		}
	}
	return "", fmt.Errorf("unknown file type: %q", s)
}

func (t FileType) String() string { return string(t) }

// FileStatus is the lifecycle state of a FileRecord.
type FileStatus string

const (
	FileStatusActive  FileStatus = "active"
	FileStatusDeleted FileStatus = "deleted"
	FileStatusMoved   FileStatus = "moved"
)

// ParseFileStatus parses a stored status. Unknown values are an error.
func ParseFileStatus(s string) (FileStatus, error) {
	switch FileStatus(s) {
	case FileStatusActive, FileStatusDeleted, FileStatusMoved:
		return FileStatus(s), nil
	}
	return "", fmt.Errorf("unknown file status: %q", s)
}

func (s FileStatus) String() string { return string(s) }

// TagType distinguishes rule-provisioned tags from user-created ones.
type TagType string

const (
	TagTypeSystem TagType = "system"
	TagTypeCustom TagType = "custom"
)

// ParseTagType parses a stored tag type.
func ParseTagType(s string) (TagType, error) {
	switch TagType(s) {
	case TagTypeSystem, TagTypeCustom:
		return TagType(s), nil
	}
	return "", fmt.Errorf("unknown tag type: %q", s)
}

func (t TagType) String() string { return string(t) }

// DefaultTagColor is used for tags provisioned without an explicit colour.
const DefaultTagColor = "#007ACC"
