package fidx

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Path is an absolute, validated filesystem location with the stat info
// captured when FilesystemManager.Resolve checked it.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

func (p *Path) String() string { return p.absPath }

func (p *Path) IsDir() bool { return p.isDir }

// Info returns the cached file info from when the path was resolved.
func (p *Path) Info() fs.FileInfo { return p.info }

// SplitName returns the base name of path and its extension without the
// leading dot. Dotfiles such as ".bashrc" have no extension.
func SplitName(path string) (name, ext string) {
	name = filepath.Base(path)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name, name[i+1:]
}
