package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// IgnoreFileName is the per-root ignore file read alongside configured patterns.
const IgnoreFileName = ".fidxignore"

// defaultIgnorePatterns are always applied regardless of config or .fidxignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a compiled ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	glob      glob.Glob
	matchPath bool // true = match against relative path; false = match against basename only
}

// IgnoreMatcher checks file paths against a set of glob ignore patterns.
// Patterns without '/' match against the file's basename only.
// Patterns with '/' match against the full relative path from the directory root,
// where '*' stops at a separator and '**' crosses them.
type IgnoreMatcher struct {
	patterns []ignorePattern
	invalid  []string
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped, as are patterns that
// do not compile; Invalid lists those.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		g, err := glob.Compile(raw, '/')
		if err != nil {
			m.invalid = append(m.invalid, raw)
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{
			pattern:   raw,
			glob:      g,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return m
}

// Invalid returns the patterns that failed to compile.
func (m *IgnoreMatcher) Invalid() []string {
	return m.invalid
}

// Match reports whether the given relative path should be ignored.
// relativePath should use filepath separators and be relative to the directory root.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		subject := basename
		if p.matchPath {
			subject = normalized
		}
		if p.glob.Match(subject) {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads a .fidxignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
