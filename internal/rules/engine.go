package rules

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fidx/internal/model"
)

// Rule emits the tag Name for every file its Condition matches.
type Rule struct {
	Name      string
	Condition Condition
}

// Validate checks that the rule can be evaluated.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is required")
	}
	switch c := r.Condition.(type) {
	case nil:
		return fmt.Errorf("rule %q has no condition", r.Name)
	case SizeRange:
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Errorf("rule %q: size min %d exceeds max %d", r.Name, *c.Min, *c.Max)
		}
	case DateMatch:
		if _, err := ParseDatePattern(string(c.Pattern)); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	case FileTypeIn:
		if len(c.Types) == 0 {
			return fmt.Errorf("rule %q: no file types", r.Name)
		}
	case ExtensionIn:
		if len(c.Extensions) == 0 {
			return fmt.Errorf("rule %q: no extensions", r.Name)
		}
	case PathContains:
		if c.Substring == "" {
			return fmt.Errorf("rule %q: empty path substring", r.Name)
		}
	case NameContains:
		if c.Substring == "" {
			return fmt.Errorf("rule %q: empty name substring", r.Name)
		}
	}
	return nil
}

// Engine evaluates an ordered rule list against file metadata.
// Evaluation has no side effects; callers persist the emitted names.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine creates an Engine over rules.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// NewDefaultEngine creates an Engine over DefaultRules.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules())
}

// GenerateTags checks every rule independently and returns the names of
// those that match, in rule order, each name at most once.
func (e *Engine) GenerateTags(file *model.FileRecord, now time.Time) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var tags []string
	seen := make(map[string]struct{})
	for _, r := range e.rules {
		if !r.Condition.Match(file, now) {
			continue
		}
		if _, dup := seen[r.Name]; dup {
			continue
		}
		seen[r.Name] = struct{}{}
		tags = append(tags, r.Name)
	}
	return tags
}

// AddRule appends a rule after validating it.
func (e *Engine) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
	return nil
}

// RemoveRule removes every rule named name and returns how many were removed.
func (e *Engine) RemoveRule(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.rules[:0]
	for _, r := range e.rules {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	removed := len(e.rules) - len(kept)
	e.rules = kept
	return removed
}

// Rules returns a copy of the current rule list.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.rules...)
}

// ResetToDefault replaces the rule list with DefaultRules.
func (e *Engine) ResetToDefault() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = DefaultRules()
}
