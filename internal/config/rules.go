package config

import (
	"fmt"
	"strings"

	"fidx/internal/model"
	"fidx/internal/rules"
)

// RuleConfig is a user-defined tagging rule.
// This uses a tagged union pattern - the Kind field determines which other fields are relevant.
type RuleConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"` // file_type|size|date|path_contains|extension|name_contains

	Value   string   `toml:"value,omitempty"`   // path_contains, name_contains
	Values  []string `toml:"values,omitempty"`  // file_type, extension
	Min     *int64   `toml:"min,omitempty"`     // size, inclusive
	Max     *int64   `toml:"max,omitempty"`     // size, inclusive
	Pattern string   `toml:"pattern,omitempty"` // date
}

// Rule converts the config entry into an engine rule.
func (r RuleConfig) Rule() (rules.Rule, error) {
	var cond rules.Condition

	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case "file_type":
		types := make([]model.FileType, 0, len(r.Values))
		for _, v := range r.Values {
			ft, err := model.ParseFileType(v)
			if err != nil {
				return rules.Rule{}, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			types = append(types, ft)
		}
		cond = rules.FileTypeIn{Types: types}
	case "size":
		if r.Min == nil && r.Max == nil {
			return rules.Rule{}, fmt.Errorf("rule %q: size needs min or max", r.Name)
		}
		cond = rules.SizeRange{Min: r.Min, Max: r.Max}
	case "date":
		p, err := rules.ParseDatePattern(r.Pattern)
		if err != nil {
			return rules.Rule{}, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		cond = rules.DateMatch{Pattern: p}
	case "path_contains":
		cond = rules.PathContains{Substring: r.Value}
	case "extension":
		cond = rules.ExtensionIn{Extensions: r.Values}
	case "name_contains":
		cond = rules.NameContains{Substring: r.Value}
	default:
		return rules.Rule{}, fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind)
	}

	rule := rules.Rule{Name: strings.TrimSpace(r.Name), Condition: cond}
	if err := rule.Validate(); err != nil {
		return rules.Rule{}, err
	}
	return rule, nil
}

// BuildRules returns the rule set the engine should run: the defaults when
// enabled, followed by the configured rules in file order.
func (c *Config) BuildRules() ([]rules.Rule, error) {
	var out []rules.Rule
	if c.Tagging.UseDefaultRules {
		out = append(out, rules.DefaultRules()...)
	}
	for _, rc := range c.Rules {
		r, err := rc.Rule()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
