// Package settings selects the hook configuration rule that applies to a
// project identifier.
package settings

import (
	"fmt"
	"regexp"
	"sort"
)

// Rule is one ordered hook configuration rule.
type Rule struct {
	ID                 int64
	ProjectPattern     string
	Enabled            bool
	RemarkTracker      string
	RemarkClosedStatus int64
	ResolveKeyword     string
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// Resolver picks the first enabled rule, in ascending id order, whose pattern
// matches the project identifier. Matching is a regexp search, not a full
// match.
type Resolver struct {
	rules []compiledRule
}

// NewResolver compiles the rule patterns. Rules with invalid patterns make
// construction fail rather than being silently skipped at event time.
func NewResolver(rules []Rule) (*Resolver, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.ProjectPattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid project_pattern %q: %w", rule.ID, rule.ProjectPattern, err)
		}
		compiled = append(compiled, compiledRule{Rule: rule, pattern: re})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].ID < compiled[j].ID
	})
	return &Resolver{rules: compiled}, nil
}

// Resolve returns the applicable rule for an identifier, or nil when no
// enabled rule matches. No match is not an error; the caller logs and drops
// the event.
func (r *Resolver) Resolve(identifier string) *Rule {
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		if rule.pattern.MatchString(identifier) {
			matched := rule.Rule
			return &matched
		}
	}
	return nil
}
