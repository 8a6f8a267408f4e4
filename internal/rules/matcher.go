// Package rules evaluates user-defined categorization rules and heuristics
// against import rows to propose categories with confidence scores.
package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
)

// Suggestion is a proposed categorization for an import row.
type Suggestion struct {
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	RuleID        *uuid.UUID
	Reason        string
	Source        model.SuggestionSource
	Confidence    int
}

// None returns the empty suggestion used when nothing applies.
func None() Suggestion {
	return Suggestion{
		Source:     model.SuggestionNone,
		Confidence: 0,
		Reason:     "no suggestion available",
	}
}

// Matcher evaluates rules in precedence order against import rows. It is
// read-only: usage counters are the reconciler's concern and move only on
// commit.
type Matcher struct {
	compiledRegex map[uuid.UUID]*regexp.Regexp
	tree          *category.Tree
	rules         []model.CategorizationRule
}

// NewMatcher creates a matcher over the given rule set. Rules are ordered by
// ascending priority with ties broken by most recent creation; regex patterns
// are compiled once, and rules with invalid patterns never match.
func NewMatcher(ruleSet []model.CategorizationRule, tree *category.Tree) *Matcher {
	m := &Matcher{
		rules:         make([]model.CategorizationRule, len(ruleSet)),
		compiledRegex: make(map[uuid.UUID]*regexp.Regexp),
		tree:          tree,
	}
	copy(m.rules, ruleSet)

	sort.SliceStable(m.rules, func(i, j int) bool {
		if m.rules[i].Priority != m.rules[j].Priority {
			return m.rules[i].Priority < m.rules[j].Priority
		}
		return m.rules[i].CreatedAt.After(m.rules[j].CreatedAt)
	})

	for _, rule := range m.rules {
		if rule.PatternType == model.PatternRegex && rule.Pattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
				m.compiledRegex[rule.ID] = re
			}
		}
	}

	return m
}

// Match returns the suggestion from the first matching rule, or nil when no
// rule matches. Rules targeting a missing or inactive category are skipped.
func (m *Matcher) Match(row model.RawRow) *Suggestion {
	for i := range m.rules {
		rule := &m.rules[i]
		if !rule.IsActive {
			continue
		}
		if !m.targetUsable(rule) {
			continue
		}
		if m.matchesRule(row, rule) {
			ruleID := rule.ID
			return &Suggestion{
				CategoryID:    rule.CategoryID,
				SubcategoryID: rule.SubcategoryID,
				RuleID:        &ruleID,
				Source:        model.SuggestionRule,
				Confidence:    rule.Confidence,
				Reason:        "rule: " + rule.Name,
			}
		}
	}
	return nil
}

// targetUsable checks the rule's category references still exist and are
// active. A stale reference means "suggestion unavailable", never an error.
func (m *Matcher) targetUsable(rule *model.CategorizationRule) bool {
	if rule.CategoryID != nil && !m.tree.IsUsable(*rule.CategoryID) {
		return false
	}
	if rule.SubcategoryID != nil && !m.tree.IsUsable(*rule.SubcategoryID) {
		return false
	}
	return rule.CategoryID != nil || rule.SubcategoryID != nil
}

func (m *Matcher) matchesRule(row model.RawRow, rule *model.CategorizationRule) bool {
	text := common.NormalizeText(fieldValue(row, rule.FieldToMatch))
	pattern := common.NormalizeText(rule.Pattern)
	if text == "" || pattern == "" {
		return false
	}

	switch rule.PatternType {
	case model.PatternExact:
		return text == pattern
	case model.PatternStartsWith:
		return strings.HasPrefix(text, pattern)
	case model.PatternRegex:
		re, ok := m.compiledRegex[rule.ID]
		return ok && re.MatchString(text)
	default: // contains
		return strings.Contains(text, pattern)
	}
}

func fieldValue(row model.RawRow, field model.FieldToMatch) string {
	switch field {
	case model.FieldVendor:
		return row.Vendor
	case model.FieldDescription:
		return row.Description
	case model.FieldNotes:
		return row.Notes
	default:
		return ""
	}
}
