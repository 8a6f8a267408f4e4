package rules

import (
	"github.com/tallyhq/tally/internal/model"
)

// Suggester resolves a suggestion for each import row: first matching rule
// wins, the vendor heuristic is the fallback, and the empty suggestion means
// nothing applied. This is the single dispatch point for all suggestion
// sources.
type Suggester struct {
	matcher   *Matcher
	heuristic *Heuristic
}

// NewSuggester creates a suggester over a matcher and a heuristic. Either
// may be nil to disable that source.
func NewSuggester(matcher *Matcher, heuristic *Heuristic) *Suggester {
	return &Suggester{
		matcher:   matcher,
		heuristic: heuristic,
	}
}

// Resolve returns the suggestion for a row. Never fails: the worst case is
// the None suggestion with zero confidence.
func (s *Suggester) Resolve(row model.RawRow) Suggestion {
	if s.matcher != nil {
		if suggestion := s.matcher.Match(row); suggestion != nil {
			return *suggestion
		}
	}
	if s.heuristic != nil {
		if suggestion := s.heuristic.Suggest(row); suggestion != nil {
			return *suggestion
		}
	}
	return None()
}
