package common

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText lowercases, trims and collapses whitespace runs. Used for
// fingerprinting and pattern matching so cosmetic differences in bank exports
// do not defeat comparison.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRun.ReplaceAllString(s, " ")
}

// MatchRegex compiles and matches a regex pattern against a string.
// Returns an error if the pattern is invalid.
func MatchRegex(pattern, text string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}
