// Package slug derives filesystem-safe names for archive notes from
// deck names, which may carry Anki's "Parent::Child" separators and
// arbitrary punctuation.
package slug

import (
	"regexp"
	"strings"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases the input and collapses every run of non-alphanumeric
// characters (including "::" deck separators) into a single dash.
func Make(input string) string {
	s := nonAlphaNum.ReplaceAllString(strings.ToLower(input), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
