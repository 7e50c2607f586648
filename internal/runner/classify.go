package runner

import (
	"regexp"
	"strings"
)

// failureMessage is recorded when output does not match the pattern.
const failureMessage = "Success pattern not found in output"

// Succeeded classifies phase output against the success pattern. A leading
// '/' marks a literal case-insensitive substring; anything else is compiled
// as a case-insensitive regular expression, falling back to a substring
// match when it does not compile. An empty pattern always succeeds.
func Succeeded(pattern, output string) bool {
	if pattern == "" {
		return true
	}
	if strings.HasPrefix(pattern, "/") {
		return containsFold(output, pattern[1:])
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return containsFold(output, pattern)
	}
	return re.MatchString(output)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
