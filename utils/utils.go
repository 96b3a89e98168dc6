package utils

import (
	"fmt"
	"strings"
)

// Str renders a loosely typed JSON value as a string; nil becomes "".
func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// CollapseSpace trims s and replaces every whitespace run with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
