package utils

import "strings"

// SplitThatEnsuresGlobsAreSafe splits a string by any of the given separators,
// but does not split within brace-delimited glob patterns like {group1,group2}.
// Parts are trimmed and empty parts are dropped.
func SplitThatEnsuresGlobsAreSafe(s string, separators []rune) []string {
	if len(separators) == 0 {
		return []string{s}
	}

	var parts []string
	var currentPart strings.Builder
	braceLevel := 0

	flush := func() {
		if part := strings.TrimSpace(currentPart.String()); part != "" {
			parts = append(parts, part)
		}
		currentPart.Reset()
	}

	for _, char := range s {
		switch {
		case char == '{':
			braceLevel++
			currentPart.WriteRune(char)
		case char == '}':
			if braceLevel > 0 {
				braceLevel--
			}
			currentPart.WriteRune(char)
		case braceLevel == 0 && strings.ContainsRune(string(separators), char):
			flush()
		default:
			currentPart.WriteRune(char)
		}
	}
	flush()
	return parts
}
