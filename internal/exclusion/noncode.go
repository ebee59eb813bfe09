package exclusion

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

var (
	cStyleCommentRegex = regexp.MustCompile(`/\*.*?\*/`)
	cppCommentRegex    = regexp.MustCompile(`//.*$`)
)

func stripComments(code string) string {
	code = cppCommentRegex.ReplaceAllString(code, "")
	return cStyleCommentRegex.ReplaceAllString(code, "")
}

// isNonCode reports lines holding nothing but braces, else or comments.
func isNonCode(code string) bool {
	code = strings.TrimSpace(stripComments(code))
	return slices.Contains([]string{"", "{", "}", "else"}, code)
}

// canContainBranches is false for lines that are empty except for braces.
func canContainBranches(code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(stripComments(code)), " ", "")
	return !slices.Contains([]string{"", "{", "}", "{}"}, code)
}

func sourceLine(lines []string, lineno int) string {
	if lineno < 1 || lineno > len(lines) {
		return ""
	}
	return lines[lineno-1]
}

// RemoveNoncodeLines drops uncovered lines that do not look like code.
func RemoveNoncodeLines(filecov *model.FileCoverage, lines []string) {
	for _, linecov := range filecov.LineCovs() {
		if linecov.Count == 0 && isNonCode(sourceLine(lines, linecov.Lineno())) {
			slog.Debug(linecov.Location() + " Removing line detected as non code")
			filecov.RemoveLine(linecov)
		}
	}
}

// RemoveUnreachableBranches drops the branches of lines whose code is
// only braces. Such branches are generated by the compiler.
func RemoveUnreachableBranches(filecov *model.FileCoverage, lines []string) {
	for _, linecov := range filecov.LineCovs() {
		if !linecov.HasReportableBranches() || canContainBranches(sourceLine(lines, linecov.Lineno())) {
			continue
		}
		slog.Debug(linecov.Location() + " Removing unreachable branch detected as compiler-generated code")
		linecov.RemoveAllBranches()
	}
}
