package exclusion

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

const (
	excludeFlag       = "_EXCL_"
	excludeLineWord   = ""
	excludeBranchWord = "BR_"
)

// lineRange is an inclusive range of line numbers.
type lineRange struct {
	start, end int
}

// lineRanges is a set of possibly overlapping line ranges.
type lineRanges []lineRange

func (r lineRanges) sorted() lineRanges {
	sort.Slice(r, func(i, j int) bool {
		if r[i].start != r[j].start {
			return r[i].start < r[j].start
		}
		return r[i].end < r[j].end
	})
	return r
}

// Contains reports whether lineno is inside any range. The ranges must be
// sorted.
func (r lineRanges) Contains(lineno int) bool {
	for _, lr := range r {
		if lineno < lr.start {
			return false
		}
		if lineno <= lr.end {
			return true
		}
	}
	return false
}

// markerScanner finds the ranges excluded by one kind of marker, either
// for lines or for branches only.
type markerScanner struct {
	filename string
	word     string
	marker   *regexp.Regexp
	custom   *regexp.Regexp
}

type openMarker struct {
	header string
	lineno int
}

func compileMarker(prefix, word string) (*regexp.Regexp, error) {
	marker, err := regexp.Compile("(" + prefix + ")" + excludeFlag + word + "(LINE|START|STOP)")
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion marker prefix %q: %w", prefix, err)
	}
	return marker, nil
}

func (s *markerScanner) name(header, flag string) string {
	return header + excludeFlag + s.word + flag
}

// scan returns the sorted ranges excluded by the markers in lines. A STOP
// marker ends the range on the line before it.
func (s *markerScanner) scan(lines []string) lineRanges {
	var ranges lineRanges
	var stack []openMarker

	for i, code := range lines {
		lineno := i + 1
		if strings.Contains(code, excludeFlag) {
			for _, m := range s.marker.FindAllStringSubmatch(code, -1) {
				header, flag := m[1], m[len(m)-1]
				switch flag {
				case "LINE":
					if len(stack) > 0 {
						slog.Warn(fmt.Sprintf(
							"%s found on line %d in excluded region started on line %d, when processing %s.",
							s.name(header, "LINE"), lineno, stack[len(stack)-1].lineno, s.filename,
						))
					} else {
						ranges = append(ranges, lineRange{lineno, lineno})
					}
				case "START":
					stack = append(stack, openMarker{header: header, lineno: lineno})
				case "STOP":
					if len(stack) == 0 {
						slog.Warn(fmt.Sprintf(
							"mismatched coverage exclusion flags.\n          %s found on line %d without corresponding %s, when processing %s.",
							s.name(header, "STOP"), lineno, s.name(header, "START"), s.filename,
						))
						continue
					}
					start := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					if start.header != header {
						slog.Warn(fmt.Sprintf(
							"%s found on line %d was terminated by %s on line %d, when processing %s.",
							s.name(start.header, "START"), start.lineno, s.name(header, "STOP"), lineno, s.filename,
						))
					}
					ranges = append(ranges, lineRange{start.lineno, lineno - 1})
				}
			}
		}

		if s.custom != nil && s.custom.MatchString(code) {
			ranges = append(ranges, lineRange{lineno, lineno})
		}
	}

	for _, open := range stack {
		slog.Warn(fmt.Sprintf(
			"The coverage exclusion region start flag %s\n          on line %d did not have corresponding %s flag\n          in file %s.",
			s.name(open.header, "START"), open.lineno, s.name(open.header, "STOP"), s.filename,
		))
	}
	return ranges.sorted()
}

// applyMarkers excludes the lines and branches named by exclusion markers
// in the source code. Decisions are always cleared since the exclusions
// change what the decision analysis would see.
func (e *Excluder) applyMarkers(filecov *model.FileCoverage, lines []string) {
	excludedLines := (&markerScanner{
		filename: filecov.Filename, word: excludeLineWord, marker: e.lineMarker, custom: e.linePattern,
	}).scan(lines)
	excludedBranches := (&markerScanner{
		filename: filecov.Filename, word: excludeBranchWord, marker: e.branchMarker, custom: e.branchPattern,
	}).scan(lines)

	for _, linecov := range filecov.LineCovs() {
		linecov.Decision = nil
		switch lineno := linecov.Lineno(); {
		case excludedLines.Contains(lineno):
			linecov.Excluded = true
			linecov.Count = 0
			linecov.RemoveAllBranches()
		case excludedBranches.Contains(lineno):
			linecov.RemoveAllBranches()
		}
	}

	for _, fn := range filecov.Functions() {
		for lineno := range fn.Excluded {
			if excludedLines.Contains(lineno) {
				fn.Count[lineno] = 0
				fn.Excluded[lineno] = true
			}
		}
	}
}
