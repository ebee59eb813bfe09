// Package exclusion removes unwanted parts of the coverage data of a file,
// either explicitly excluded by markers such as GCOVR_EXCL_LINE in the
// source code or detected by heuristics on the code and function names.
//
// Every pass modifies the FileCoverage in place.
package exclusion

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

// DefaultPatternPrefix matches the GCOV, GCOVR, LCOV and LCOVR markers.
const DefaultPatternPrefix = "[GL]COVR?"

// Options selects the exclusion passes.
type Options struct {
	RespectExclusionMarkers bool
	// ExcludeLinesByPattern and ExcludeBranchesByPattern are regexes
	// matched against the start of each source line.
	ExcludeLinesByPattern    string
	ExcludeBranchesByPattern string
	ExcludePatternPrefix     string

	ExcludeThrowBranches       bool
	ExcludeUnreachableBranches bool
	ExcludeFunctionLines       bool
	ExcludeInternalFunctions   bool
	ExcludeNoncodeLines        bool
	ExcludeCalls               bool
}

// DefaultOptions respects exclusion markers and removes calls.
func DefaultOptions() Options {
	return Options{
		RespectExclusionMarkers: true,
		ExcludePatternPrefix:    DefaultPatternPrefix,
		ExcludeCalls:            true,
	}
}

// Excluder applies the passes selected by its Options. It holds no state
// between files and can be shared by goroutines.
type Excluder struct {
	opts          Options
	prefix        string
	lineMarker    *regexp.Regexp
	branchMarker  *regexp.Regexp
	linePattern   *regexp.Regexp
	branchPattern *regexp.Regexp
}

// New compiles the patterns of opts.
func New(opts Options) (*Excluder, error) {
	e := &Excluder{opts: opts, prefix: opts.ExcludePatternPrefix}
	if e.prefix == "" {
		e.prefix = DefaultPatternPrefix
	}

	var err error
	if e.lineMarker, err = compileMarker(e.prefix, excludeLineWord); err != nil {
		return nil, err
	}
	if e.branchMarker, err = compileMarker(e.prefix, excludeBranchWord); err != nil {
		return nil, err
	}
	if e.linePattern, err = compileCustom(opts.ExcludeLinesByPattern); err != nil {
		return nil, err
	}
	if e.branchPattern, err = compileCustom(opts.ExcludeBranchesByPattern); err != nil {
		return nil, err
	}
	return e, nil
}

func compileCustom(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Apply runs the selected passes on filecov. lines are the source lines
// of the file, the first element is line 1.
func Apply(filecov *model.FileCoverage, lines []string, opts Options) error {
	e, err := New(opts)
	if err != nil {
		return err
	}
	e.Apply(filecov, lines)
	return nil
}

// Apply runs the selected passes on filecov.
func (e *Excluder) Apply(filecov *model.FileCoverage, lines []string) {
	if e.opts.ExcludeNoncodeLines {
		RemoveNoncodeLines(filecov, lines)
	}
	if e.opts.RespectExclusionMarkers {
		e.applyMarkers(filecov, lines)
	}
	if e.opts.ExcludeThrowBranches {
		RemoveThrowBranches(filecov)
	}
	if e.opts.ExcludeUnreachableBranches {
		RemoveUnreachableBranches(filecov, lines)
	}
	if e.opts.ExcludeFunctionLines {
		RemoveFunctionLines(filecov)
	}
	if e.opts.ExcludeInternalFunctions {
		RemoveInternalFunctions(filecov)
	}
	if e.opts.ExcludeCalls {
		RemoveCalls(filecov)
	}
}

// RemoveCalls drops the call records of every line.
func RemoveCalls(filecov *model.FileCoverage) {
	for _, linecov := range filecov.LineCovs() {
		linecov.RemoveAllCalls()
	}
}

// RemoveThrowBranches drops branches taken only when an exception is
// thrown.
func RemoveThrowBranches(filecov *model.FileCoverage) {
	for _, linecov := range filecov.LineCovs() {
		for _, b := range linecov.Branches() {
			if b.Throw {
				slog.Debug(fmt.Sprintf(
					"Excluding unreachable branch on line %d file %s: detected as exception-only code",
					linecov.Lineno(), filecov.Filename,
				))
				linecov.RemoveBranch(b)
			}
		}
	}
}

// RemoveFunctionLines drops the coverage of lines where a function is
// defined.
func RemoveFunctionLines(filecov *model.FileCoverage) {
	for _, fn := range filecov.Functions() {
		for _, lineno := range fn.Lines() {
			filecov.RemoveLineNumber(lineno)
		}
	}
}

// isInternalFunction reports the names of compiler generated functions,
// e.g. for the construction of static objects.
func isInternalFunction(name string) bool {
	return strings.HasPrefix(name, "__") || strings.HasPrefix(name, "_GLOBAL__sub_I_")
}

// RemoveInternalFunctions drops compiler generated functions and excludes
// their lines.
func RemoveInternalFunctions(filecov *model.FileCoverage) {
	for _, fn := range filecov.Functions() {
		if !isInternalFunction(fn.Name()) {
			continue
		}
		lines := make([]string, 0, len(fn.Count))
		for _, lineno := range fn.Lines() {
			lines = append(lines, fmt.Sprint(lineno))
		}
		slog.Debug(fmt.Sprintf("Ignoring symbol %s in line %s in file %s",
			fn.Name(), strings.Join(lines, ", "), filecov.Filename))

		filecov.RemoveFunction(fn)
		for _, linecov := range filecov.LineCovs() {
			if fn.IsFunction(linecov.FunctionName) {
				linecov.Exclude()
			}
		}
	}
}
