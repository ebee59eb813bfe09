// Package gcovtext parses the text format written by "gcov --stdout" or
// into *.gcov files, e.g.
//
//	        -:    0:Source:main.c
//	function main called 1 returned 100% blocks executed 80%
//	        1:    3:int main(void) {
//	branch  0 taken 1 (fallthrough)
//
// Lines are tokenized into Events first. A state machine then builds one
// FileCoverage from them. Source code lines carry the code of the source
// file, so the file itself is not needed.
package gcovtext

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
)

// Options configures ParseCoverage.
type Options struct {
	// Filename is the path of the source file the data is for.
	Filename string
	// DataSources is the provenance of all records created.
	DataSources model.DataSources
	// IgnoreParseErrors downgrades errors to warnings.
	IgnoreParseErrors hits.IgnoreSet
	// SuspiciousHitsThreshold is 0 to disable the check.
	SuspiciousHitsThreshold int64
	// UseExistingFiles is set for data not produced by this program. A file
	// without function lines is then reported since it was probably
	// created without the required gcov options.
	UseExistingFiles bool
}

// LineError is an error of one input line.
type LineError struct {
	Line string
	Err  error
}

// ParseErrors collects all line errors of one unit.
type ParseErrors struct {
	Filename string
	Lines    []LineError
}

func (e *ParseErrors) Error() string {
	return fmt.Sprintf("%d parse error(s) in gcov data for %s, first: %v", len(e.Lines), e.Filename, e.Lines[0].Err)
}

// Unwrap returns the first original error.
func (e *ParseErrors) Unwrap() error { return e.Lines[0].Err }

// Metadata holds the "-: 0:KEY:VALUE" header of a gcov file. A key without
// value maps to nil.
type Metadata map[string]*string

// Source returns the "Source" entry.
func (m Metadata) Source() string {
	if v := m["Source"]; v != nil {
		return *v
	}
	return ""
}

// ParseMetadata collects the metadata lines at the start of a gcov file.
func ParseMetadata(lines []string, suspiciousHitsThreshold int64) (Metadata, error) {
	checker := hits.NewChecker(hits.IgnoreSet{}, suspiciousHitsThreshold)
	collected := Metadata{}
	for _, line := range lines {
		if line == "" {
			continue
		}
		ev, err := Tokenize(line, checker)
		md, ok := ev.(MetadataLine)
		if err != nil || !ok {
			break
		}
		if md.HasValue {
			value := md.Value
			collected[md.Key] = &value
		} else {
			collected[md.Key] = nil
		}
	}

	if _, ok := collected["Source"]; !ok {
		return nil, fmt.Errorf("Missing key 'Source' in metadata. GCOV data was >>%s<< End of GCOV data", strings.Join(lines, "\n"))
	}
	return collected, nil
}

type tokenizedLine struct {
	event Event
	raw   string
}

// ParseCoverage builds the coverage of one gcov text unit. It returns the
// coverage and the source code lines, indexed by line number - 1.
//
// Line errors do not stop the parse. They are logged together at the end
// and returned as *ParseErrors unless opts.IgnoreParseErrors contains
// "all".
func ParseCoverage(lines []string, opts Options) (*model.FileCoverage, []string, error) {
	checker := hits.NewChecker(opts.IgnoreParseErrors, opts.SuspiciousHitsThreshold)

	var lineErrors []LineError
	var tokens []tokenizedLine
	for _, raw := range lines {
		if raw == "" {
			continue
		}
		ev, err := Tokenize(raw, checker)
		if err != nil {
			lineErrors = append(lineErrors, LineError{Line: raw, Err: err})
			continue
		}
		tokens = append(tokens, tokenizedLine{event: ev, raw: raw})
	}

	if opts.UseExistingFiles {
		warnMissingFunctionLines(tokens, opts.DataSources)
	}
	checker.LogSummary()

	filecov := model.NewFileCoverage(opts.Filename, opts.DataSources)
	b := newBuilder(filecov)
	s := initialState()
	for _, t := range tokens {
		next, err := b.transition(s, t.event)
		if err != nil {
			lineErrors = append(lineErrors, LineError{Line: t.raw, Err: err})
			s = initialState()
			s.recovering = true
			continue
		}
		s = next
	}

	// Function lines at the end of the data have no line to attach to.
	if len(s.deferredFunctions) > 0 {
		lineno := 0
		if s.lastLine != nil {
			lineno = s.lastLine.Lineno() + 1
		}
		if err := b.insertFunctions(s.deferredFunctions, lineno); err != nil {
			lineErrors = append(lineErrors, LineError{Line: s.deferredFunctions[0].Name, Err: err})
		}
	}

	if err := insertUnknownFunction(filecov, opts.DataSources); err != nil {
		lineErrors = append(lineErrors, LineError{Line: UnknownFunctionName, Err: err})
	}

	if err := reportLineErrors(lineErrors, opts); err != nil {
		return nil, nil, err
	}
	return filecov, reconstructSourceCode(tokens), nil
}

func warnMissingFunctionLines(tokens []tokenizedLine, sources model.DataSources) {
	hasCode := false
	for _, t := range tokens {
		switch t.event.(type) {
		case FunctionLine:
			return
		case MetadataLine:
		default:
			hasCode = true
		}
	}
	if !hasCode {
		return
	}
	slog.Warn(fmt.Sprintf("No function line found in gcov file:\n   %s\n"+
		"This may indicate that the file was generated without the proper gcov options (especially --branch-probabilities)?\n"+
		"See <https://gcovr.com/en/stable/faq.html#which-options-are-used-for-calling-gcov>.",
		strings.Join(sources.Strings(), "\n   ")))
}

// insertUnknownFunction adds an excluded function for the lines that were
// not attributed to any function.
func insertUnknownFunction(filecov *model.FileCoverage, sources model.DataSources) error {
	for _, linecov := range filecov.LineCovs() {
		if linecov.FunctionName != UnknownFunctionName {
			continue
		}
		_, err := filecov.InsertFunction(model.FunctionSpec{
			DataSources: sources,
			MangledName: UnknownFunctionName,
			Lineno:      linecov.Lineno(),
			Excluded:    true,
		}, model.FunctionMaxLineMergeOptions)
		return err
	}
	return nil
}

func reportLineErrors(lineErrors []LineError, opts Options) error {
	if len(lineErrors) == 0 {
		return nil
	}

	raw := make([]string, len(lineErrors))
	for i, le := range lineErrors {
		raw[i] = le.Line
	}
	slog.Warn(fmt.Sprintf("Unrecognized GCOV output for %s\n\t  %s\n"+
		"\tThis is indicative of a gcov output parse error.\n"+
		"\tPlease report this to the gcovr developers\n"+
		"\tat <https://github.com/gcovr/gcovr/issues>.",
		opts.Filename, strings.Join(raw, "\n\t  ")))
	for _, le := range lineErrors {
		slog.Warn(fmt.Sprintf("Exception during parsing:\n\t%T: %s", le.Err, le.Err))
	}

	if opts.IgnoreParseErrors.Has(hits.IgnoreAll) {
		return nil
	}
	slog.Error("Exiting because of parse errors.\n" +
		"\tYou can run gcovr with --gcov-ignore-parse-errors=...\n" +
		"\tto continue anyway.")
	return &ParseErrors{Filename: opts.Filename, Lines: lineErrors}
}

// reconstructSourceCode returns the code of all source lines. Line numbers
// without a source line get "".
func reconstructSourceCode(tokens []tokenizedLine) []string {
	maxLineno := 0
	for _, t := range tokens {
		if line, ok := t.event.(SourceLine); ok && line.Lineno > maxLineno {
			maxLineno = line.Lineno
		}
	}
	source := make([]string, maxLineno)
	for _, t := range tokens {
		if line, ok := t.event.(SourceLine); ok && line.Lineno > 0 {
			source[line.Lineno-1] = line.Code
		}
	}
	return source
}
