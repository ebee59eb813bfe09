// Package gcovjson parses the JSON intermediate format of gcov, written by
// "gcov --json-format" into *.gcov.json.gz files. One data file holds the
// coverage of every source file compiled into an object file.
package gcovjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/gcovr/gcovr-sub000/internal/filereader"
	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser"
	"github.com/gcovr/gcovr-sub000/internal/parser/filtering"
	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
	"github.com/gcovr/gcovr-sub000/internal/utils"
)

const (
	stdinName  = "<stdin>"
	eofPadding = "/*EOF*/"
)

// ErrFormatVersion is returned for data of an unsupported format_version.
var ErrFormatVersion = errors.New("wrong JSON format version")

// Options configures ParseCoverage.
type Options struct {
	// DataFile is the name of the data file, used as provenance.
	DataFile string
	// RootDirectory is searched for sources that do not exist below the
	// working directory of gcov.
	RootDirectory string
	Filters       filtering.IFilter
	// SourceReader reads the source files, FS checks for their existence.
	SourceReader            filereader.FileReader
	FS                      filesystem.Filesystem
	IgnoreParseErrors       hits.IgnoreSet
	SuspiciousHitsThreshold int64
}

// ParseCoverage decodes one gcov JSON document and returns the coverage of
// every source file accepted by the filters.
func ParseCoverage(r io.Reader, opts Options) ([]parser.FileResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcov JSON %s: %w", opts.DataFile, err)
	}
	// The version decides the schema, so it is checked before the rest.
	var header struct {
		FormatVersion any `json:"format_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to decode gcov JSON %s: %w", opts.DataFile, err)
	}
	if v, ok := header.FormatVersion.(string); !ok || v != FormatVersion {
		return nil, fmt.Errorf("Got %w %v, expected %s", ErrFormatVersion, header.FormatVersion, FormatVersion)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode gcov JSON %s: %w", opts.DataFile, err)
	}
	if opts.FS == nil {
		opts.FS = filesystem.DefaultFS{}
	}

	var results []parser.FileResult
	for _, node := range doc.Files {
		fname := filepath.Clean(filepath.Join(doc.CurrentWorkingDirectory, node.File))
		if opts.Filters != nil && !opts.Filters.IsElementIncludedInReport(fname) {
			slog.Debug("Source file is filtered out.", "file", fname, "gcov", opts.DataFile)
			continue
		}
		slog.Debug("Parsing coverage data for file.", "file", fname)

		sourceLines, err := readSource(fname, node, opts)
		if err != nil {
			return nil, err
		}
		filecov, err := fileCoverage(fname, node, sourceLines, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, parser.FileResult{Coverage: filecov, SourceLines: sourceLines})
	}
	return results, nil
}

// readSource returns the source lines of a file, padded to the last line
// the coverage data names.
func readSource(fname string, node fileNode, opts Options) ([]string, error) {
	maxLine := 1
	if n := len(node.Lines); n > 0 {
		maxLine = node.Lines[n-1].LineNumber
	}

	if node.File == stdinName {
		slog.Info("Got sourcefile <stdin>, using empty lines.")
		lines := make([]string, max(maxLine, 1))
		lines[0] = "/* Got sourcefile <stdin>, using empty lines. */"
		return lines, nil
	}

	if _, err := opts.FS.Stat(fname); err != nil {
		if found, ok := utils.FindFileInSourceDirs(opts.FS, node.File, []string{opts.RootDirectory}); ok {
			fname = found
		}
	}
	lines, err := opts.SourceReader.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %s: %w", fname, err)
	}
	if len(lines) < maxLine {
		slog.Warn(fmt.Sprintf("File %s has %d line(s) but coverage data has %d line(s).", fname, len(lines), maxLine))
		for len(lines) < maxLine {
			lines = append(lines, eofPadding)
		}
	}
	return lines, nil
}

func fileCoverage(fname string, node fileNode, sourceLines []string, opts Options) (*model.FileCoverage, error) {
	sources := model.NewDataSources(opts.DataFile)
	checker := hits.NewChecker(opts.IgnoreParseErrors, opts.SuspiciousHitsThreshold)
	filecov := model.NewFileCoverage(fname, sources)

	for _, ln := range node.Lines {
		code := sourceLine(sourceLines, ln.LineNumber)
		count, err := checker.Check(ln.Count, code)
		if err != nil {
			return nil, err
		}
		linecov, err := filecov.InsertLine(model.LineSpec{
			DataSources:  sources,
			Lineno:       ln.LineNumber,
			Count:        count,
			FunctionName: ln.FunctionName,
			BlockIDs:     ln.BlockIDs,
			MD5:          utils.MD5Hex(code),
		}, model.DefaultMergeOptions)
		if err != nil {
			return nil, err
		}

		for i, b := range ln.Branches {
			count, err := checker.Check(b.Count, code)
			if err != nil {
				return nil, err
			}
			if _, err := linecov.InsertBranch(&model.BranchCoverage{
				DataSources:        sources,
				BranchNo:           model.Int(i),
				Count:              count,
				Fallthrough:        b.Fallthrough,
				Throw:              b.Throw,
				SourceBlockID:      model.Int(b.SourceBlockID),
				DestinationBlockID: model.Int(b.DestinationBlockID),
			}); err != nil {
				return nil, err
			}
		}

		for i, c := range ln.Conditions {
			count, err := checker.Check(c.Count, code)
			if err != nil {
				return nil, err
			}
			if _, err := linecov.InsertCondition(&model.ConditionCoverage{
				DataSources:     sources,
				ConditionNo:     i,
				Count:           count,
				Covered:         c.Covered,
				NotCoveredTrue:  c.NotCoveredTrue,
				NotCoveredFalse: c.NotCoveredFalse,
			}); err != nil {
				return nil, err
			}
		}

		for _, c := range ln.Calls {
			if _, err := linecov.InsertCall(&model.CallCoverage{
				DataSources:        sources,
				SourceBlockID:      c.SourceBlockID,
				DestinationBlockID: model.Int(c.DestinationBlockID),
				Returned:           c.Returned,
			}); err != nil {
				return nil, err
			}
		}
	}

	for _, fn := range node.Functions {
		blocks := 100.0
		if fn.BlocksExecuted != fn.Blocks {
			blocks, _ = model.Percent(fn.BlocksExecuted, fn.Blocks)
		}
		if _, err := filecov.InsertFunction(model.FunctionSpec{
			DataSources:   sources,
			MangledName:   fn.Name,
			DemangledName: fn.DemangledName,
			Lineno:        fn.StartLine,
			Count:         fn.ExecutionCount,
			Blocks:        blocks,
			Start:         &model.Position{Line: fn.StartLine, Column: fn.StartColumn},
			End:           &model.Position{Line: fn.EndLine, Column: fn.EndColumn},
		}, model.FunctionMaxLineMergeOptions); err != nil {
			return nil, err
		}
	}

	checker.LogSummary()
	return filecov, nil
}

func sourceLine(lines []string, lineno int) string {
	if lineno < 1 || lineno > len(lines) {
		return ""
	}
	return lines[lineno-1]
}
