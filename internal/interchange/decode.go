package interchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser/filtering"
)

// ErrFormatVersion is returned for documents written by another version.
var ErrFormatVersion = errors.New("wrong format version")

// ErrUnknownDecision is returned for decisions of an unknown type.
var ErrUnknownDecision = errors.New("unknown decision type")

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// Root is the directory relative file names are resolved against.
	Root         string
	Filters      filtering.IFilter
	MergeOptions model.MergeOptions
}

// ReadFile reads a gcovr JSON file into a new container.
func ReadFile(path string, opts DecodeOptions) (*model.CoverageContainer, error) {
	slog.Debug("Processing JSON file", "file", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return Decode(path, &doc, opts)
}

// ReadFiles reads and merges several gcovr JSON files.
func ReadFiles(paths []string, opts DecodeOptions) (*model.CoverageContainer, error) {
	result := model.NewCoverageContainer()
	for _, path := range paths {
		c, err := ReadFile(path, opts)
		if err != nil {
			return nil, err
		}
		if err := result.Merge(c, opts.MergeOptions); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Decode converts a Document into a container. dataSource names the
// document and is the provenance of every entity without one.
func Decode(dataSource string, doc *Document, opts DecodeOptions) (*model.CoverageContainer, error) {
	if version, ok := doc.FormatVersion.(string); !ok || version != FormatVersion {
		return nil, fmt.Errorf("%w, got %v expected %s", ErrFormatVersion, doc.FormatVersion, FormatVersion)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("error resolving root %q: %w", opts.Root, err)
	}

	c := model.NewCoverageContainer()
	for _, f := range doc.Files {
		filename := filepath.FromSlash(f.File)
		if !filepath.IsAbs(filename) {
			filename = filepath.Join(root, filepath.Clean(filename))
		}
		if opts.Filters != nil && !opts.Filters.IsElementIncludedInReport(filename) {
			slog.Debug("Filtered coverage of file.", "file", filename, "json", dataSource)
			continue
		}

		filecov, err := decodeFile(filename, dataSource, f, opts.MergeOptions)
		if err != nil {
			return nil, fmt.Errorf("error in %s: %w", dataSource, err)
		}
		if err := c.InsertFile(filecov, opts.MergeOptions); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// sources returns the provenance of an entity, falling back to the one of
// its file.
func sources(chains [][]string, fallback model.DataSources) model.DataSources {
	if len(chains) == 0 {
		return fallback.Clone()
	}
	ds := model.NewDataSources()
	for _, chain := range chains {
		ds.Add(chain...)
	}
	return ds
}

func decodeFile(filename, dataSource string, f File, opts model.MergeOptions) (*model.FileCoverage, error) {
	fileSources := sources(f.DataSources, model.NewDataSources(dataSource))
	filecov := model.NewFileCoverage(filename, fileSources)

	for _, l := range f.Lines {
		linecov, err := filecov.InsertLine(model.LineSpec{
			DataSources:  sources(l.DataSources, fileSources),
			Lineno:       l.LineNumber,
			Count:        l.Count,
			FunctionName: l.FunctionName,
			BlockIDs:     l.BlockIDs,
			MD5:          l.MD5,
			Excluded:     l.Excluded,
		}, opts)
		if err != nil {
			return nil, err
		}
		if err := decodeLineItems(linecov, l, fileSources); err != nil {
			return nil, err
		}
	}

	for _, fn := range f.Functions {
		spec := model.FunctionSpec{
			DataSources:   sources(fn.DataSources, fileSources),
			MangledName:   fn.Name,
			DemangledName: fn.DemangledName,
			Lineno:        fn.Lineno,
			Count:         fn.ExecutionCount,
			Blocks:        fn.BlocksPercent,
			Excluded:      fn.Excluded,
		}
		if len(fn.Pos) == 2 {
			var err error
			if spec.Start, err = parseOptionalPosition(fn.Pos[0]); err != nil {
				return nil, err
			}
			if spec.End, err = parseOptionalPosition(fn.Pos[1]); err != nil {
				return nil, err
			}
		}
		if _, err := filecov.InsertFunction(spec, opts); err != nil {
			return nil, err
		}
	}
	return filecov, nil
}

func decodeLineItems(linecov *model.LineCoverage, l Line, fileSources model.DataSources) error {
	for _, b := range l.Branches {
		if _, err := linecov.InsertBranch(&model.BranchCoverage{
			DataSources:        sources(b.DataSources, fileSources),
			BranchNo:           b.BranchNo,
			Count:              b.Count,
			Fallthrough:        b.Fallthrough,
			Throw:              b.Throw,
			SourceBlockID:      b.SourceBlockID,
			DestinationBlockID: b.DestinationBlockID,
			Excluded:           b.Excluded,
		}); err != nil {
			return err
		}
	}
	for _, c := range l.Conditions {
		if _, err := linecov.InsertCondition(&model.ConditionCoverage{
			DataSources:     sources(c.DataSources, fileSources),
			ConditionNo:     c.ConditionNo,
			Count:           c.Count,
			Covered:         c.Covered,
			NotCoveredTrue:  c.NotCoveredTrue,
			NotCoveredFalse: c.NotCoveredFalse,
			Excluded:        c.Excluded,
		}); err != nil {
			return err
		}
	}
	if l.Decision != nil {
		d, err := decodeDecision(l.Decision, sources(l.Decision.DataSources, fileSources))
		if err != nil {
			return fmt.Errorf("%s: %w", linecov.Location(), err)
		}
		linecov.InsertDecision(d)
	}
	for _, c := range l.Calls {
		if _, err := linecov.InsertCall(&model.CallCoverage{
			DataSources:        sources(c.DataSources, fileSources),
			CallNo:             c.CallNo,
			SourceBlockID:      c.SourceBlockID,
			DestinationBlockID: c.DestinationBlockID,
			Returned:           c.Returned,
			Excluded:           c.Excluded,
		}); err != nil {
			return err
		}
	}
	return nil
}

func decodeDecision(d *Decision, ds model.DataSources) (model.Decision, error) {
	switch d.Type {
	case DecisionUncheckable:
		return &model.UncheckableDecision{DataSources: ds}, nil
	case DecisionConditional:
		return &model.ConditionalDecision{DataSources: ds, CountTrue: deref(d.CountTrue), CountFalse: deref(d.CountFalse)}, nil
	case DecisionSwitch:
		return &model.SwitchDecision{DataSources: ds, Count: deref(d.Count)}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDecision, d.Type)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// parsePosition parses "line:column".
func parsePosition(s string) (model.Position, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return model.Position{}, fmt.Errorf("invalid function position %q", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return model.Position{}, fmt.Errorf("invalid function position %q: %w", s, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return model.Position{}, fmt.Errorf("invalid function position %q: %w", s, err)
	}
	return model.Position{Line: line, Column: col}, nil
}

// parseOptionalPosition returns nil for an empty position.
func parseOptionalPosition(s string) (*model.Position, error) {
	if s == "" {
		return nil, nil
	}
	pos, err := parsePosition(s)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}
