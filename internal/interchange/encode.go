// Package interchange reads and writes the gcovr JSON format, which holds
// the merged coverage of a run so it can be combined with other runs
// later.
package interchange

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// WithSources writes the provenance of every entity.
	WithSources bool
	// Root makes the file names relative if they are below it.
	Root string
}

// Encode converts a container into a Document. Files are ordered by name.
func Encode(c *model.CoverageContainer, opts EncodeOptions) *Document {
	doc := &Document{FormatVersion: FormatVersion, Files: []File{}}
	for _, filecov := range c.Files() {
		doc.Files = append(doc.Files, encodeFile(filecov, opts))
	}
	return doc
}

func (o EncodeOptions) sources(ds model.DataSources) [][]string {
	if !o.WithSources {
		return nil
	}
	chains := ds.Sorted()
	for _, chain := range chains {
		for i, p := range chain {
			chain[i] = o.presentable(p)
		}
	}
	return chains
}

// presentable returns a path relative to the root, with "/" separators.
func (o EncodeOptions) presentable(path string) string {
	if o.Root != "" {
		if rel, err := filepath.Rel(o.Root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

func encodeFile(filecov *model.FileCoverage, opts EncodeOptions) File {
	f := File{
		File:        opts.presentable(filecov.Filename),
		Lines:       []Line{},
		Functions:   []Function{},
		DataSources: opts.sources(filecov.DataSources),
	}
	for _, linecov := range filecov.LineCovs() {
		f.Lines = append(f.Lines, encodeLine(linecov, opts))
	}
	for _, fn := range filecov.Functions() {
		f.Functions = append(f.Functions, encodeFunction(fn, opts)...)
	}
	return f
}

func encodeLine(linecov *model.LineCoverage, opts EncodeOptions) Line {
	l := Line{
		LineNumber:   linecov.Lineno(),
		FunctionName: linecov.FunctionName,
		BlockIDs:     linecov.BlockIDs,
		Count:        linecov.Count,
		Branches:     []Branch{},
		MD5:          linecov.MD5,
		Excluded:     linecov.Excluded,
		DataSources:  opts.sources(linecov.DataSources),
	}
	for _, b := range linecov.Branches() {
		l.Branches = append(l.Branches, Branch{
			BranchNo:           b.BranchNo,
			Count:              b.Count,
			Fallthrough:        b.Fallthrough,
			Throw:              b.Throw,
			SourceBlockID:      b.SourceBlockID,
			DestinationBlockID: b.DestinationBlockID,
			Excluded:           b.Excluded,
			DataSources:        opts.sources(b.DataSources),
		})
	}
	for _, c := range linecov.Conditions() {
		l.Conditions = append(l.Conditions, Condition{
			ConditionNo:     c.ConditionNo,
			Count:           c.Count,
			Covered:         c.Covered,
			NotCoveredFalse: nonNil(c.NotCoveredFalse),
			NotCoveredTrue:  nonNil(c.NotCoveredTrue),
			Excluded:        c.Excluded,
			DataSources:     opts.sources(c.DataSources),
		})
	}
	if linecov.Decision != nil {
		l.Decision = encodeDecision(linecov.Decision, opts)
	}
	for _, c := range linecov.Calls() {
		l.Calls = append(l.Calls, Call{
			CallNo:             c.CallNo,
			SourceBlockID:      c.SourceBlockID,
			DestinationBlockID: c.DestinationBlockID,
			Returned:           c.Returned,
			Excluded:           c.Excluded,
			DataSources:        opts.sources(c.DataSources),
		})
	}
	return l
}

func encodeDecision(d model.Decision, opts EncodeOptions) *Decision {
	result := &Decision{DataSources: opts.sources(d.Sources())}
	switch d := d.(type) {
	case *model.UncheckableDecision:
		result.Type = DecisionUncheckable
	case *model.ConditionalDecision:
		result.Type = DecisionConditional
		result.CountTrue = model.Int(d.CountTrue)
		result.CountFalse = model.Int(d.CountFalse)
	case *model.SwitchDecision:
		result.Type = DecisionSwitch
		result.Count = model.Int(d.Count)
	default:
		panic(fmt.Sprintf("unknown decision type %T", d))
	}
	return result
}

func encodeFunction(fn *model.FunctionCoverage, opts EncodeOptions) []Function {
	var result []Function
	for _, lineno := range fn.Lines() {
		f := Function{
			Name:           fn.MangledName,
			DemangledName:  fn.DemangledName,
			Lineno:         lineno,
			ExecutionCount: fn.Count[lineno],
			BlocksPercent:  fn.Blocks[lineno],
			Excluded:       fn.Excluded[lineno],
			DataSources:    opts.sources(fn.DataSources),
		}
		// An unknown side of the position pair is written as "".
		start, hasStart := fn.Start[lineno]
		end, hasEnd := fn.End[lineno]
		if hasStart || hasEnd {
			f.Pos = []string{"", ""}
			if hasStart {
				f.Pos[0] = start.String()
			}
			if hasEnd {
				f.Pos[1] = end.String()
			}
		}
		result = append(result, f)
	}
	return result
}

func nonNil(values []int) []int {
	if values == nil {
		return []int{}
	}
	return slices.Clone(values)
}

// Write encodes c as JSON into w. Pretty output is indented by four
// spaces.
func Write(w io.Writer, c *model.CoverageContainer, opts EncodeOptions, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "    ")
	}
	return enc.Encode(Encode(c, opts))
}

// WriteFile writes c to path, or to stdout if path is "-".
func WriteFile(path string, c *model.CoverageContainer, opts EncodeOptions, pretty bool) error {
	if path == "-" {
		return Write(os.Stdout, c, opts, pretty)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, c, opts, pretty); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
