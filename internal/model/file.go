package model

import (
	"fmt"
	"sort"
)

// FileCoverage is the coverage of one source file. It is identified by its
// normalized path and owns the line and function records of that file.
type FileCoverage struct {
	DataSources DataSources
	Filename    string

	lines     map[int]*LineCoverageCollection
	functions map[string]*FunctionCoverage
}

// NewFileCoverage returns an empty FileCoverage for the given path.
func NewFileCoverage(filename string, sources DataSources) *FileCoverage {
	return &FileCoverage{
		DataSources: sources.Clone(),
		Filename:    filename,
		lines:       map[int]*LineCoverageCollection{},
		functions:   map[string]*FunctionCoverage{},
	}
}

func (f *FileCoverage) Location() string {
	if f == nil {
		return ""
	}
	return f.Filename
}

// Lines returns the line collections ordered by line number.
func (f *FileCoverage) Lines() []*LineCoverageCollection {
	result := make([]*LineCoverageCollection, 0, len(f.lines))
	for _, lineno := range sortedKeys(f.lines) {
		result = append(result, f.lines[lineno])
	}
	return result
}

// Line returns the collection of the given line or nil.
func (f *FileCoverage) Line(lineno int) *LineCoverageCollection {
	return f.lines[lineno]
}

func (f *FileCoverage) HasLines() bool { return len(f.lines) > 0 }

// LineCovs returns all line records ordered by line and function name.
func (f *FileCoverage) LineCovs() []*LineCoverage {
	var result []*LineCoverage
	for _, collection := range f.Lines() {
		result = append(result, collection.LineCovs()...)
	}
	return result
}

// Functions returns the functions ordered by their first line, then name.
func (f *FileCoverage) Functions() []*FunctionCoverage {
	result := make([]*FunctionCoverage, 0, len(f.functions))
	for _, fn := range f.functions {
		result = append(result, fn)
	}
	sort.Slice(result, func(i, j int) bool {
		li, lj := minKey(result[i].Count), minKey(result[j].Count)
		if li != lj {
			return li < lj
		}
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Function returns the function with the given name or nil.
func (f *FileCoverage) Function(name string) *FunctionCoverage {
	return f.functions[name]
}

func minKey[V any](m map[int]V) int {
	first := true
	result := 0
	for k := range m {
		if first || k < result {
			result, first = k, false
		}
	}
	return result
}

// InsertLine adds a line record or merges it into the record of the same
// line and function.
func (f *FileCoverage) InsertLine(spec LineSpec, opts MergeOptions) (*LineCoverage, error) {
	location := fmt.Sprintf("%s:%d", f.Location(), spec.Lineno)
	if spec.Lineno <= 0 {
		return nil, newDataError(location, "lineno must be a positive value.", spec.DataSources)
	}
	if spec.Count < 0 {
		return nil, newDataError(location, "count must not be a negative value.", spec.DataSources)
	}

	collection, ok := f.lines[spec.Lineno]
	if !ok {
		collection = &LineCoverageCollection{
			parent:      f,
			DataSources: spec.DataSources.Clone(),
			Lineno:      spec.Lineno,
			linecovs:    map[string]*LineCoverage{},
		}
	}

	linecov := newLineCoverage(collection, spec)
	existing, found := collection.linecovs[linecov.Key()]
	if found {
		merged := existing.clone(collection)
		if err := merged.merge(linecov, opts); err != nil {
			return nil, err
		}
		*existing = *merged
		existing.reparent()
		linecov = existing
	} else {
		collection.linecovs[linecov.Key()] = linecov
	}

	if ok {
		collection.DataSources.Update(spec.DataSources)
	} else {
		f.lines[spec.Lineno] = collection
	}
	return linecov, nil
}

// RemoveLine removes a line record. The collection of the line is dropped
// with its last record.
func (f *FileCoverage) RemoveLine(linecov *LineCoverage) {
	collection, ok := f.lines[linecov.Lineno()]
	if !ok {
		return
	}
	delete(collection.linecovs, linecov.Key())
	if len(collection.linecovs) == 0 {
		delete(f.lines, collection.Lineno)
	}
}

// RemoveLineNumber removes all records of a line.
func (f *FileCoverage) RemoveLineNumber(lineno int) {
	delete(f.lines, lineno)
}

// InsertFunction adds a function record or merges it into the record of
// the same name. The demangled name is propagated to the line records of
// the function.
func (f *FileCoverage) InsertFunction(spec FunctionSpec, opts MergeOptions) (*FunctionCoverage, error) {
	fn, err := newFunctionCoverage(f, spec)
	if err != nil {
		return nil, err
	}

	if existing, ok := f.functions[fn.Key()]; ok {
		merged := existing.clone(f)
		if err := merged.merge(fn, opts); err != nil {
			return nil, err
		}
		*existing = *merged
		fn = existing
	} else {
		f.functions[fn.Key()] = fn
	}

	if fn.MangledName != "" {
		for _, collection := range f.lines {
			for _, linecov := range collection.linecovs {
				if linecov.FunctionName == fn.MangledName {
					linecov.DemangledFunctionName = fn.DemangledName
				}
			}
		}
	}
	return fn, nil
}

// RemoveFunction drops a function record. The line records of the
// function are kept.
func (f *FileCoverage) RemoveFunction(fn *FunctionCoverage) {
	delete(f.functions, fn.Key())
}

// FilterForFunction returns a new FileCoverage with only the given function
// and its line records.
func (f *FileCoverage) FilterForFunction(fn *FunctionCoverage) (*FileCoverage, error) {
	if _, ok := f.functions[fn.Key()]; !ok {
		return nil, newDataError(f.Location(), fmt.Sprintf(
			"Function %s must be in filtered file coverage object.", fn.Key(),
		), f.DataSources)
	}
	result := NewFileCoverage(f.Filename, f.DataSources)
	result.functions[fn.Key()] = fn.clone(result)
	for _, linecov := range f.LineCovs() {
		if !fn.IsFunction(linecov.FunctionName) {
			continue
		}
		collection := &LineCoverageCollection{
			parent:      result,
			DataSources: linecov.DataSources.Clone(),
			Lineno:      linecov.Lineno(),
			linecovs:    map[string]*LineCoverage{},
		}
		collection.linecovs[linecov.Key()] = linecov.clone(collection)
		result.lines[collection.Lineno] = collection
	}
	return result, nil
}

// Stats returns all metrics of the file.
func (f *FileCoverage) Stats() SummarizedStats {
	return SummarizedStats{
		Line:      f.LineStat(),
		Branch:    f.BranchStat(),
		Condition: f.ConditionStat(),
		Decision:  f.DecisionStat(),
		Function:  f.FunctionStat(),
		Call:      f.CallStat(),
	}
}

// FunctionStat counts every reportable per-line entry of every function.
func (f *FileCoverage) FunctionStat() CoverageStat {
	var stat CoverageStat
	for _, fn := range f.functions {
		for lineno, excluded := range fn.Excluded {
			if excluded {
				continue
			}
			stat.Total++
			if fn.Count[lineno] > 0 {
				stat.Covered++
			}
		}
	}
	return stat
}

func (f *FileCoverage) LineStat() CoverageStat {
	var stat CoverageStat
	for _, collection := range f.lines {
		for _, linecov := range collection.linecovs {
			if linecov.IsReportable() {
				stat.Total++
				if linecov.IsCovered() {
					stat.Covered++
				}
			}
		}
	}
	return stat
}

func (f *FileCoverage) BranchStat() CoverageStat {
	return f.sumLines(func(l *LineCoverage) CoverageStat { return l.BranchStat() })
}

func (f *FileCoverage) ConditionStat() CoverageStat {
	return f.sumLines(func(l *LineCoverage) CoverageStat { return l.ConditionStat() })
}

func (f *FileCoverage) CallStat() CoverageStat {
	return f.sumLines(func(l *LineCoverage) CoverageStat { return l.CallStat() })
}

func (f *FileCoverage) DecisionStat() DecisionCoverageStat {
	var stat DecisionCoverageStat
	for _, collection := range f.lines {
		for _, linecov := range collection.linecovs {
			if linecov.IsReportable() {
				stat.Add(linecov.DecisionStat())
			}
		}
	}
	return stat
}

func (f *FileCoverage) sumLines(stat func(*LineCoverage) CoverageStat) CoverageStat {
	var result CoverageStat
	for _, collection := range f.lines {
		for _, linecov := range collection.linecovs {
			if linecov.IsReportable() {
				result.Add(stat(linecov))
			}
		}
	}
	return result
}

// Clone returns a deep copy of the file.
func (f *FileCoverage) Clone() *FileCoverage {
	result := &FileCoverage{
		DataSources: f.DataSources.Clone(),
		Filename:    f.Filename,
		lines:       make(map[int]*LineCoverageCollection, len(f.lines)),
		functions:   make(map[string]*FunctionCoverage, len(f.functions)),
	}
	for lineno, collection := range f.lines {
		result.lines[lineno] = collection.clone(result)
	}
	for name, fn := range f.functions {
		result.functions[name] = fn.clone(result)
	}
	return result
}

func (f *FileCoverage) reparent() {
	for _, collection := range f.lines {
		collection.parent = f
		collection.reparent()
	}
	for _, fn := range f.functions {
		fn.parent = f
	}
}

func (f *FileCoverage) merge(other *FileCoverage, opts MergeOptions) error {
	if f.Filename != other.Filename {
		return newDataError(f.Location(), "Filename must be equal", f.DataSources.Union(other.DataSources))
	}
	for lineno, oc := range other.lines {
		if c, ok := f.lines[lineno]; ok {
			if err := c.merge(oc, opts); err != nil {
				return err
			}
		} else {
			f.lines[lineno] = oc.clone(f)
		}
	}
	for name, ofn := range other.functions {
		if fn, ok := f.functions[name]; ok {
			if err := fn.merge(ofn, opts); err != nil {
				return err
			}
		} else {
			f.functions[name] = ofn.clone(f)
		}
	}
	f.DataSources.Update(other.DataSources)
	return nil
}

// Merge merges other into f. On error f is left unchanged.
func (f *FileCoverage) Merge(other *FileCoverage, opts MergeOptions) error {
	merged, err := MergeFile(f, other, opts)
	if err != nil {
		return err
	}
	*f = *merged
	f.reparent()
	return nil
}

// MergeFile combines two files without modifying them. A nil side is the
// identity.
func MergeFile(left, right *FileCoverage, opts MergeOptions) (*FileCoverage, error) {
	if left == nil {
		if right == nil {
			return nil, nil
		}
		return right.Clone(), nil
	}
	if right == nil {
		return left.Clone(), nil
	}
	// Walk the smaller line map.
	target, source := left, right
	if len(left.lines) < len(right.lines) {
		target, source = right, left
	}
	result := target.Clone()
	if err := result.merge(source, opts); err != nil {
		return nil, err
	}
	return result, nil
}
