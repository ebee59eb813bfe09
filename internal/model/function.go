package model

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a (line, column) pair in a source file.
type Position struct {
	Line   int
	Column int
}

func (p Position) less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// FunctionSpec holds the values of a function coverage record to insert
// into a FileCoverage.
type FunctionSpec struct {
	DataSources   DataSources
	MangledName   string
	DemangledName string
	Lineno        int
	Count         int
	Blocks        float64
	Start         *Position
	End           *Position
	Excluded      bool
}

// FunctionCoverage is the coverage of one function. The counters are kept
// per line so functions reported on different lines can be merged
// according to the FunctionMergeMode.
type FunctionCoverage struct {
	parent *FileCoverage

	DataSources   DataSources
	MangledName   string
	DemangledName string
	Count         map[int]int
	Blocks        map[int]float64
	Excluded      map[int]bool
	// Start and End are nil when the positions are unknown.
	Start map[int]Position
	End   map[int]Position
}

func newFunctionCoverage(parent *FileCoverage, spec FunctionSpec) (*FunctionCoverage, error) {
	f := &FunctionCoverage{
		parent:        parent,
		DataSources:   spec.DataSources.Clone(),
		MangledName:   spec.MangledName,
		DemangledName: spec.DemangledName,
		Count:         map[int]int{spec.Lineno: spec.Count},
		Blocks:        map[int]float64{spec.Lineno: spec.Blocks},
		Excluded:      map[int]bool{spec.Lineno: spec.Excluded},
	}
	if spec.Start != nil {
		f.Start = map[int]Position{spec.Lineno: *spec.Start}
	}
	if spec.End != nil {
		f.End = map[int]Position{spec.Lineno: *spec.End}
	}

	location := fmt.Sprintf("%s:%d", parent.Location(), spec.Lineno)
	// gcov reports demangled names in the name field if called with -m.
	if strings.Contains(spec.MangledName, "(") {
		if spec.DemangledName != "" {
			return nil, newDataError(location, fmt.Sprintf(
				"Got %s as 'mangled_name', in this case 'demangled_name' must be None.", spec.MangledName,
			), f.DataSources)
		}
		f.MangledName, f.DemangledName = "", spec.MangledName
	}
	if f.MangledName == "" && f.DemangledName == "" {
		return nil, newDataError(location, "Either mangled or demangled function name must be set.", f.DataSources)
	}
	if spec.Lineno < 0 {
		return nil, newDataError(location, "lineno must not be a negative value.", f.DataSources)
	}
	if spec.Count < 0 {
		return nil, newDataError(location, "count must not be a negative value.", f.DataSources)
	}
	return f, nil
}

// Name is the demangled name if present, else the mangled name.
func (f *FunctionCoverage) Name() string {
	if f.DemangledName != "" {
		return f.DemangledName
	}
	return f.MangledName
}

// Key is the name used in the function map of the file.
func (f *FunctionCoverage) Key() string { return f.Name() }

// IsFunction reports whether name is the mangled or demangled name.
func (f *FunctionCoverage) IsFunction(name string) bool {
	return name != "" && (name == f.MangledName || name == f.DemangledName)
}

// Lines returns the line numbers of the function in ascending order.
func (f *FunctionCoverage) Lines() []int {
	lines := make([]int, 0, len(f.Count))
	for lineno := range f.Count {
		lines = append(lines, lineno)
	}
	sort.Ints(lines)
	return lines
}

// Location renders "file.c:5" or "file.c:5 (7, 9)" for several lines.
func (f *FunctionCoverage) Location() string {
	lines := f.Lines()
	if len(lines) == 0 {
		return f.parent.Location()
	}
	s := fmt.Sprint(lines[0])
	if len(lines) > 1 {
		rest := make([]string, 0, len(lines)-1)
		for _, lineno := range lines[1:] {
			rest = append(rest, fmt.Sprint(lineno))
		}
		s += " (" + strings.Join(rest, ", ") + ")"
	}
	return fmt.Sprintf("%s:%s", f.parent.Location(), s)
}

// NameAndSignature splits the demangled name at the parenthesis that opens
// the parameter list, e.g. "ns::f<int(*)()>(int)" into "ns::f<int(*)()>"
// and "(int)".
func (f *FunctionCoverage) NameAndSignature() (string, string, error) {
	if f.DemangledName == "" {
		return f.Name(), "", nil
	}
	if !strings.Contains(f.DemangledName, "(") {
		return f.DemangledName, "", nil
	}

	parts := strings.Split(f.DemangledName, "(")
	open, closed := 0, 0
	signature := ""
	for i := len(parts) - 1; i >= 0; i-- {
		signature = "(" + parts[i] + signature
		open++
		closed += strings.Count(parts[i], ")")
		if open == closed {
			return f.DemangledName[:len(f.DemangledName)-len(signature)], signature, nil
		}
	}
	return "", "", newDataError(f.Location(), fmt.Sprintf(
		"Can't split function %q into name and signature.", f.DemangledName,
	), f.DataSources)
}

func (f *FunctionCoverage) clone(parent *FileCoverage) *FunctionCoverage {
	r := *f
	r.parent = parent
	r.DataSources = f.DataSources.Clone()
	r.Count = cloneMap(f.Count)
	r.Blocks = cloneMap(f.Blocks)
	r.Excluded = cloneMap(f.Excluded)
	r.Start = cloneMap(f.Start)
	r.End = cloneMap(f.End)
	return &r
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	r := make(map[K]V, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}

func (f *FunctionCoverage) merge(other *FunctionCoverage, opts MergeOptions) error {
	location := f.Location()
	demangled, err := mergeOptionalString(location, "Function demangled name", f.DemangledName, other.DemangledName, f.DataSources, other.DataSources)
	if err != nil {
		return err
	}
	mangled := f.MangledName
	if demangled != "" {
		// Constructors and destructors have several mangled names for the
		// same demangled one, keep the smallest.
		if mangled == "" || (other.MangledName != "" && other.MangledName < mangled) {
			mangled = other.MangledName
		}
	} else {
		mangled, err = mergeOptionalString(location, "Function mangled name", f.MangledName, other.MangledName, f.DataSources, other.DataSources)
		if err != nil {
			return err
		}
	}

	if !opts.ignoreFunctionLineno() && !sameKeys(f.Count, other.Count) {
		lines := map[int]bool{}
		for lineno := range f.Count {
			lines[lineno] = true
		}
		for lineno := range other.Count {
			lines[lineno] = true
		}
		sorted := make([]string, 0, len(lines))
		for _, lineno := range sortedKeys(lines) {
			sorted = append(sorted, fmt.Sprint(lineno))
		}
		return newMergeError(location, fmt.Sprintf(
			"Got function %s on multiple lines: %s.\n"+
				"\tYou can run gcovr with --merge-mode-functions=MERGE_MODE.\n"+
				"\tThe available values for MERGE_MODE are described in the documentation.",
			f.Name(), strings.Join(sorted, ", "),
		), f.DataSources, other.DataSources)
	}

	f.DemangledName, f.MangledName = demangled, mangled
	f.DataSources.Update(other.DataSources)

	if opts.Functions == FunctionMergeSeparate || opts.Functions == FunctionMergeStrict {
		f.mergeSeparate(other)
		return nil
	}
	f.mergeOntoOneLine(other, opts.Functions)
	return nil
}

// mergeSeparate keeps one counter per line.
func (f *FunctionCoverage) mergeSeparate(other *FunctionCoverage) {
	for lineno, count := range other.Count {
		f.Count[lineno] += count
	}
	for lineno, blocks := range other.Blocks {
		if current, ok := f.Blocks[lineno]; !ok || current < blocks {
			f.Blocks[lineno] = blocks
		}
	}
	for lineno, excluded := range other.Excluded {
		f.Excluded[lineno] = f.Excluded[lineno] || excluded
	}
	if other.Start != nil {
		if f.Start == nil {
			f.Start = map[int]Position{}
		}
		for lineno, pos := range other.Start {
			if current, ok := f.Start[lineno]; !ok || pos.less(current) {
				f.Start[lineno] = pos
			}
		}
	}
	if other.End != nil {
		if f.End == nil {
			f.End = map[int]Position{}
		}
		for lineno, pos := range other.End {
			if current, ok := f.End[lineno]; !ok || current.less(pos) {
				f.End[lineno] = pos
			}
		}
	}
}

// mergeOntoOneLine collapses all counters of both sides on a single line.
func (f *FunctionCoverage) mergeOntoOneLine(other *FunctionCoverage, mode FunctionMergeMode) {
	lines := append(f.Lines(), other.Lines()...)
	sort.Ints(lines)

	rightLineno := other.Lines()[0]
	lineno := rightLineno
	if _, ok := f.Count[rightLineno]; !ok {
		switch mode {
		case FunctionMergeUseLineZero:
			lineno = 0
		case FunctionMergeUseLineMin:
			lineno = lines[0]
		case FunctionMergeUseLineMax:
			lineno = lines[len(lines)-1]
		}
	}

	count := 0
	blocks := 0.0
	excluded := false
	for _, side := range []*FunctionCoverage{f, other} {
		for _, c := range side.Count {
			count += c
		}
		for _, b := range side.Blocks {
			blocks = max(blocks, b)
		}
		for _, e := range side.Excluded {
			excluded = excluded || e
		}
	}

	start := collapsePositions(f.Start, other.Start, lineno, Position.less)
	end := collapsePositions(f.End, other.End, lineno, func(a, b Position) bool { return b.less(a) })

	f.Count = map[int]int{lineno: count}
	f.Blocks = map[int]float64{lineno: blocks}
	f.Excluded = map[int]bool{lineno: excluded}
	f.Start, f.End = start, end
}

// collapsePositions picks the best position of both sides and stores it
// on lineno. The result is nil if neither side knows its positions.
func collapsePositions(left, right map[int]Position, lineno int, better func(a, b Position) bool) map[int]Position {
	var result Position
	found := false
	for _, m := range []map[int]Position{left, right} {
		for _, pos := range m {
			if !found || better(pos, result) {
				result, found = pos, true
			}
		}
	}
	if !found {
		return nil
	}
	return map[int]Position{lineno: result}
}

// MergeFunction combines two function records without modifying them. A
// nil side is the identity.
func MergeFunction(left, right *FunctionCoverage, opts MergeOptions) (*FunctionCoverage, error) {
	if left == nil {
		if right == nil {
			return nil, nil
		}
		return right.clone(right.parent), nil
	}
	if right == nil {
		return left.clone(left.parent), nil
	}
	result := left.clone(left.parent)
	if err := result.merge(right, opts); err != nil {
		return nil, err
	}
	return result, nil
}

func sameKeys[V any](left, right map[int]V) bool {
	if len(left) != len(right) {
		return false
	}
	for k := range left {
		if _, ok := right[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
