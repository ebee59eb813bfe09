package model

import (
	"fmt"
	"slices"
	"sort"
)

// LineSpec holds the values of a line coverage record to insert into a
// FileCoverage.
type LineSpec struct {
	DataSources  DataSources
	Lineno       int
	Count        int
	FunctionName string
	BlockIDs     []int
	MD5          string
	Excluded     bool
}

// LineCoverage is the coverage of one source line attributed to one
// function. Several records can exist for the same line number, e.g. for
// inlined code or template instantiations.
type LineCoverage struct {
	parent *LineCoverageCollection

	DataSources           DataSources
	Count                 int
	FunctionName          string
	DemangledFunctionName string
	BlockIDs              []int
	MD5                   string
	Excluded              bool
	Decision              Decision

	branches   map[BranchKey]*BranchCoverage
	conditions map[int]*ConditionCoverage
	calls      map[CallKey]*CallCoverage
}

func newLineCoverage(parent *LineCoverageCollection, spec LineSpec) *LineCoverage {
	return &LineCoverage{
		parent:       parent,
		DataSources:  spec.DataSources.Clone(),
		Count:        spec.Count,
		FunctionName: spec.FunctionName,
		BlockIDs:     slices.Clone(spec.BlockIDs),
		MD5:          spec.MD5,
		Excluded:     spec.Excluded,
		branches:     map[BranchKey]*BranchCoverage{},
		conditions:   map[int]*ConditionCoverage{},
		calls:        map[CallKey]*CallCoverage{},
	}
}

// Key is the function name, "" if the line has none.
func (l *LineCoverage) Key() string { return l.FunctionName }

func (l *LineCoverage) Lineno() int {
	if l == nil || l.parent == nil {
		return 0
	}
	return l.parent.Lineno
}

func (l *LineCoverage) Location() string {
	if l == nil {
		return ""
	}
	return l.parent.Location()
}

// ReportFunctionName is the demangled function name if known.
func (l *LineCoverage) ReportFunctionName() string {
	if l.DemangledFunctionName != "" {
		return l.DemangledFunctionName
	}
	return l.FunctionName
}

func (l *LineCoverage) IsReportable() bool { return !l.Excluded }
func (l *LineCoverage) IsCovered() bool    { return l.IsReportable() && l.Count > 0 }
func (l *LineCoverage) IsUncovered() bool  { return l.IsReportable() && l.Count == 0 }

// Branches returns the branches ordered by key, absent key parts first.
func (l *LineCoverage) Branches() []*BranchCoverage {
	result := make([]*BranchCoverage, 0, len(l.branches))
	for _, b := range l.branches {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key().less(result[j].Key()) })
	return result
}

// Conditions returns the conditions ordered by condition number.
func (l *LineCoverage) Conditions() []*ConditionCoverage {
	result := make([]*ConditionCoverage, 0, len(l.conditions))
	for _, c := range l.conditions {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ConditionNo != result[j].ConditionNo {
			return result[i].ConditionNo < result[j].ConditionNo
		}
		return result[i].Count < result[j].Count
	})
	return result
}

// Calls returns the calls ordered by key, absent key parts first.
func (l *LineCoverage) Calls() []*CallCoverage {
	result := make([]*CallCoverage, 0, len(l.calls))
	for _, c := range l.calls {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key().less(result[j].Key()) })
	return result
}

// InsertBranch adds a branch to the line or merges it into the branch
// with the same key.
func (l *LineCoverage) InsertBranch(b *BranchCoverage) (*BranchCoverage, error) {
	b.parent = l
	b.DataSources = b.DataSources.Clone()
	if err := b.validate(); err != nil {
		return nil, err
	}
	key := b.Key()
	existing, ok := l.branches[key]
	if !ok {
		l.branches[key] = b
		return b, nil
	}
	merged := existing.clone(l)
	if err := merged.merge(b, DefaultMergeOptions); err != nil {
		return nil, err
	}
	*existing = *merged
	return existing, nil
}

func (l *LineCoverage) RemoveBranch(b *BranchCoverage) {
	delete(l.branches, b.Key())
}

func (l *LineCoverage) RemoveAllBranches() {
	clear(l.branches)
}

// InsertCondition adds a condition to the line or merges it into the
// condition with the same number.
func (l *LineCoverage) InsertCondition(c *ConditionCoverage) (*ConditionCoverage, error) {
	c.parent = l
	c.DataSources = c.DataSources.Clone()
	c.NotCoveredTrue = sortedCopy(c.NotCoveredTrue)
	c.NotCoveredFalse = sortedCopy(c.NotCoveredFalse)
	if err := c.validate(); err != nil {
		return nil, err
	}
	existing, ok := l.conditions[c.ConditionNo]
	if !ok {
		l.conditions[c.ConditionNo] = c
		return c, nil
	}
	merged := existing.clone(l)
	if err := merged.merge(c, DefaultMergeOptions); err != nil {
		return nil, err
	}
	*existing = *merged
	return existing, nil
}

// InsertCall adds a call to the line or merges it into the call with the
// same key.
func (l *LineCoverage) InsertCall(c *CallCoverage) (*CallCoverage, error) {
	c.parent = l
	c.DataSources = c.DataSources.Clone()
	if err := c.validate(); err != nil {
		return nil, err
	}
	key := c.Key()
	existing, ok := l.calls[key]
	if !ok {
		l.calls[key] = c
		return c, nil
	}
	merged := existing.clone(l)
	if err := merged.merge(c, DefaultMergeOptions); err != nil {
		return nil, err
	}
	*existing = *merged
	return existing, nil
}

func (l *LineCoverage) RemoveAllCalls() {
	clear(l.calls)
}

// InsertDecision merges d into the decision of the line.
func (l *LineCoverage) InsertDecision(d Decision) {
	l.Decision = MergeDecision(l.Decision, d)
}

func (l *LineCoverage) HasReportableBranches() bool {
	for _, b := range l.branches {
		if b.IsReportable() {
			return true
		}
	}
	return false
}

func (l *LineCoverage) HasUncoveredBranch() bool {
	for _, b := range l.branches {
		if !b.IsCovered() && !b.Excluded {
			return true
		}
	}
	return false
}

func (l *LineCoverage) HasReportableConditions() bool {
	for _, c := range l.conditions {
		if c.IsReportable() {
			return true
		}
	}
	return false
}

func (l *LineCoverage) HasUncoveredConditions() bool {
	for _, c := range l.conditions {
		if !c.IsCovered() && !c.Excluded {
			return true
		}
	}
	return false
}

func (l *LineCoverage) HasUncoveredDecision() bool {
	return l.Decision != nil && !l.Decision.IsCovered()
}

func (l *LineCoverage) HasReportableCalls() bool {
	for _, c := range l.calls {
		if c.IsReportable() {
			return true
		}
	}
	return false
}

// Exclude removes the line and everything on it from the statistics.
func (l *LineCoverage) Exclude() {
	l.Excluded = true
	for _, b := range l.branches {
		b.Excluded = true
	}
	for _, c := range l.conditions {
		c.Excluded = true
	}
	for _, c := range l.calls {
		c.Excluded = true
	}
	l.Decision = nil
}

func (l *LineCoverage) BranchStat() CoverageStat {
	var stat CoverageStat
	for _, b := range l.branches {
		if b.IsReportable() {
			stat.Total++
			if b.IsCovered() {
				stat.Covered++
			}
		}
	}
	return stat
}

func (l *LineCoverage) ConditionStat() CoverageStat {
	var stat CoverageStat
	for _, c := range l.conditions {
		if c.IsReportable() {
			stat.Total += c.Count
			stat.Covered += c.Covered
		}
	}
	return stat
}

func (l *LineCoverage) DecisionStat() DecisionCoverageStat {
	if l.Decision == nil {
		return DecisionCoverageStat{}
	}
	return l.Decision.Stat()
}

func (l *LineCoverage) CallStat() CoverageStat {
	var stat CoverageStat
	for _, c := range l.calls {
		if c.IsReportable() {
			stat.Total++
			if c.IsCovered() {
				stat.Covered++
			}
		}
	}
	return stat
}

func (l *LineCoverage) clone(parent *LineCoverageCollection) *LineCoverage {
	c := *l
	c.parent = parent
	c.DataSources = l.DataSources.Clone()
	c.BlockIDs = slices.Clone(l.BlockIDs)
	if l.Decision != nil {
		c.Decision = l.Decision.cloneDecision()
	}
	c.branches = make(map[BranchKey]*BranchCoverage, len(l.branches))
	for k, b := range l.branches {
		c.branches[k] = b.clone(&c)
	}
	c.conditions = make(map[int]*ConditionCoverage, len(l.conditions))
	for k, cond := range l.conditions {
		c.conditions[k] = cond.clone(&c)
	}
	c.calls = make(map[CallKey]*CallCoverage, len(l.calls))
	for k, call := range l.calls {
		c.calls[k] = call.clone(&c)
	}
	return &c
}

// reparent points the children back to l after l was overwritten by a copy.
func (l *LineCoverage) reparent() {
	for _, b := range l.branches {
		b.parent = l
	}
	for _, c := range l.conditions {
		c.parent = l
	}
	for _, c := range l.calls {
		c.parent = l
	}
}

func (l *LineCoverage) merge(other *LineCoverage, opts MergeOptions) error {
	if l.Lineno() != other.Lineno() {
		return newMergeError(l.Location(), "Line number must be equal.", l.DataSources, other.DataSources)
	}
	if l.FunctionName != other.FunctionName {
		return newMergeError(l.Location(), "Function name must be equal.", l.DataSources, other.DataSources)
	}
	md5, err := mergeOptionalString(l.Location(), "MD5 checksum", l.MD5, other.MD5, l.DataSources, other.DataSources)
	if err != nil {
		return err
	}

	for k, ob := range other.branches {
		if b, ok := l.branches[k]; ok {
			if err := b.merge(ob, opts); err != nil {
				return err
			}
		} else {
			l.branches[k] = ob.clone(l)
		}
	}
	for k, oc := range other.conditions {
		if c, ok := l.conditions[k]; ok {
			if err := c.merge(oc, opts); err != nil {
				return err
			}
		} else {
			l.conditions[k] = oc.clone(l)
		}
	}
	for k, oc := range other.calls {
		if c, ok := l.calls[k]; ok {
			if err := c.merge(oc, opts); err != nil {
				return err
			}
		} else {
			l.calls[k] = oc.clone(l)
		}
	}

	switch {
	case l.BlockIDs == nil:
		l.BlockIDs = slices.Clone(other.BlockIDs)
	case other.BlockIDs != nil:
		l.BlockIDs = unionSorted(l.BlockIDs, other.BlockIDs)
	}
	if l.DemangledFunctionName == "" {
		l.DemangledFunctionName = other.DemangledFunctionName
	}
	l.MD5 = md5
	l.Count += other.Count
	l.Excluded = l.Excluded || other.Excluded
	l.Decision = MergeDecision(l.Decision, other.Decision)
	l.DataSources.Update(other.DataSources)
	return nil
}

// MergeLine combines two line records without modifying them. A nil side
// is the identity.
func MergeLine(left, right *LineCoverage, opts MergeOptions) (*LineCoverage, error) {
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

// LineCoverageCollection groups all records of one line number.
type LineCoverageCollection struct {
	parent *FileCoverage

	DataSources DataSources
	Lineno      int

	linecovs map[string]*LineCoverage
}

func (c *LineCoverageCollection) Location() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.parent.Location(), c.Lineno)
}

// LineCovs returns the records ordered by function name.
func (c *LineCoverageCollection) LineCovs() []*LineCoverage {
	keys := make([]string, 0, len(c.linecovs))
	for k := range c.linecovs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]*LineCoverage, 0, len(keys))
	for _, k := range keys {
		result = append(result, c.linecovs[k])
	}
	return result
}

func (c *LineCoverageCollection) Len() int { return len(c.linecovs) }

// Get returns the record of the given function, "" for none.
func (c *LineCoverageCollection) Get(functionName string) *LineCoverage {
	return c.linecovs[functionName]
}

// Count is the sum of the counts of all records.
func (c *LineCoverageCollection) Count() int {
	total := 0
	for _, l := range c.linecovs {
		total += l.Count
	}
	return total
}

func (c *LineCoverageCollection) IsExcluded() bool {
	for _, l := range c.linecovs {
		if !l.Excluded {
			return false
		}
	}
	return true
}

func (c *LineCoverageCollection) IsReportable() bool { return !c.IsExcluded() }
func (c *LineCoverageCollection) IsCovered() bool    { return c.IsReportable() && c.Count() > 0 }
func (c *LineCoverageCollection) IsUncovered() bool  { return c.IsReportable() && c.Count() == 0 }

func (c *LineCoverageCollection) Exclude() {
	for _, l := range c.linecovs {
		l.Exclude()
	}
}

func (c *LineCoverageCollection) DecisionStat() DecisionCoverageStat {
	var stat DecisionCoverageStat
	for _, l := range c.linecovs {
		stat.Add(l.DecisionStat())
	}
	return stat
}

func (c *LineCoverageCollection) clone(parent *FileCoverage) *LineCoverageCollection {
	r := *c
	r.parent = parent
	r.DataSources = c.DataSources.Clone()
	r.linecovs = make(map[string]*LineCoverage, len(c.linecovs))
	for k, l := range c.linecovs {
		r.linecovs[k] = l.clone(&r)
	}
	return &r
}

func (c *LineCoverageCollection) reparent() {
	for _, l := range c.linecovs {
		l.parent = c
		l.reparent()
	}
}

func (c *LineCoverageCollection) merge(other *LineCoverageCollection, opts MergeOptions) error {
	for k, ol := range other.linecovs {
		if l, ok := c.linecovs[k]; ok {
			if err := l.merge(ol, opts); err != nil {
				return err
			}
		} else {
			c.linecovs[k] = ol.clone(c)
		}
	}
	c.DataSources.Update(other.DataSources)
	return nil
}
