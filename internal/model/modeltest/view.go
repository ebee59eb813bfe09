// Package modeltest turns coverage trees into plain values that can be
// compared with cmp.Diff in tests.
package modeltest

import (
	"fmt"
	"sort"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

type ContainerView map[string]FileView

type FileView struct {
	Filename  string
	Lines     []LineView
	Functions []FunctionView
	Sources   []string
}

type LineView struct {
	Lineno     int
	Function   string
	Count      int
	Excluded   bool
	MD5        string
	BlockIDs   []int
	Branches   []BranchView
	Conditions []ConditionView
	Calls      []CallView
	Decision   string
	Sources    []string
}

type BranchView struct {
	BranchNo           string
	SourceBlockID      string
	DestinationBlockID string
	Count              int
	Fallthrough        bool
	Throw              bool
	Excluded           bool
	Sources            []string
}

type ConditionView struct {
	ConditionNo     int
	Count           int
	Covered         int
	NotCoveredTrue  []int
	NotCoveredFalse []int
	Excluded        bool
	Sources         []string
}

type CallView struct {
	CallNo             string
	SourceBlockID      int
	DestinationBlockID string
	Returned           int
	Excluded           bool
	Sources            []string
}

type FunctionView struct {
	Name          string
	MangledName   string
	DemangledName string
	Count         map[int]int
	Blocks        map[int]float64
	Excluded      map[int]bool
	Start         map[int]model.Position
	End           map[int]model.Position
	Sources       []string
}

// Options tweak what the views contain.
type Options struct {
	// WithoutSources drops provenance from the views.
	WithoutSources bool
}

func View(f *model.FileCoverage, opts Options) FileView {
	if f == nil {
		return FileView{}
	}
	v := FileView{Filename: f.Filename, Sources: sources(f.DataSources, opts)}
	for _, l := range f.LineCovs() {
		v.Lines = append(v.Lines, ViewLine(l, opts))
	}
	for _, fn := range f.Functions() {
		v.Functions = append(v.Functions, FunctionView{
			Name:          fn.Name(),
			MangledName:   fn.MangledName,
			DemangledName: fn.DemangledName,
			Count:         fn.Count,
			Blocks:        fn.Blocks,
			Excluded:      fn.Excluded,
			Start:         fn.Start,
			End:           fn.End,
			Sources:       sources(fn.DataSources, opts),
		})
	}
	return v
}

func ViewContainer(c *model.CoverageContainer, opts Options) ContainerView {
	v := ContainerView{}
	for _, f := range c.Files() {
		v[f.Filename] = View(f, opts)
	}
	return v
}

// ViewLine is the view of a single line record.
func ViewLine(l *model.LineCoverage, opts Options) LineView {
	v := LineView{
		Lineno:   l.Lineno(),
		Function: l.FunctionName,
		Count:    l.Count,
		Excluded: l.Excluded,
		MD5:      l.MD5,
		BlockIDs: l.BlockIDs,
		Decision: Decision(l.Decision),
		Sources:  sources(l.DataSources, opts),
	}
	for _, b := range l.Branches() {
		v.Branches = append(v.Branches, BranchView{
			BranchNo:           optional(b.BranchNo),
			SourceBlockID:      optional(b.SourceBlockID),
			DestinationBlockID: optional(b.DestinationBlockID),
			Count:              b.Count,
			Fallthrough:        b.Fallthrough,
			Throw:              b.Throw,
			Excluded:           b.Excluded,
			Sources:            sources(b.DataSources, opts),
		})
	}
	for _, c := range l.Conditions() {
		v.Conditions = append(v.Conditions, ConditionView{
			ConditionNo:     c.ConditionNo,
			Count:           c.Count,
			Covered:         c.Covered,
			NotCoveredTrue:  c.NotCoveredTrue,
			NotCoveredFalse: c.NotCoveredFalse,
			Excluded:        c.Excluded,
			Sources:         sources(c.DataSources, opts),
		})
	}
	for _, c := range l.Calls() {
		v.Calls = append(v.Calls, CallView{
			CallNo:             optional(c.CallNo),
			SourceBlockID:      c.SourceBlockID,
			DestinationBlockID: optional(c.DestinationBlockID),
			Returned:           c.Returned,
			Excluded:           c.Excluded,
			Sources:            sources(c.DataSources, opts),
		})
	}
	return v
}

// Decision renders a decision as e.g. "conditional(5,0)".
func Decision(d model.Decision) string {
	switch d := d.(type) {
	case nil:
		return ""
	case *model.UncheckableDecision:
		return "uncheckable"
	case *model.ConditionalDecision:
		return fmt.Sprintf("conditional(%d,%d)", d.CountTrue, d.CountFalse)
	case *model.SwitchDecision:
		return fmt.Sprintf("switch(%d)", d.Count)
	default:
		return fmt.Sprintf("%T", d)
	}
}

func optional(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func sources(ds model.DataSources, opts Options) []string {
	if opts.WithoutSources {
		return nil
	}
	s := ds.Strings()
	sort.Strings(s)
	return s
}
