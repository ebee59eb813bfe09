package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// BranchKey identifies a branch inside a line. Absent parts are -1.
type BranchKey struct {
	BranchNo           int
	SourceBlockID      int
	DestinationBlockID int
}

func (k BranchKey) less(o BranchKey) bool {
	if k.BranchNo != o.BranchNo {
		return k.BranchNo < o.BranchNo
	}
	if k.SourceBlockID != o.SourceBlockID {
		return k.SourceBlockID < o.SourceBlockID
	}
	return k.DestinationBlockID < o.DestinationBlockID
}

// BranchCoverage is the coverage of one branch leaving a line.
type BranchCoverage struct {
	parent *LineCoverage

	DataSources        DataSources
	BranchNo           *int
	Count              int
	Fallthrough        bool
	Throw              bool
	SourceBlockID      *int
	DestinationBlockID *int
	Excluded           bool
}

func (b *BranchCoverage) Key() BranchKey {
	return BranchKey{
		BranchNo:           intOrMinusOne(b.BranchNo),
		SourceBlockID:      intOrMinusOne(b.SourceBlockID),
		DestinationBlockID: intOrMinusOne(b.DestinationBlockID),
	}
}

// Location renders e.g. "file.c:10 (branch 0, source block 2)".
func (b *BranchCoverage) Location() string {
	var info []string
	if b.BranchNo != nil {
		info = append(info, fmt.Sprintf("branch %d", *b.BranchNo))
	}
	if b.SourceBlockID != nil {
		info = append(info, fmt.Sprintf("source block %d", *b.SourceBlockID))
	}
	if b.DestinationBlockID != nil {
		info = append(info, fmt.Sprintf("destination block %d", *b.DestinationBlockID))
	}
	location := b.parent.Location()
	if len(info) > 0 {
		location += " (" + strings.Join(info, ", ") + ")"
	}
	return location
}

func (b *BranchCoverage) IsReportable() bool { return !b.Excluded }
func (b *BranchCoverage) IsCovered() bool    { return b.IsReportable() && b.Count > 0 }

// BlockIDWarning remembers whether the missing block id message was
// already logged. The zero value has not warned yet.
type BlockIDWarning struct {
	warned bool
}

// WarnOnce logs the missing block id message the first time it is called.
func (w *BlockIDWarning) WarnOnce() {
	if w == nil || w.warned {
		return
	}
	w.warned = true
	slog.Info("No block number defined, assuming 0 for all undefined")
}

// SourceBlockIDOr0 returns the source block id and defines it as 0 if the
// gcov data had none. The first defaulted id logs one message per warning
// state.
func (b *BranchCoverage) SourceBlockIDOr0(w *BlockIDWarning) int {
	if b.SourceBlockID == nil {
		b.SourceBlockID = Int(0)
		w.WarnOnce()
	}
	return *b.SourceBlockID
}

func (b *BranchCoverage) validate() error {
	if b.Count < 0 {
		return newDataError(b.Location(), "count must not be a negative value.", b.DataSources)
	}
	return nil
}

func (b *BranchCoverage) clone(parent *LineCoverage) *BranchCoverage {
	c := *b
	c.parent = parent
	c.DataSources = b.DataSources.Clone()
	c.BranchNo = cloneInt(b.BranchNo)
	c.SourceBlockID = cloneInt(b.SourceBlockID)
	c.DestinationBlockID = cloneInt(b.DestinationBlockID)
	return &c
}

func (b *BranchCoverage) merge(other *BranchCoverage, _ MergeOptions) error {
	location := b.Location()
	branchNo, err := mergeOptionalInt(location, "Branch number", b.BranchNo, other.BranchNo, b.DataSources, other.DataSources)
	if err != nil {
		return err
	}
	source, err := mergeOptionalInt(location, "Source block ID", b.SourceBlockID, other.SourceBlockID, b.DataSources, other.DataSources)
	if err != nil {
		return err
	}
	destination, err := mergeOptionalInt(location, "Destination block ID", b.DestinationBlockID, other.DestinationBlockID, b.DataSources, other.DataSources)
	if err != nil {
		return err
	}

	b.Count += other.Count
	b.Fallthrough = b.Fallthrough || other.Fallthrough
	b.Throw = b.Throw || other.Throw
	b.Excluded = b.Excluded || other.Excluded
	b.BranchNo, b.SourceBlockID, b.DestinationBlockID = branchNo, source, destination
	b.DataSources.Update(other.DataSources)
	return nil
}

// MergeBranch combines two branches without modifying them. A nil side is
// the identity.
func MergeBranch(left, right *BranchCoverage, opts MergeOptions) (*BranchCoverage, error) {
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
