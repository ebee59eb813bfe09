package model

import "fmt"

// CallKey identifies a call inside a line. Absent parts are -1.
type CallKey struct {
	CallNo             int
	SourceBlockID      int
	DestinationBlockID int
}

func (k CallKey) less(o CallKey) bool {
	if k.CallNo != o.CallNo {
		return k.CallNo < o.CallNo
	}
	if k.SourceBlockID != o.SourceBlockID {
		return k.SourceBlockID < o.SourceBlockID
	}
	return k.DestinationBlockID < o.DestinationBlockID
}

// CallCoverage is the coverage of a call made from a line. Exactly one of
// CallNo (text format) and DestinationBlockID (JSON format) is set.
type CallCoverage struct {
	parent *LineCoverage

	DataSources        DataSources
	CallNo             *int
	SourceBlockID      int
	DestinationBlockID *int
	Returned           int
	Excluded           bool
}

func (c *CallCoverage) Key() CallKey {
	return CallKey{
		CallNo:             intOrMinusOne(c.CallNo),
		SourceBlockID:      c.SourceBlockID,
		DestinationBlockID: intOrMinusOne(c.DestinationBlockID),
	}
}

// Location renders "file.c:10 (call 1)" or "file.c:10 (call 1->2)" when the
// call is identified by its blocks.
func (c *CallCoverage) Location() string {
	if c.CallNo == nil {
		return fmt.Sprintf("%s (call %d->%s)", c.parent.Location(), c.SourceBlockID, optionalIntString(c.DestinationBlockID))
	}
	return fmt.Sprintf("%s (call %d)", c.parent.Location(), *c.CallNo)
}

func (c *CallCoverage) IsReportable() bool { return !c.Excluded }
func (c *CallCoverage) IsCovered() bool    { return c.IsReportable() && c.Returned != 0 }

func (c *CallCoverage) validate() error {
	if c.CallNo == nil && c.DestinationBlockID == nil {
		return newDataError(c.parent.Location(), "Either callno or destination_block_id must be set.", c.DataSources)
	}
	if c.CallNo != nil && c.DestinationBlockID != nil {
		return newDataError(c.parent.Location(), "One of callno or destination_block_id must be set.", c.DataSources)
	}
	if c.Returned < 0 {
		return newDataError(c.Location(), "returned must not be a negative value.", c.DataSources)
	}
	return nil
}

func (c *CallCoverage) clone(parent *LineCoverage) *CallCoverage {
	r := *c
	r.parent = parent
	r.DataSources = c.DataSources.Clone()
	r.CallNo = cloneInt(c.CallNo)
	r.DestinationBlockID = cloneInt(c.DestinationBlockID)
	return &r
}

func (c *CallCoverage) merge(other *CallCoverage, _ MergeOptions) error {
	location := c.Location()
	callNo, err := mergeOptionalInt(location, "Call number", c.CallNo, other.CallNo, c.DataSources, other.DataSources)
	if err != nil {
		return err
	}
	if c.SourceBlockID != other.SourceBlockID {
		return newMergeError(location, fmt.Sprintf("Source block ID must be equal, got %d and %d.", c.SourceBlockID, other.SourceBlockID), c.DataSources, other.DataSources)
	}
	destination, err := mergeOptionalInt(location, "Destination block ID", c.DestinationBlockID, other.DestinationBlockID, c.DataSources, other.DataSources)
	if err != nil {
		return err
	}

	c.CallNo, c.DestinationBlockID = callNo, destination
	c.Returned += other.Returned
	c.Excluded = c.Excluded || other.Excluded
	c.DataSources.Update(other.DataSources)
	return nil
}

// MergeCall combines two calls without modifying them. A nil side is the
// identity.
func MergeCall(left, right *CallCoverage, opts MergeOptions) (*CallCoverage, error) {
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

func optionalIntString(p *int) string {
	if p == nil {
		return "None"
	}
	return fmt.Sprint(*p)
}
