package model

import (
	"fmt"
	"log/slog"
	"slices"
)

// ConditionCoverage is the MC/DC style coverage of one condition of a line.
// Count is the number of condition outcomes, Covered those that were
// observed and the two lists name the outcomes never seen as true or false.
type ConditionCoverage struct {
	parent *LineCoverage

	DataSources     DataSources
	ConditionNo     int
	Count           int
	Covered         int
	NotCoveredTrue  []int
	NotCoveredFalse []int
	Excluded        bool
}

func (c *ConditionCoverage) Location() string {
	return fmt.Sprintf("%s (condition %d)", c.parent.Location(), c.ConditionNo)
}

func (c *ConditionCoverage) IsReportable() bool   { return !c.Excluded }
func (c *ConditionCoverage) IsCovered() bool      { return c.IsReportable() && c.Covered > 0 }
func (c *ConditionCoverage) IsFullyCovered() bool { return c.IsReportable() && c.Covered == c.Count }

func (c *ConditionCoverage) validate() error {
	if c.Count < 0 {
		return newDataError(c.Location(), "count must not be a negative value.", c.DataSources)
	}
	if c.Covered < 0 {
		return newDataError(c.Location(), "covered must not be a negative value.", c.DataSources)
	}
	if c.Count < c.Covered {
		return newDataError(c.Location(), "count must not be less than covered.", c.DataSources)
	}
	if c.Count != c.Covered+len(c.NotCoveredTrue)+len(c.NotCoveredFalse) {
		return newDataError(c.Location(), fmt.Sprintf(
			"The sum of the covered conditions (%d), the uncovered true conditions (%d) and the uncovered false conditions (%d) must be equal to the count of conditions (%d).",
			c.Covered, len(c.NotCoveredTrue), len(c.NotCoveredFalse), c.Count,
		), c.DataSources)
	}
	return nil
}

func (c *ConditionCoverage) clone(parent *LineCoverage) *ConditionCoverage {
	r := *c
	r.parent = parent
	r.DataSources = c.DataSources.Clone()
	r.NotCoveredTrue = slices.Clone(c.NotCoveredTrue)
	r.NotCoveredFalse = slices.Clone(c.NotCoveredFalse)
	return &r
}

func (c *ConditionCoverage) merge(other *ConditionCoverage, opts MergeOptions) error {
	if c.ConditionNo != other.ConditionNo {
		return newMergeError(c.Location(), fmt.Sprintf(
			"The condition number must be equal, got %d and expected %d.", other.ConditionNo, c.ConditionNo,
		), c.DataSources, other.DataSources)
	}

	leftTrue, leftFalse, count := c.NotCoveredTrue, c.NotCoveredFalse, c.Count
	rightTrue, rightFalse := other.NotCoveredTrue, other.NotCoveredFalse
	if c.Count != other.Count {
		if opts.Conditions != ConditionMergeFold {
			return newMergeError(c.Location(), fmt.Sprintf(
				"The number of conditions must be equal, got %d and expected %d.\n"+
					"\tYou can run gcovr with --merge-mode-conditions=MERGE_MODE.\n"+
					"\tThe available values for MERGE_MODE are described in the documentation.",
				other.Count, c.Count,
			), c.DataSources, other.DataSources)
		}
		slog.Warn(fmt.Sprintf("Condition counts are not equal, got %d and expected %d. Reducing to %d.",
			other.Count, c.Count, min(c.Count, other.Count)), "location", c.Location())
		if c.Count > other.Count {
			leftTrue = truncate(leftTrue, len(rightTrue))
			leftFalse = truncate(leftFalse, len(rightFalse))
			count = other.Count
		} else {
			rightTrue = truncate(rightTrue, len(leftTrue))
			rightFalse = truncate(rightFalse, len(leftFalse))
		}
	}

	c.Count = count
	c.NotCoveredTrue = intersectSorted(leftTrue, rightTrue)
	c.NotCoveredFalse = intersectSorted(leftFalse, rightFalse)
	c.Covered = c.Count - len(c.NotCoveredTrue) - len(c.NotCoveredFalse)
	c.Excluded = c.Excluded || other.Excluded
	c.DataSources.Update(other.DataSources)
	return nil
}

// MergeCondition combines two conditions without modifying them. A nil
// side is the identity.
func MergeCondition(left, right *ConditionCoverage, opts MergeOptions) (*ConditionCoverage, error) {
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

func truncate(values []int, n int) []int {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func intersectSorted(left, right []int) []int {
	seen := make(map[int]bool, len(right))
	for _, v := range right {
		seen[v] = true
	}
	result := []int{}
	for _, v := range left {
		if seen[v] && !slices.Contains(result, v) {
			result = append(result, v)
		}
	}
	slices.Sort(result)
	return result
}

func unionSorted(left, right []int) []int {
	result := slices.Clone(left)
	for _, v := range right {
		if !slices.Contains(result, v) {
			result = append(result, v)
		}
	}
	slices.Sort(result)
	return result
}

func sortedCopy(values []int) []int {
	result := append([]int{}, values...)
	slices.Sort(result)
	return result
}
