package model

// Decision is the decision coverage of a line. It is one of
// *UncheckableDecision, *ConditionalDecision or *SwitchDecision.
type Decision interface {
	Sources() DataSources
	IsCovered() bool
	Stat() DecisionCoverageStat
	cloneDecision() Decision
}

// UncheckableDecision marks a decision whose outcome could not be derived
// from the branch counts.
type UncheckableDecision struct {
	DataSources DataSources
}

// ConditionalDecision is an if/else or loop decision.
type ConditionalDecision struct {
	DataSources DataSources
	CountTrue   int
	CountFalse  int
}

// SwitchDecision is one case label of a switch statement.
type SwitchDecision struct {
	DataSources DataSources
	Count       int
}

func (d *UncheckableDecision) Sources() DataSources { return d.DataSources }
func (d *ConditionalDecision) Sources() DataSources { return d.DataSources }
func (d *SwitchDecision) Sources() DataSources      { return d.DataSources }

func (d *UncheckableDecision) IsCovered() bool { return true }
func (d *ConditionalDecision) IsCovered() bool { return d.CountTrue != 0 && d.CountFalse != 0 }
func (d *SwitchDecision) IsCovered() bool      { return d.Count != 0 }

func (d *UncheckableDecision) Stat() DecisionCoverageStat {
	return DecisionCoverageStat{Covered: 0, Uncheckable: 1, Total: 2}
}

func (d *ConditionalDecision) Stat() DecisionCoverageStat {
	covered := 0
	if d.CountTrue > 0 {
		covered++
	}
	if d.CountFalse > 0 {
		covered++
	}
	return DecisionCoverageStat{Covered: covered, Total: 2}
}

func (d *SwitchDecision) Stat() DecisionCoverageStat {
	covered := 0
	if d.Count > 0 {
		covered = 1
	}
	return DecisionCoverageStat{Covered: covered, Total: 1}
}

func (d *UncheckableDecision) cloneDecision() Decision {
	return &UncheckableDecision{DataSources: d.DataSources.Clone()}
}

func (d *ConditionalDecision) cloneDecision() Decision {
	return &ConditionalDecision{DataSources: d.DataSources.Clone(), CountTrue: d.CountTrue, CountFalse: d.CountFalse}
}

func (d *SwitchDecision) cloneDecision() Decision {
	return &SwitchDecision{DataSources: d.DataSources.Clone(), Count: d.Count}
}

// MergeDecision combines two decisions without modifying them. A nil side
// is the identity, equal kinds add their counters and different kinds
// degrade to an uncheckable decision.
func MergeDecision(left, right Decision) Decision {
	if left == nil {
		if right == nil {
			return nil
		}
		return right.cloneDecision()
	}
	if right == nil {
		return left.cloneDecision()
	}

	sources := left.Sources().Union(right.Sources())
	switch l := left.(type) {
	case *ConditionalDecision:
		if r, ok := right.(*ConditionalDecision); ok {
			return &ConditionalDecision{DataSources: sources, CountTrue: l.CountTrue + r.CountTrue, CountFalse: l.CountFalse + r.CountFalse}
		}
	case *SwitchDecision:
		if r, ok := right.(*SwitchDecision); ok {
			return &SwitchDecision{DataSources: sources, Count: l.Count + r.Count}
		}
	}
	return &UncheckableDecision{DataSources: sources}
}
