package model

import (
	"math"
	"strconv"
)

// Percent returns covered/total as a percentage rounded to one decimal.
// It is exactly 100 only when covered == total and is clamped to 99.9
// otherwise, so a report never shows 100% with uncovered items. The boolean
// is false when total is 0, i.e. there is no data.
func Percent(covered, total int) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	if covered == total {
		return 100.0, true
	}
	ratio := float64(covered) / float64(total)
	return math.Min(99.9, roundOneDecimal(ratio*100.0)), true
}

// roundOneDecimal rounds to the nearest value with one decimal, using the
// shortest correctly rounded decimal representation.
func roundOneDecimal(v float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return math.Round(v*10) / 10
	}
	return rounded
}

// CoverageStat is a single coverage metric, e.g. the line coverage of a file.
type CoverageStat struct {
	Covered int
	Total   int
}

// Percent is the centralized Percent of the stat.
func (s CoverageStat) Percent() (float64, bool) {
	return Percent(s.Covered, s.Total)
}

// PercentOr returns the percentage or def if there are no elements.
func (s CoverageStat) PercentOr(def float64) float64 {
	if p, ok := s.Percent(); ok {
		return p
	}
	return def
}

func (s *CoverageStat) Add(other CoverageStat) {
	s.Covered += other.Covered
	s.Total += other.Total
}

// DecisionCoverageStat is a CoverageStat that also counts uncheckable
// decisions.
type DecisionCoverageStat struct {
	Covered     int
	Uncheckable int
	Total       int
}

func (s DecisionCoverageStat) CoverageStat() CoverageStat {
	return CoverageStat{Covered: s.Covered, Total: s.Total}
}

func (s DecisionCoverageStat) PercentOr(def float64) float64 {
	return s.CoverageStat().PercentOr(def)
}

func (s *DecisionCoverageStat) Add(other DecisionCoverageStat) {
	s.Covered += other.Covered
	s.Uncheckable += other.Uncheckable
	s.Total += other.Total
}

// SummarizedStats bundles all metrics of a file or a whole container.
type SummarizedStats struct {
	Line      CoverageStat
	Branch    CoverageStat
	Condition CoverageStat
	Decision  DecisionCoverageStat
	Function  CoverageStat
	Call      CoverageStat
}

func (s *SummarizedStats) Add(other SummarizedStats) {
	s.Line.Add(other.Line)
	s.Branch.Add(other.Branch)
	s.Condition.Add(other.Condition)
	s.Decision.Add(other.Decision)
	s.Function.Add(other.Function)
	s.Call.Add(other.Call)
}
