package model

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CoverageContainer holds the coverage of all files, keyed by normalized
// path.
type CoverageContainer struct {
	files map[string]*FileCoverage
}

func NewCoverageContainer() *CoverageContainer {
	return &CoverageContainer{files: map[string]*FileCoverage{}}
}

func (c *CoverageContainer) Len() int { return len(c.files) }

// File returns the coverage of the given path or nil.
func (c *CoverageContainer) File(filename string) *FileCoverage {
	return c.files[filename]
}

// Filenames returns the paths in lexical order.
func (c *CoverageContainer) Filenames() []string {
	keys := make([]string, 0, len(c.files))
	for k := range c.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Files returns the files ordered by path.
func (c *CoverageContainer) Files() []*FileCoverage {
	result := make([]*FileCoverage, 0, len(c.files))
	for _, name := range c.Filenames() {
		result = append(result, c.files[name])
	}
	return result
}

// InsertFile adds filecov to the container, merging it with the coverage
// already known for the same path. On error the container is unchanged.
func (c *CoverageContainer) InsertFile(filecov *FileCoverage, opts MergeOptions) error {
	existing, ok := c.files[filecov.Filename]
	if !ok {
		c.files[filecov.Filename] = filecov
		return nil
	}
	merged, err := MergeFile(existing, filecov, opts)
	if err != nil {
		return err
	}
	c.files[filecov.Filename] = merged
	return nil
}

// Merge merges all files of other into c. other is not modified. Either
// every file is merged or, on error, c is unchanged.
func (c *CoverageContainer) Merge(other *CoverageContainer, opts MergeOptions) error {
	pending := make(map[string]*FileCoverage, len(other.files))
	for name, ofile := range other.files {
		merged, err := MergeFile(c.files[name], ofile, opts)
		if err != nil {
			return err
		}
		pending[name] = merged
	}
	for name, file := range pending {
		c.files[name] = file
	}
	return nil
}

// MergeContainers combines two containers without modifying them.
func MergeContainers(left, right *CoverageContainer, opts MergeOptions) (*CoverageContainer, error) {
	result := NewCoverageContainer()
	for _, side := range []*CoverageContainer{left, right} {
		if side == nil {
			continue
		}
		if err := result.Merge(side, opts); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Stats sums the metrics of all files.
func (c *CoverageContainer) Stats() SummarizedStats {
	var stats SummarizedStats
	for _, f := range c.files {
		stats.Add(f.Stats())
	}
	return stats
}

// SortKey selects the order of SortCoverage.
type SortKey string

const (
	SortByFilename         SortKey = "filename"
	SortByUncoveredNumber  SortKey = "uncovered-number"
	SortByUncoveredPercent SortKey = "uncovered-percent"
)

// SortMetric selects the statistic used by the uncovered sort keys.
type SortMetric string

const (
	MetricLine     SortMetric = "line"
	MetricBranch   SortMetric = "branch"
	MetricDecision SortMetric = "decision"
)

var digitRuns = regexp.MustCompile(`([0-9]+)`)

// naturalLess compares paths casefolded, with digit runs compared as
// numbers, so "file2" sorts before "file10".
func naturalLess(a, b string) bool {
	ka, kb := naturalKey(a), naturalKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i].isNumber != kb[i].isNumber {
			// Python would refuse to compare these, fall back to text.
			return ka[i].text < kb[i].text
		}
		if ka[i].isNumber {
			if ka[i].number != kb[i].number {
				return ka[i].number < kb[i].number
			}
			continue
		}
		if ka[i].text != kb[i].text {
			return ka[i].text < kb[i].text
		}
	}
	return len(ka) < len(kb)
}

type naturalPart struct {
	text     string
	number   int
	isNumber bool
}

func naturalKey(s string) []naturalPart {
	s = strings.ToLower(s)
	var parts []naturalPart
	last := 0
	for _, loc := range digitRuns.FindAllStringIndex(s, -1) {
		parts = append(parts, naturalPart{text: s[last:loc[0]]})
		digits := s[loc[0]:loc[1]]
		n, err := strconv.Atoi(digits)
		parts = append(parts, naturalPart{text: digits, number: n, isNumber: err == nil})
		last = loc[1]
	}
	parts = append(parts, naturalPart{text: s[last:]})
	return parts
}

// SortCoverage returns the paths of the container in the requested order.
// The uncovered sorts are stable on top of the filename order.
func (c *CoverageContainer) SortCoverage(key SortKey, reverse bool, metric SortMetric) []string {
	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	stat := func(name string) CoverageStat {
		f := c.files[name]
		switch metric {
		case MetricBranch:
			return f.BranchStat()
		case MetricDecision:
			return f.DecisionStat().CoverageStat()
		default:
			return f.LineStat()
		}
	}

	switch key {
	case SortByUncoveredNumber:
		sort.SliceStable(names, func(i, j int) bool {
			si, sj := stat(names[i]), stat(names[j])
			return lessMaybeReverse(float64(si.Total-si.Covered), float64(sj.Total-sj.Covered), reverse)
		})
		return names
	case SortByUncoveredPercent:
		ratio := func(s CoverageStat) float64 {
			if s.Total == 0 {
				return 1.1
			}
			return float64(s.Covered) / float64(s.Total)
		}
		sort.SliceStable(names, func(i, j int) bool {
			return lessMaybeReverse(ratio(stat(names[i])), ratio(stat(names[j])), reverse)
		})
		return names
	default:
		if reverse {
			for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
				names[i], names[j] = names[j], names[i]
			}
		}
		return names
	}
}

func lessMaybeReverse(a, b float64, reverse bool) bool {
	if reverse {
		return a > b
	}
	return a < b
}
