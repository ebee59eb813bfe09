// Package hits validates execution counts read from gcov data. gcov has
// been known to report negative or absurdly large counts, see
// https://gcc.gnu.org/bugzilla/show_bug.cgi?id=68080.
package hits

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// SuspiciousCounter is the default threshold above which a count is
// considered a gcov bug.
const SuspiciousCounter = 1 << 32

// Ignore policy values accepted by --gcov-ignore-parse-errors.
const (
	IgnoreAll                       = "all"
	IgnoreNegativeWarn              = "negative_hits.warn"
	IgnoreNegativeWarnOncePerFile   = "negative_hits.warn_once_per_file"
	IgnoreSuspiciousWarn            = "suspicious_hits.warn"
	IgnoreSuspiciousWarnOncePerFile = "suspicious_hits.warn_once_per_file"
)

var knownIgnores = []string{
	IgnoreAll,
	IgnoreNegativeWarn,
	IgnoreNegativeWarnOncePerFile,
	IgnoreSuspiciousWarn,
	IgnoreSuspiciousWarnOncePerFile,
}

// IgnoreSet is the set of parse errors to downgrade to warnings.
type IgnoreSet map[string]bool

// ParseIgnoreSet validates the given policy values.
func ParseIgnoreSet(values []string) (IgnoreSet, error) {
	set := IgnoreSet{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		known := false
		for _, k := range knownIgnores {
			if v == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown value %q for --gcov-ignore-parse-errors, allowed are %s", v, strings.Join(knownIgnores, ", "))
		}
		set[v] = true
	}
	return set, nil
}

func (s IgnoreSet) Has(value string) bool { return s[value] }

// Values returns the policy values in lexical order.
func (s IgnoreSet) Values() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (s IgnoreSet) any(values ...string) bool {
	for _, v := range values {
		if s[v] {
			return true
		}
	}
	return false
}

// NegativeHitsError is returned for a negative count that is not ignored.
type NegativeHitsError struct {
	Line string
}

func (e *NegativeHitsError) Error() string {
	return fmt.Sprintf("Got negative hit value in gcov line '%s' caused by a\n"+
		"bug in gcov tool, see\n"+
		"https://gcc.gnu.org/bugzilla/show_bug.cgi?id=68080. Use option\n"+
		"--gcov-ignore-parse-errors with a value of negative_hits.warn,\n"+
		"or negative_hits.warn_once_per_file.", e.Line)
}

// SuspiciousHitsError is returned for a count at or above the threshold
// that is not ignored.
type SuspiciousHitsError struct {
	Line string
}

func (e *SuspiciousHitsError) Error() string {
	return fmt.Sprintf("Got suspicious hit value in gcov line '%s' caused by a\n"+
		"bug in gcov tool, see\n"+
		"https://gcc.gnu.org/bugzilla/show_bug.cgi?id=68080. Use option\n"+
		"--gcov-ignore-parse-errors with a value of suspicious_hits.warn,\n"+
		"or suspicious_hits.warn_once_per_file or change the threshold\n"+
		"for the detection with option --gcov-suspicious-hits-threshold.", e.Line)
}

// Checker validates the counts of one coverage unit. It counts the ignored
// hits of the warn-once modes, so a new Checker is needed per unit.
type Checker struct {
	ignore    IgnoreSet
	threshold int64

	negative   int
	suspicious int
}

// NewChecker returns a Checker for one unit. A threshold of 0 disables the
// suspicious hits check.
func NewChecker(ignore IgnoreSet, threshold int64) *Checker {
	return &Checker{ignore: ignore, threshold: threshold}
}

// Check returns hits unchanged or 0 for an ignored bad value. line is the
// raw gcov line used in messages.
func (c *Checker) Check(hits int64, line string) (int, error) {
	if hits < 0 {
		if !c.ignore.any(IgnoreAll, IgnoreNegativeWarn, IgnoreNegativeWarnOncePerFile) {
			return 0, &NegativeHitsError{Line: line}
		}
		c.negative = c.warn(c.negative, IgnoreNegativeWarnOncePerFile, "Ignoring negative hits in line '%s'.", line)
		hits = 0
	}
	if c.threshold != 0 && hits >= c.threshold {
		if !c.ignore.any(IgnoreAll, IgnoreSuspiciousWarn, IgnoreSuspiciousWarnOncePerFile) {
			return 0, &SuspiciousHitsError{Line: line}
		}
		c.suspicious = c.warn(c.suspicious, IgnoreSuspiciousWarnOncePerFile, "Ignoring suspicious hits in line '%s'.", line)
		hits = 0
	}
	return int(hits), nil
}

// warn logs the first ignored value and, in warn-once mode, only counts
// the following ones.
func (c *Checker) warn(count int, onceMode, format, line string) int {
	if count > 0 {
		return count + 1
	}
	slog.Warn(fmt.Sprintf(format, line))
	if c.ignore.Has(onceMode) {
		return 1
	}
	return 0
}

// LogSummary reports how many hits were ignored silently in warn-once
// mode.
func (c *Checker) LogSummary() {
	if c.negative > 1 {
		slog.Warn(fmt.Sprintf("Ignored %d negative hits overall.", c.negative))
	}
	if c.suspicious > 1 {
		slog.Warn(fmt.Sprintf("Ignored %d suspicious hits overall.", c.suspicious))
	}
}

// Ignored returns the counts of the warn-once modes.
func (c *Checker) Ignored() (negative, suspicious int) {
	return c.negative, c.suspicious
}
