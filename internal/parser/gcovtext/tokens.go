package gcovtext

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
)

// linePattern compiles a gcov line pattern. Spaces match one or more spaces,
// INT matches an integer and VALUE matches a number as formatted by gcov:
// a percentage or a count with an optional SI unit.
func linePattern(pattern string) *regexp.Regexp {
	pattern = strings.ReplaceAll(pattern, " ", ` +`)
	pattern = strings.ReplaceAll(pattern, "INT", `[0-9]+`)
	pattern = strings.ReplaceAll(pattern, "VALUE", `(?:NAN %|-?[0-9.]+[%kMGTPEZY]?)`)
	return regexp.MustCompile("^" + pattern + "$")
}

var (
	reFunctionLine      = linePattern(`function (.*?) called (INT) returned (VALUE) blocks executed (VALUE)`)
	reBranchLine        = linePattern(`branch (INT) (?:taken (VALUE)|never executed)(?: \((\w+)\))?`)
	reCallLine          = linePattern(`call (INT) (?:returned (VALUE)|never executed)`)
	reUnconditionalLine = linePattern(`unconditional (INT) (?:taken (VALUE)|never executed)`)
	reSourceLine        = linePattern(`(?: )?(VALUE[*]?|-|[#]{5}|[=]{5}):(?: )?(INT):(.*)`)
	reBlockLine         = linePattern(`(?: )?(VALUE|[$]{5}|[%]{5}):(?: )?(INT)-block (INT)`)
)

const specializationSeparator = "------------------"

// ExtraInfo describes a source or block line beyond its count.
type ExtraInfo uint8

const (
	Noncode ExtraInfo = 1 << iota
	ExceptionOnly
	Partial
)

func (e ExtraInfo) String() string {
	if e == 0 {
		return "NONE"
	}
	var parts []string
	for _, f := range []struct {
		flag ExtraInfo
		name string
	}{{Noncode, "NONCODE"}, {ExceptionOnly, "EXCEPTION_ONLY"}, {Partial, "PARTIAL"}} {
		if e&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Event is one tokenized line of a gcov text file.
type Event interface {
	event()
}

// SourceLine is "HITS: LINENO:CODE".
type SourceLine struct {
	Hits   int
	Lineno int
	Code   string
	Extra  ExtraInfo
}

// MetadataLine is "-: 0:KEY:VALUE". HasValue is false if the line has no
// second colon.
type MetadataLine struct {
	Key      string
	Value    string
	HasValue bool
}

// BlockLine is "HITS: LINENO-block BLOCKID".
type BlockLine struct {
	Hits    int
	Lineno  int
	BlockID int
	Extra   ExtraInfo
}

// CallLine is "call CALLNO returned VALUE".
type CallLine struct {
	CallNo   int
	Returned int
}

// BranchLine is "branch BRANCHNO taken VALUE (ANNOTATION)".
type BranchLine struct {
	BranchNo   int
	Hits       int
	Annotation string
}

// UnconditionalLine is "unconditional BRANCHNO taken VALUE".
type UnconditionalLine struct {
	BranchNo int
	Hits     int
}

// FunctionLine announces the function starting at the next source line.
type FunctionLine struct {
	Name          string
	CallCount     int
	BlocksCovered float64
}

// SpecializationNameLine opens the section of one template instantiation.
type SpecializationNameLine struct {
	Name string
}

// SpecializationSeparatorLine is the "------------------" line between
// specialization sections.
type SpecializationSeparatorLine struct{}

func (SourceLine) event()                  {}
func (MetadataLine) event()                {}
func (BlockLine) event()                   {}
func (CallLine) event()                    {}
func (BranchLine) event()                  {}
func (UnconditionalLine) event()           {}
func (FunctionLine) event()                {}
func (SpecializationNameLine) event()      {}
func (SpecializationSeparatorLine) event() {}

// UnknownLineError is returned for a line that matches no known line type.
type UnknownLineError struct {
	Line string
}

func (e *UnknownLineError) Error() string { return e.Line }

// Tokenize classifies one non-empty line. Decoded hit counts pass through
// checker, which may turn them into errors. A nil checker accepts all
// counts.
func Tokenize(line string, checker *hits.Checker) (Event, error) {
	if ev, err := tokenizeTagLine(line, checker); ev != nil || err != nil {
		return ev, err
	}

	if m := reSourceLine.FindStringSubmatch(line); m != nil {
		return sourceLine(line, m[1], m[2], m[3], checker)
	}

	if strings.Contains(line, "-block ") {
		if m := reBlockLine.FindStringSubmatch(line); m != nil {
			return blockLine(line, m[1], m[2], m[3], checker)
		}
	}

	// Specialization names are checked last: any name in the first column
	// that ends with a colon, e.g. "<X as Y>::foo::h12345:" for Rust.
	first, _ := utf8.DecodeRuneInString(line)
	if utf8.RuneCountInString(line) > 2 && !unicode.IsSpace(first) && strings.HasSuffix(line, ":") {
		return SpecializationNameLine{Name: line[:len(line)-1]}, nil
	}

	return nil, &UnknownLineError{Line: line}
}

// tokenizeTagLine handles lines starting in the first column with a
// keyword. It returns a nil Event for other lines.
func tokenizeTagLine(line string, checker *hits.Checker) (Event, error) {
	if strings.HasPrefix(line, " ") {
		return nil, nil
	}

	if strings.HasPrefix(line, "branch ") {
		if m := reBranchLine.FindStringSubmatch(line); m != nil {
			branchNo, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, err
			}
			count, err := takenHits(m[2], line, checker)
			if err != nil {
				return nil, err
			}
			return BranchLine{BranchNo: branchNo, Hits: count, Annotation: m[3]}, nil
		}
	}

	if strings.HasPrefix(line, "call ") {
		if m := reCallLine.FindStringSubmatch(line); m != nil {
			callNo, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, err
			}
			returned := int64(0)
			if m[2] != "" {
				if returned, err = intFromGcovUnit(m[2]); err != nil {
					return nil, err
				}
			}
			return CallLine{CallNo: callNo, Returned: int(returned)}, nil
		}
	}

	if strings.HasPrefix(line, "unconditional ") {
		if m := reUnconditionalLine.FindStringSubmatch(line); m != nil {
			branchNo, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, err
			}
			count, err := takenHits(m[2], line, checker)
			if err != nil {
				return nil, err
			}
			return UnconditionalLine{BranchNo: branchNo, Hits: count}, nil
		}
	}

	if strings.HasPrefix(line, "function ") {
		if m := reFunctionLine.FindStringSubmatch(line); m != nil {
			count, err := intFromGcovUnit(m[2])
			if err != nil {
				return nil, err
			}
			blocks, err := floatFromGcovPercent(m[4])
			if err != nil {
				return nil, err
			}
			return FunctionLine{Name: m[1], CallCount: int(count), BlocksCovered: blocks}, nil
		}
	}

	if line == specializationSeparator {
		return SpecializationSeparatorLine{}, nil
	}
	return nil, nil
}

func sourceLine(line, hitsStr, linenoStr, code string, checker *hits.Checker) (Event, error) {
	if hitsStr == "-" && linenoStr == "0" {
		key, value, found := strings.Cut(code, ":")
		if !found {
			return MetadataLine{Key: code}, nil
		}
		return MetadataLine{Key: key, Value: strings.TrimSpace(value), HasValue: true}, nil
	}

	var raw int64
	var extra ExtraInfo
	switch {
	case hitsStr == "-":
		extra = Noncode
	case hitsStr == "#####":
	case hitsStr == "=====":
		extra = ExceptionOnly
	default:
		if strings.HasSuffix(hitsStr, "*") {
			hitsStr = hitsStr[:len(hitsStr)-1]
			extra = Partial
		}
		var err error
		if raw, err = intFromGcovUnit(hitsStr); err != nil {
			return nil, err
		}
	}

	lineno, err := strconv.Atoi(linenoStr)
	if err != nil {
		return nil, err
	}
	count, err := check(raw, line, checker)
	if err != nil {
		return nil, err
	}
	return SourceLine{Hits: count, Lineno: lineno, Code: code, Extra: extra}, nil
}

func blockLine(line, hitsStr, linenoStr, blockIDStr string, checker *hits.Checker) (Event, error) {
	lineno, err := strconv.Atoi(linenoStr)
	if err != nil {
		return nil, err
	}
	blockID, err := strconv.Atoi(blockIDStr)
	if err != nil {
		return nil, err
	}

	var raw int64
	var extra ExtraInfo
	switch hitsStr {
	case "%%%%%":
	case "$$$$$":
		extra = ExceptionOnly
	default:
		if raw, err = intFromGcovUnit(hitsStr); err != nil {
			return nil, err
		}
	}

	count, err := check(raw, line, checker)
	if err != nil {
		return nil, err
	}
	return BlockLine{Hits: count, Lineno: lineno, BlockID: blockID, Extra: extra}, nil
}

// takenHits decodes the optional VALUE of a branch or unconditional line.
// A missing value means "never executed".
func takenHits(value, line string, checker *hits.Checker) (int, error) {
	var raw int64
	if value != "" {
		var err error
		if raw, err = intFromGcovUnit(value); err != nil {
			return 0, err
		}
	}
	return check(raw, line, checker)
}

func check(raw int64, line string, checker *hits.Checker) (int, error) {
	if checker == nil {
		return int(raw), nil
	}
	return checker.Check(raw, line)
}

const siUnits = "kMGTPEZY"

var siScale = [...]float64{1e3, 1e6, 1e9, 1e12, 1e15, 1e18, 1e21, 1e24}

// maxInt64Float is 2^63, the first float64 that does not fit an int64.
const maxInt64Float = float64(1 << 63)

// intFromGcovUnit reverses the number formatting of gcov.
//
// Percentages can not be reversed: gcov only prints 0% and 100% for the
// exact values, so every positive percentage decodes to 1 and NAN or 0% to
// 0. Human readable counts like "1.7k" are scaled by their SI unit.
func intFromGcovUnit(formatted string) (int64, error) {
	if strings.HasSuffix(formatted, "%") {
		v, err := strconv.ParseFloat(strings.TrimSpace(formatted[:len(formatted)-1]), 64)
		if err != nil {
			return 0, err
		}
		if v > 0 {
			return 1, nil
		}
		return 0, nil
	}

	if n := len(formatted); n > 0 {
		if exponent := strings.IndexByte(siUnits, formatted[n-1]); exponent >= 0 {
			v, err := strconv.ParseFloat(formatted[:n-1], 64)
			if err != nil {
				return 0, err
			}
			if scaled := v * siScale[exponent]; scaled < maxInt64Float {
				return int64(scaled), nil
			}
			return math.MaxInt64, nil
		}
	}

	n, err := strconv.ParseInt(formatted, 10, 64)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(formatted, "-") {
		// Counters wrapped by gcov are far above any real count. Keep them
		// positive so the suspicious hits check sees them.
		return math.MaxInt64, nil
	}
	return n, err
}

// floatFromGcovPercent parses the blocks executed value of a function line.
func floatFromGcovPercent(formatted string) (float64, error) {
	if !strings.HasSuffix(formatted, "%") {
		return 0, fmt.Errorf("Number must end with %%, got %s", formatted)
	}
	return strconv.ParseFloat(strings.TrimSpace(formatted[:len(formatted)-1]), 64)
}
