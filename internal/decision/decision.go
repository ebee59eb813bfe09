// Package decision derives decision coverage from branch coverage and the
// source code of a file. The analysis is a heuristic on C and C++ code: if,
// loop and switch statements are recognized by keyword and the outcome of
// a decision is taken from the branch counts of its line or from the
// execution counts of the following line.
package decision

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

var (
	padCharactersRegex = regexp.MustCompile(`([;:(){}])`)
	cStyleCommentRegex = regexp.MustCompile(`/\*.*?\*/`)
	cppCommentRegex    = regexp.MustCompile(`//.*$`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	oneLineBranchRegex = regexp.MustCompile(`^[^;]+{(?:[^;]+;)*.*}$`)
)

// prepare normalizes a line of code for the keyword checks. Tokens are
// separated by exactly one space and the result starts with a space, so
// keywords do not match inside identifiers.
func prepare(code string) string {
	code = padCharactersRegex.ReplaceAllString(code, " $1 ")
	code = cppCommentRegex.ReplaceAllString(code, " ")
	code = cStyleCommentRegex.ReplaceAllString(code, " ")
	code = whitespaceRegex.ReplaceAllString(code, " ")
	return " " + strings.TrimSpace(code)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func parenDelta(code string) int {
	prepared := prepare(code)
	return strings.Count(prepared, "(") - strings.Count(prepared, ")")
}

func isBranchStatement(code string) bool {
	return containsAny(prepare(code), " if (", "; if (", " case ", "; case ", " default :", "; default :")
}

func isLoop(code string) bool {
	return containsAny(prepare(code), " while (", "} while (", " for ", " for (")
}

func isSwitch(code string) bool {
	return containsAny(prepare(code), " case ", " default :")
}

func isOneLineBranch(code string) bool {
	return oneLineBranchRegex.MatchString(prepare(code))
}

// isClosedBranch reports a branch or loop whose condition is complete on
// the line but whose body is not.
func isClosedBranch(code string) bool {
	if (isBranchStatement(code) || isLoop(code)) && !isOneLineBranch(code) {
		return parenDelta(code) == 0
	}
	return false
}

// Analyzer walks the lines of one file and attaches decisions to its line
// coverage records.
type Analyzer struct {
	// linecovs maps a line number to its only record. Lines with several
	// records map to nil since their counts cannot be attributed.
	linecovs map[int]*model.LineCoverage
	maxLine  int
	lines    []string

	active     bool
	lastLine   int
	openParens int
}

// NewAnalyzer prepares the analysis of filecov with the given source
// lines. The first element of lines is line 1.
func NewAnalyzer(filecov *model.FileCoverage, lines []string) *Analyzer {
	a := &Analyzer{linecovs: map[int]*model.LineCoverage{}, lines: lines}
	for _, collection := range filecov.Lines() {
		linecovs := collection.LineCovs()
		if len(linecovs) == 0 {
			continue
		}
		lineno := linecovs[0].Lineno()
		if len(linecovs) == 1 {
			a.linecovs[lineno] = linecovs[0]
		} else {
			a.linecovs[lineno] = nil
		}
		a.maxLine = max(a.maxLine, lineno)
	}
	return a
}

// Analyze attaches decision coverage to the lines of filecov. Decisions
// that cannot be derived reliably become uncheckable, so the analysis
// never fails.
func Analyze(filecov *model.FileCoverage, lines []string) {
	NewAnalyzer(filecov, lines).Run()
}

// Run analyzes all lines in order.
func (a *Analyzer) Run() {
	slog.Debug("Starting the decision analysis.")
	for i, code := range a.lines {
		a.parseLine(i+1, code)
	}
	slog.Debug("Decision analysis finished.")
}

func (a *Analyzer) parseLine(lineno int, code string) {
	linecov := a.linecovs[lineno]
	if linecov == nil && !isSwitch(code) {
		return
	}

	if a.active {
		a.continueMultiLine(lineno, code)
		if a.active {
			return
		}
	}

	if !isBranchStatement(code) && !isLoop(code) {
		return
	}

	switch {
	case linecov != nil && len(linecov.Branches()) > 0:
		branches := linecov.Branches()
		if !isLoop(code) && !isOneLineBranch(code) && !(isClosedBranch(code) && len(branches) == 2) {
			a.startMultiLine(lineno, code)
			return
		}
		if len(branches) == 2 {
			linecov.Decision = &model.ConditionalDecision{
				DataSources: linecov.DataSources.Clone(),
				CountTrue:   branches[0].Count,
				CountFalse:  branches[1].Count,
			}
		} else {
			linecov.Decision = &model.UncheckableDecision{DataSources: linecov.DataSources.Clone()}
			slog.Debug(fmt.Sprintf("Uncheckable decision at line %d.", lineno))
		}

	case isSwitch(code):
		// The count of a case label is the count of the first following
		// line with coverage data.
		last := max(lineno+1, a.maxLine)
		breaks := strings.Contains(prepare(code), " break ;")
		for next := lineno; next < last; next++ {
			if caseLinecov := a.linecovs[next]; caseLinecov != nil {
				caseLinecov.Decision = &model.SwitchDecision{
					DataSources: caseLinecov.DataSources.Clone(),
					Count:       caseLinecov.Count,
				}
				break
			}
			if breaks {
				break
			}
		}
	}
}

func (a *Analyzer) startMultiLine(lineno int, code string) {
	a.active = true
	a.lastLine = lineno
	a.openParens += parenDelta(code)
}

// continueMultiLine handles a line following a decision whose condition
// spans several lines. Once all parentheses are closed the execution count
// of the line is the count of the true outcome.
func (a *Analyzer) continueMultiLine(lineno int, code string) {
	if a.openParens != 0 {
		a.openParens += parenDelta(code)
		return
	}

	decisionLinecov := a.linecovs[a.lastLine]
	linecov := a.linecovs[lineno]
	execCount := 0
	sources := decisionLinecov.DataSources
	if linecov != nil {
		execCount = linecov.Count
		sources = linecov.DataSources
	}

	if delta := decisionLinecov.Count - execCount; delta >= 0 {
		decisionLinecov.Decision = &model.ConditionalDecision{
			DataSources: sources.Clone(),
			CountTrue:   execCount,
			CountFalse:  delta,
		}
	} else {
		decisionLinecov.Decision = &model.UncheckableDecision{DataSources: sources.Clone()}
		slog.Debug(fmt.Sprintf("Uncheckable decision at line %d. (Delta = %d)", lineno, delta))
	}
	a.active = false
	a.openParens = 0
}
