package exclusion

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

// sparseLines builds source lines from line numbers to code, all other
// lines are empty.
func sparseLines(code map[int]string) []string {
	last := 0
	for lineno := range code {
		last = max(last, lineno)
	}
	lines := make([]string, last)
	for lineno, c := range code {
		lines[lineno-1] = c
	}
	return lines
}

type branchSpec struct {
	count int
	throw bool
}

type lineSpec struct {
	lineno   int
	count    int
	function string
	branches []branchSpec
	calls    int
}

func newFile(t *testing.T, lines ...lineSpec) *model.FileCoverage {
	t.Helper()
	sources := model.NewDataSources("test.gcov")
	filecov := model.NewFileCoverage("test.c", sources)
	for _, l := range lines {
		linecov, err := filecov.InsertLine(model.LineSpec{
			DataSources:  sources,
			Lineno:       l.lineno,
			Count:        l.count,
			FunctionName: l.function,
		}, model.DefaultMergeOptions)
		require.NoError(t, err)
		for i, b := range l.branches {
			_, err := linecov.InsertBranch(&model.BranchCoverage{
				DataSources: sources,
				BranchNo:    model.Int(i),
				Count:       b.count,
				Throw:       b.throw,
			})
			require.NoError(t, err)
		}
		for i := 0; i < l.calls; i++ {
			_, err := linecov.InsertCall(&model.CallCoverage{
				DataSources: sources,
				CallNo:      model.Int(i),
				Returned:    1,
			})
			require.NoError(t, err)
		}
	}
	return filecov
}

func addFunction(t *testing.T, filecov *model.FileCoverage, name string, lineno, count int) {
	t.Helper()
	_, err := filecov.InsertFunction(model.FunctionSpec{
		DataSources: model.NewDataSources("test.gcov"),
		MangledName: name,
		Lineno:      lineno,
		Count:       count,
	}, model.DefaultMergeOptions)
	require.NoError(t, err)
}

func lineNumbers(filecov *model.FileCoverage) []int {
	var result []int
	for _, linecov := range filecov.LineCovs() {
		result = append(result, linecov.Lineno())
	}
	return result
}

func TestLineRanges(t *testing.T) {
	r := lineRanges{{5, 7}, {3, 3}}.sorted()
	var got []int
	for lineno := 0; lineno < 10; lineno++ {
		if r.Contains(lineno) {
			got = append(got, lineno)
		}
	}
	assert.Equal(t, []int{3, 5, 6, 7}, got)
	assert.True(t, r.Contains(6))
	assert.False(t, lineRanges(nil).Contains(1))
}

func TestScanMarkers(t *testing.T) {
	lines := sparseLines(map[int]string{
		11: "//PREFIX_EXCL_LINE", 13: "//IGNORE_LINE",
		15: "//PREFIX_EXCL_START", 18: "//PREFIX_EXCL_STOP",
		21: "//PREFIX_EXCL_BR_LINE", 23: "//IGNORE_BR",
		25: "//PREFIX_EXCL_BR_START", 28: "//PREFIX_EXCL_BR_STOP",
	})
	e, err := New(Options{
		ExcludePatternPrefix:     "PREFIX",
		ExcludeLinesByPattern:    ".*IGNORE_LINE",
		ExcludeBranchesByPattern: ".*IGNORE_BR",
	})
	require.NoError(t, err)

	selected := func(r lineRanges) []int {
		var result []int
		for lineno := 0; lineno < 30; lineno++ {
			if r.Contains(lineno) {
				result = append(result, lineno)
			}
		}
		return result
	}
	excludedLines := (&markerScanner{word: excludeLineWord, marker: e.lineMarker, custom: e.linePattern}).scan(lines)
	excludedBranches := (&markerScanner{word: excludeBranchWord, marker: e.branchMarker, custom: e.branchPattern}).scan(lines)
	assert.Equal(t, []int{11, 13, 15, 16, 17}, selected(excludedLines))
	assert.Equal(t, []int{21, 23, 25, 26, 27}, selected(excludedBranches))
}

func TestScanMarkers_Warnings(t *testing.T) {
	logs := captureLogs(t)
	lines := []string{
		"some code",
		"foo // LCOV_EXCL_STOP",
		"bar // GCOVR_EXCL_START",
		"bar // GCOVR_EXCL_LINE",
		"baz // GCOV_EXCL_STOP",
		`"GCOVR_EXCL_START"`,
	}
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	ranges := (&markerScanner{filename: "example.cpp", word: excludeLineWord, marker: e.lineMarker}).scan(lines)

	assert.Equal(t, lineRanges{{3, 4}}, ranges)
	out := logs.String()
	assert.Contains(t, out, "LCOV_EXCL_STOP found on line 2 without corresponding LCOV_EXCL_START, when processing example.cpp.")
	assert.Contains(t, out, "GCOVR_EXCL_LINE found on line 4 in excluded region started on line 3, when processing example.cpp.")
	assert.Contains(t, out, "GCOVR_EXCL_START found on line 3 was terminated by GCOV_EXCL_STOP on line 5, when processing example.cpp.")
	assert.Contains(t, out, "The coverage exclusion region start flag GCOVR_EXCL_START")
}

func TestApply_Markers(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 1, function: "f"},
		lineSpec{lineno: 2, count: 3, function: "f", branches: []branchSpec{{count: 1}, {count: 2}}},
		lineSpec{lineno: 3, count: 3, function: "f", branches: []branchSpec{{count: 1}, {count: 2}}},
		lineSpec{lineno: 5, count: 2, function: "g"},
		lineSpec{lineno: 6, count: 2, function: "g"},
	)
	addFunction(t, filecov, "f", 1, 1)
	addFunction(t, filecov, "g", 5, 2)
	filecov.Line(3).Get("f").Decision = &model.ConditionalDecision{CountTrue: 1, CountFalse: 2}

	lines := []string{
		"void f() {",
		"  if (a) b(); // GCOVR_EXCL_LINE",
		"  if (c) d(); // GCOVR_EXCL_BR_LINE",
		"}",
		"void g() { // LCOV_EXCL_START",
		"  e();",
		"// LCOV_EXCL_STOP",
	}
	require.NoError(t, Apply(filecov, lines, Options{RespectExclusionMarkers: true}))

	line2 := filecov.Line(2).Get("f")
	assert.True(t, line2.Excluded)
	assert.Equal(t, 0, line2.Count)
	assert.Empty(t, line2.Branches())

	line3 := filecov.Line(3).Get("f")
	assert.False(t, line3.Excluded)
	assert.Equal(t, 3, line3.Count)
	assert.Empty(t, line3.Branches())
	assert.Nil(t, line3.Decision)

	assert.True(t, filecov.Line(5).Get("g").Excluded)
	assert.True(t, filecov.Line(6).Get("g").Excluded)
	assert.False(t, filecov.Line(1).Get("f").Excluded)

	g := filecov.Function("g")
	assert.Equal(t, map[int]int{5: 0}, g.Count)
	assert.Equal(t, map[int]bool{5: true}, g.Excluded)
	assert.Equal(t, map[int]bool{1: false}, filecov.Function("f").Excluded)
}

func TestNew_InvalidPatterns(t *testing.T) {
	_, err := New(Options{ExcludeLinesByPattern: "("})
	assert.ErrorContains(t, err, "invalid exclusion pattern")

	_, err = New(Options{ExcludePatternPrefix: "[GL"})
	assert.ErrorContains(t, err, "invalid exclusion marker prefix")
}

func TestIsNonCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"  // some comment!", true},
		{"  /* some comment! */", true},
		{"} else {", false},
		{"}else{", false},
		{"else", true},
		{"{", true},
		{"/* some comment */ {", true},
		{"}", true},
		{"} // some code", true},
		{"return {};", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, isNonCode(tt.code))
		})
	}
}

func TestCanContainBranches(t *testing.T) {
	assert.False(t, canContainBranches("} // end something"))
	assert.False(t, canContainBranches("  { }"))
	assert.True(t, canContainBranches("foo();"))
}

func TestRemoveNoncodeLines(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 0},
		lineSpec{lineno: 2, count: 0},
		lineSpec{lineno: 3, count: 1},
		lineSpec{lineno: 4, count: 0},
	)
	RemoveNoncodeLines(filecov, []string{"{", "  x();", "}", "else"})
	assert.Equal(t, []int{2, 3}, lineNumbers(filecov))
}

func TestRemoveUnreachableBranches(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 1, branches: []branchSpec{{count: 1}, {count: 0}}},
		lineSpec{lineno: 2, count: 1, branches: []branchSpec{{count: 1}, {count: 0}}},
	)
	RemoveUnreachableBranches(filecov, []string{"if (a) {", "} // end"})
	assert.Len(t, filecov.Line(1).Get("").Branches(), 2)
	assert.Empty(t, filecov.Line(2).Get("").Branches())
}

func TestRemoveThrowBranches(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 1, branches: []branchSpec{{count: 1}, {count: 0, throw: true}}},
	)
	RemoveThrowBranches(filecov)
	branches := filecov.Line(1).Get("").Branches()
	require.Len(t, branches, 1)
	assert.False(t, branches[0].Throw)
}

func TestRemoveFunctionLines(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 1, function: "main"},
		lineSpec{lineno: 2, count: 1, function: "main"},
	)
	addFunction(t, filecov, "main", 1, 1)
	RemoveFunctionLines(filecov)
	assert.Equal(t, []int{2}, lineNumbers(filecov))
	assert.NotNil(t, filecov.Function("main"))
}

func TestRemoveInternalFunctions(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 1, function: "_GLOBAL__sub_I_main"},
		lineSpec{lineno: 2, count: 1, function: "__cxx_global_var_init"},
		lineSpec{lineno: 3, count: 1, function: "main"},
	)
	addFunction(t, filecov, "_GLOBAL__sub_I_main", 1, 1)
	addFunction(t, filecov, "__cxx_global_var_init", 2, 1)
	addFunction(t, filecov, "main", 3, 1)

	RemoveInternalFunctions(filecov)

	require.Len(t, filecov.Functions(), 1)
	assert.Equal(t, "main", filecov.Functions()[0].Name())
	assert.True(t, filecov.Line(1).Get("_GLOBAL__sub_I_main").Excluded)
	assert.True(t, filecov.Line(2).Get("__cxx_global_var_init").Excluded)
	assert.False(t, filecov.Line(3).Get("main").Excluded)
}

func TestRemoveCalls(t *testing.T) {
	filecov := newFile(t, lineSpec{lineno: 1, count: 1, calls: 2})
	require.Len(t, filecov.Line(1).Get("").Calls(), 2)

	require.NoError(t, Apply(filecov, []string{"f(); g();"}, DefaultOptions()))
	assert.Empty(t, filecov.Line(1).Get("").Calls())
}

func TestApply_Disabled(t *testing.T) {
	filecov := newFile(t,
		lineSpec{lineno: 1, count: 0, calls: 1},
		lineSpec{lineno: 2, count: 1, branches: []branchSpec{{count: 1, throw: true}}},
	)
	require.NoError(t, Apply(filecov, []string{"}", "x(); // GCOVR_EXCL_LINE"}, Options{}))

	assert.Equal(t, []int{1, 2}, lineNumbers(filecov))
	assert.Len(t, filecov.Line(1).Get("").Calls(), 1)
	assert.False(t, filecov.Line(2).Get("").Excluded)
	assert.Len(t, filecov.Line(2).Get("").Branches(), 1)
}
