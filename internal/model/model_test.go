package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

func TestFileCoverage_InsertLineErrors(t *testing.T) {
	f := model.NewFileCoverage("foo.c", nil)
	sources := model.NewDataSources("foo.gcda", "foo.c.gcov")

	_, err := f.InsertLine(model.LineSpec{DataSources: sources, Lineno: 0}, model.DefaultMergeOptions)
	var dataErr *model.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "foo.c:0 lineno must be a positive value.\nGCOV data file is:\n   foo.gcda -> foo.c.gcov", err.Error())

	_, err = f.InsertLine(model.LineSpec{Lineno: 1, Count: -1}, model.DefaultMergeOptions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo.c:1 count must not be a negative value.")
	assert.False(t, f.HasLines())
}

func TestLineCoverage_InsertChildErrors(t *testing.T) {
	f := model.NewFileCoverage("foo.c", nil)
	line, err := f.InsertLine(model.LineSpec{Lineno: 4, Count: 1}, model.DefaultMergeOptions)
	require.NoError(t, err)

	tests := []struct {
		name   string
		insert func() error
		want   string
	}{
		{
			name: "NegativeBranch",
			insert: func() error {
				_, err := line.InsertBranch(&model.BranchCoverage{BranchNo: model.Int(0), Count: -1})
				return err
			},
			want: "foo.c:4 (branch 0) count must not be a negative value.",
		},
		{
			name: "ConditionSum",
			insert: func() error {
				_, err := line.InsertCondition(&model.ConditionCoverage{ConditionNo: 2, Count: 4, Covered: 1, NotCoveredTrue: []int{0}})
				return err
			},
			want: "foo.c:4 (condition 2) The sum of the covered conditions (1), the uncovered true conditions (1) and the uncovered false conditions (0) must be equal to the count of conditions (4).",
		},
		{
			name: "ConditionCoveredAboveCount",
			insert: func() error {
				_, err := line.InsertCondition(&model.ConditionCoverage{Count: 1, Covered: 2})
				return err
			},
			want: "count must not be less than covered.",
		},
		{
			name: "ConditionNegativeCovered",
			insert: func() error {
				_, err := line.InsertCondition(&model.ConditionCoverage{ConditionNo: 3, Count: 1, Covered: -1, NotCoveredTrue: []int{0}, NotCoveredFalse: []int{0}})
				return err
			},
			want: "foo.c:4 (condition 3) covered must not be a negative value.",
		},
		{
			name: "CallWithoutKey",
			insert: func() error {
				_, err := line.InsertCall(&model.CallCoverage{})
				return err
			},
			want: "Either callno or destination_block_id must be set.",
		},
		{
			name: "CallWithBothKeys",
			insert: func() error {
				_, err := line.InsertCall(&model.CallCoverage{CallNo: model.Int(0), DestinationBlockID: model.Int(1)})
				return err
			},
			want: "One of callno or destination_block_id must be set.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.insert()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Empty(t, line.Branches())
	assert.Empty(t, line.Conditions())
	assert.Empty(t, line.Calls())
}

func TestLineCoverage_Exclude(t *testing.T) {
	f := model.NewFileCoverage("foo.c", nil)
	line, err := f.InsertLine(model.LineSpec{Lineno: 1, Count: 1}, model.DefaultMergeOptions)
	require.NoError(t, err)
	_, err = line.InsertBranch(&model.BranchCoverage{BranchNo: model.Int(0), Count: 1})
	require.NoError(t, err)
	_, err = line.InsertCall(&model.CallCoverage{CallNo: model.Int(0)})
	require.NoError(t, err)
	line.InsertDecision(&model.ConditionalDecision{CountTrue: 1})

	line.Exclude()

	assert.False(t, line.HasReportableBranches())
	assert.False(t, line.HasReportableCalls())
	assert.Nil(t, line.Decision)
	assert.Equal(t, model.SummarizedStats{}, f.Stats())
	assert.True(t, f.Line(1).IsExcluded())
}

func TestBranchCoverage_SourceBlockIDOr0(t *testing.T) {
	var warning model.BlockIDWarning
	b := &model.BranchCoverage{BranchNo: model.Int(0)}
	assert.Equal(t, 0, b.SourceBlockIDOr0(&warning))
	require.NotNil(t, b.SourceBlockID)

	b = &model.BranchCoverage{BranchNo: model.Int(1), SourceBlockID: model.Int(4)}
	assert.Equal(t, 4, b.SourceBlockIDOr0(&warning))
}

func insertFunction(t *testing.T, source string, lineno, count int) *model.FunctionCoverage {
	t.Helper()
	f := model.NewFileCoverage("foo.cpp", nil)
	fn, err := f.InsertFunction(model.FunctionSpec{
		DataSources: model.NewDataSources(source),
		MangledName: "_Z3foov",
		Lineno:      lineno,
		Count:       count,
		Blocks:      float64(lineno),
		Start:       &model.Position{Line: lineno, Column: 1},
		End:         &model.Position{Line: lineno + 3, Column: 1},
	}, model.DefaultMergeOptions)
	require.NoError(t, err)
	return fn
}

func TestMergeFunction_Modes(t *testing.T) {
	tests := []struct {
		mode  model.FunctionMergeMode
		count map[int]int
		start map[int]model.Position
		end   map[int]model.Position
	}{
		{
			mode:  model.FunctionMergeUseLineZero,
			count: map[int]int{0: 5},
			start: map[int]model.Position{0: {Line: 2, Column: 1}},
			end:   map[int]model.Position{0: {Line: 8, Column: 1}},
		},
		{
			mode:  model.FunctionMergeUseLineMin,
			count: map[int]int{2: 5},
			start: map[int]model.Position{2: {Line: 2, Column: 1}},
			end:   map[int]model.Position{2: {Line: 8, Column: 1}},
		},
		{
			mode:  model.FunctionMergeUseLineMax,
			count: map[int]int{5: 5},
			start: map[int]model.Position{5: {Line: 2, Column: 1}},
			end:   map[int]model.Position{5: {Line: 8, Column: 1}},
		},
		{
			mode:  model.FunctionMergeSeparate,
			count: map[int]int{2: 2, 5: 3},
			start: map[int]model.Position{2: {Line: 2, Column: 1}, 5: {Line: 5, Column: 1}},
			end:   map[int]model.Position{2: {Line: 5, Column: 1}, 5: {Line: 8, Column: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			opts := model.MergeOptions{Functions: tt.mode}
			left := insertFunction(t, "a.gcov", 2, 2)
			right := insertFunction(t, "b.gcov", 5, 3)
			for _, pair := range [][2]*model.FunctionCoverage{{left, right}, {right, left}} {
				merged, err := model.MergeFunction(pair[0], pair[1], opts)
				require.NoError(t, err)
				assert.Equal(t, tt.count, merged.Count)
				assert.Equal(t, tt.start, merged.Start)
				assert.Equal(t, tt.end, merged.End)
				assert.Len(t, merged.DataSources, 2)
			}
		})
	}

	t.Run("strict", func(t *testing.T) {
		_, err := model.MergeFunction(insertFunction(t, "a.gcov", 2, 2), insertFunction(t, "b.gcov", 5, 3), model.DefaultMergeOptions)
		var mergeErr *model.MergeError
		require.ErrorAs(t, err, &mergeErr)
		assert.Contains(t, err.Error(), "Got function _Z3foov on multiple lines: 2, 5.")

		merged, err := model.MergeFunction(insertFunction(t, "a.gcov", 2, 2), insertFunction(t, "b.gcov", 2, 3), model.DefaultMergeOptions)
		require.NoError(t, err)
		assert.Equal(t, map[int]int{2: 5}, merged.Count)
	})
}

func TestFunctionCoverage_Names(t *testing.T) {
	f := model.NewFileCoverage("foo.cpp", nil)

	t.Run("DemangledInMangledField", func(t *testing.T) {
		fn, err := f.InsertFunction(model.FunctionSpec{MangledName: "ns::f<int(*)()>(int)", Lineno: 3}, model.DefaultMergeOptions)
		require.NoError(t, err)
		assert.Empty(t, fn.MangledName)
		assert.Equal(t, "ns::f<int(*)()>(int)", fn.DemangledName)

		name, signature, err := fn.NameAndSignature()
		require.NoError(t, err)
		assert.Equal(t, "ns::f<int(*)()>", name)
		assert.Equal(t, "(int)", signature)
	})

	t.Run("BothNamesWithParenthesis", func(t *testing.T) {
		_, err := f.InsertFunction(model.FunctionSpec{MangledName: "f(int)", DemangledName: "f(int)", Lineno: 3}, model.DefaultMergeOptions)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Got f(int) as 'mangled_name', in this case 'demangled_name' must be None.")
	})

	t.Run("NoName", func(t *testing.T) {
		_, err := f.InsertFunction(model.FunctionSpec{Lineno: 3}, model.DefaultMergeOptions)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Either mangled or demangled function name must be set.")
	})

	t.Run("PropagatesDemangledNameToLines", func(t *testing.T) {
		line, err := f.InsertLine(model.LineSpec{Lineno: 7, Count: 1, FunctionName: "_Z1gv"}, model.DefaultMergeOptions)
		require.NoError(t, err)
		_, err = f.InsertFunction(model.FunctionSpec{MangledName: "_Z1gv", DemangledName: "g()", Lineno: 7}, model.DefaultMergeOptions)
		require.NoError(t, err)
		assert.Equal(t, "g()", line.ReportFunctionName())
	})
}

func TestFileCoverage_FilterForFunction(t *testing.T) {
	f := model.NewFileCoverage("foo.c", nil)
	for lineno, fn := range map[int]string{1: "a", 2: "a", 5: "b"} {
		_, err := f.InsertLine(model.LineSpec{Lineno: lineno, Count: 1, FunctionName: fn}, model.DefaultMergeOptions)
		require.NoError(t, err)
	}
	fnA, err := f.InsertFunction(model.FunctionSpec{MangledName: "a", Lineno: 1, Count: 1}, model.DefaultMergeOptions)
	require.NoError(t, err)

	filtered, err := f.FilterForFunction(fnA)
	require.NoError(t, err)
	assert.Len(t, filtered.LineCovs(), 2)
	assert.Len(t, filtered.Functions(), 1)

	other := model.NewFileCoverage("bar.c", nil)
	_, err = other.FilterForFunction(fnA)
	assert.Error(t, err)
}

func TestFileCoverage_Stats(t *testing.T) {
	f := model.NewFileCoverage("foo.c", nil)
	covered, err := f.InsertLine(model.LineSpec{Lineno: 1, Count: 3, FunctionName: "main"}, model.DefaultMergeOptions)
	require.NoError(t, err)
	_, err = f.InsertLine(model.LineSpec{Lineno: 2, Count: 0, FunctionName: "main"}, model.DefaultMergeOptions)
	require.NoError(t, err)
	_, err = f.InsertLine(model.LineSpec{Lineno: 3, Count: 0, Excluded: true}, model.DefaultMergeOptions)
	require.NoError(t, err)

	_, err = covered.InsertBranch(&model.BranchCoverage{BranchNo: model.Int(0), Count: 3})
	require.NoError(t, err)
	_, err = covered.InsertBranch(&model.BranchCoverage{BranchNo: model.Int(1)})
	require.NoError(t, err)
	_, err = covered.InsertCondition(&model.ConditionCoverage{Count: 2, Covered: 1, NotCoveredFalse: []int{0}})
	require.NoError(t, err)
	covered.InsertDecision(&model.ConditionalDecision{CountTrue: 3})
	_, err = f.InsertFunction(model.FunctionSpec{MangledName: "main", Lineno: 1, Count: 1}, model.DefaultMergeOptions)
	require.NoError(t, err)

	assert.Equal(t, model.SummarizedStats{
		Line:      model.CoverageStat{Covered: 1, Total: 2},
		Branch:    model.CoverageStat{Covered: 1, Total: 2},
		Condition: model.CoverageStat{Covered: 1, Total: 2},
		Decision:  model.DecisionCoverageStat{Covered: 1, Total: 2},
		Function:  model.CoverageStat{Covered: 1, Total: 1},
	}, f.Stats())
}

func TestCoverageContainer_SortCoverage(t *testing.T) {
	c := model.NewCoverageContainer()
	add := func(name string, counts ...int) {
		f := model.NewFileCoverage(name, nil)
		for i, count := range counts {
			_, err := f.InsertLine(model.LineSpec{Lineno: i + 1, Count: count}, model.DefaultMergeOptions)
			require.NoError(t, err)
		}
		require.NoError(t, c.InsertFile(f, model.DefaultMergeOptions))
	}
	add("b10.c", 1, 0)
	add("B2.c", 1)
	add("a.c")

	tests := []struct {
		name    string
		key     model.SortKey
		reverse bool
		want    []string
	}{
		{"Filename", model.SortByFilename, false, []string{"a.c", "B2.c", "b10.c"}},
		{"FilenameReverse", model.SortByFilename, true, []string{"b10.c", "B2.c", "a.c"}},
		{"UncoveredNumber", model.SortByUncoveredNumber, false, []string{"a.c", "B2.c", "b10.c"}},
		{"UncoveredNumberReverse", model.SortByUncoveredNumber, true, []string{"b10.c", "a.c", "B2.c"}},
		{"UncoveredPercent", model.SortByUncoveredPercent, false, []string{"b10.c", "B2.c", "a.c"}},
		{"UncoveredPercentReverse", model.SortByUncoveredPercent, true, []string{"a.c", "B2.c", "b10.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.SortCoverage(tt.key, tt.reverse, model.MetricLine))
		})
	}
}

func TestParseMergeModes(t *testing.T) {
	for _, name := range []string{"strict", "merge-use-line-0", "merge-use-line-min", "merge-use-line-max", "separate"} {
		mode, err := model.ParseFunctionMergeMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, mode.String())
	}
	_, err := model.ParseFunctionMergeMode("merge-use-line-42")
	assert.ErrorIs(t, err, model.ErrUnknownMergeMode)

	mode, err := model.ParseConditionMergeMode("fold")
	require.NoError(t, err)
	assert.Equal(t, model.ConditionMergeFold, mode)
	_, err = model.ParseConditionMergeMode("loose")
	assert.ErrorIs(t, err, model.ErrUnknownMergeMode)
}

func TestMergeFile_FilenameMismatch(t *testing.T) {
	left := model.NewFileCoverage("a.c", model.NewDataSources("a.gcov"))
	right := model.NewFileCoverage("b.c", model.NewDataSources("b.gcov"))

	_, err := model.MergeFile(left, right, model.DefaultMergeOptions)
	var dataErr *model.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, []string{"a.gcov", "b.gcov"}, dataErr.Sources.Strings())
	assert.Contains(t, err.Error(), "GCOV data files are:\n   a.gcov\n   b.gcov")
}
