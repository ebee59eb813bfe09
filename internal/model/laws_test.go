package model_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/model/modeltest"
)

var entityDiffOptions = []cmp.Option{
	cmpopts.IgnoreUnexported(
		model.BranchCoverage{},
		model.CallCoverage{},
		model.ConditionCoverage{},
		model.FunctionCoverage{},
	),
	cmpopts.EquateEmpty(),
}

// assertMergeLaws checks that merge has nil as identity, is commutative and
// associative, and leaves its inputs untouched.
func assertMergeLaws[T comparable](t *testing.T, a, b, c T, merge func(left, right T) (T, error), view func(T) any) {
	t.Helper()
	var zero T
	mustMerge := func(t *testing.T, left, right T) T {
		t.Helper()
		merged, err := merge(left, right)
		require.NoError(t, err)
		return merged
	}
	// Views may share storage with the entity, so snapshot a copy.
	before := view(mustMerge(t, a, zero))

	t.Run("Identity", func(t *testing.T) {
		assert.Empty(t, cmp.Diff(view(a), before, entityDiffOptions...))
		assert.Empty(t, cmp.Diff(view(a), view(mustMerge(t, zero, a)), entityDiffOptions...))
	})

	t.Run("Commutative", func(t *testing.T) {
		assert.Empty(t, cmp.Diff(view(mustMerge(t, a, b)), view(mustMerge(t, b, a)), entityDiffOptions...))
	})

	t.Run("Associative", func(t *testing.T) {
		left := mustMerge(t, mustMerge(t, a, b), c)
		right := mustMerge(t, a, mustMerge(t, b, c))
		assert.Empty(t, cmp.Diff(view(left), view(right), entityDiffOptions...))
	})

	t.Run("InputsUnchanged", func(t *testing.T) {
		mustMerge(t, a, b)
		assert.Empty(t, cmp.Diff(before, view(a), entityDiffOptions...))
	})
}

func unitLine(t *testing.T, source string, seed int) *model.LineCoverage {
	t.Helper()
	line := unitCoverage(t, source, seed).Line(3).Get("main")
	require.NotNil(t, line)
	return line
}

func TestMergeLine_Laws(t *testing.T) {
	a, b, c := unitLine(t, "a.gcov", 1), unitLine(t, "b.gcov", 2), unitLine(t, "c.gcov", 3)
	assertMergeLaws(t, a, b, c,
		func(left, right *model.LineCoverage) (*model.LineCoverage, error) {
			return model.MergeLine(left, right, model.DefaultMergeOptions)
		},
		func(l *model.LineCoverage) any { return modeltest.ViewLine(l, modeltest.Options{}) },
	)
}

func TestMergeBranch_Laws(t *testing.T) {
	for i, name := range []string{"Counted", "Fallthrough"} {
		t.Run(name, func(t *testing.T) {
			branch := func(source string, seed int) *model.BranchCoverage {
				return unitLine(t, source, seed).Branches()[i]
			}
			assertMergeLaws(t, branch("a.gcov", 1), branch("b.gcov", 2), branch("c.gcov", 3),
				func(left, right *model.BranchCoverage) (*model.BranchCoverage, error) {
					return model.MergeBranch(left, right, model.DefaultMergeOptions)
				},
				func(b *model.BranchCoverage) any { return b },
			)
		})
	}
}

func TestMergeCall_Laws(t *testing.T) {
	call := func(source string, seed int) *model.CallCoverage {
		return unitLine(t, source, seed).Calls()[0]
	}
	assertMergeLaws(t, call("a.gcov", 1), call("b.gcov", 2), call("c.gcov", 3),
		func(left, right *model.CallCoverage) (*model.CallCoverage, error) {
			return model.MergeCall(left, right, model.DefaultMergeOptions)
		},
		func(c *model.CallCoverage) any { return c },
	)
}

func TestMergeCondition_Laws(t *testing.T) {
	condition := func(source string, seed int) *model.ConditionCoverage {
		return unitLine(t, source, seed).Conditions()[0]
	}
	a, b, c := condition("a.gcov", 1), condition("b.gcov", 2), condition("c.gcov", 3)
	view := func(c *model.ConditionCoverage) any { return c }

	t.Run("Strict", func(t *testing.T) {
		assertMergeLaws(t, a, b, c,
			func(left, right *model.ConditionCoverage) (*model.ConditionCoverage, error) {
				return model.MergeCondition(left, right, model.DefaultMergeOptions)
			},
			view,
		)
	})

	t.Run("Fold", func(t *testing.T) {
		opts := model.MergeOptions{Conditions: model.ConditionMergeFold}
		small := &model.ConditionCoverage{
			DataSources: model.NewDataSources("d.gcov"), Count: 2, Covered: 1,
			NotCoveredTrue: []int{0}, NotCoveredFalse: []int{},
		}
		assertMergeLaws(t, a, small, c,
			func(left, right *model.ConditionCoverage) (*model.ConditionCoverage, error) {
				return model.MergeCondition(left, right, opts)
			},
			view,
		)
	})
}

func TestMergeFunction_Laws(t *testing.T) {
	function := func(source string, lineno, count int, blocks float64, start, end *model.Position) *model.FunctionCoverage {
		t.Helper()
		ds := model.NewDataSources(source)
		f := model.NewFileCoverage("src/a.c", ds)
		fn, err := f.InsertFunction(model.FunctionSpec{
			DataSources: ds,
			MangledName: "main",
			Lineno:      lineno,
			Count:       count,
			Blocks:      blocks,
			Start:       start,
			End:         end,
		}, model.DefaultMergeOptions)
		require.NoError(t, err)
		return fn
	}
	a := function("a.gcov", 2, 1, 10, &model.Position{Line: 2, Column: 1}, &model.Position{Line: 9, Column: 1})
	b := function("b.gcov", 5, 2, 30, &model.Position{Line: 5, Column: 3}, &model.Position{Line: 12, Column: 0})
	c := function("c.gcov", 7, 4, 20, nil, nil)

	tests := []struct {
		mode      model.FunctionMergeMode
		wantCount map[int]int
	}{
		{mode: model.FunctionMergeUseLineZero, wantCount: map[int]int{0: 3}},
		{mode: model.FunctionMergeUseLineMin, wantCount: map[int]int{2: 3}},
		{mode: model.FunctionMergeUseLineMax, wantCount: map[int]int{5: 3}},
		{mode: model.FunctionMergeSeparate, wantCount: map[int]int{2: 1, 5: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			opts := model.MergeOptions{Functions: tt.mode}
			merge := func(left, right *model.FunctionCoverage) (*model.FunctionCoverage, error) {
				return model.MergeFunction(left, right, opts)
			}
			assertMergeLaws(t, a, b, c, merge, func(f *model.FunctionCoverage) any { return f })

			merged, err := merge(a, b)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, merged.Count)
			assert.Equal(t, []string{"a.gcov", "b.gcov"}, merged.DataSources.Strings())
		})
	}

	t.Run("StrictRejectsOtherLines", func(t *testing.T) {
		_, err := model.MergeFunction(a, b, model.DefaultMergeOptions)
		var mergeErr *model.MergeError
		require.ErrorAs(t, err, &mergeErr)
		assert.Contains(t, err.Error(), "Got function main on multiple lines: 2, 5.")
	})
}
