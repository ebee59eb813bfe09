package gcovtext

import (
	"math"
	"strconv"
	"testing"

	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(t *testing.T, ignore ...string) *hits.Checker {
	t.Helper()
	set, err := hits.ParseIgnoreSet(ignore)
	require.NoError(t, err)
	return hits.NewChecker(set, hits.SuspiciousCounter)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		ignore []string
		want   Event
	}{
		{name: "Noncode", line: "     -: 13:struct Foo{};", want: SourceLine{Hits: 0, Lineno: 13, Code: "struct Foo{};", Extra: Noncode}},
		{name: "Count", line: "    12: 13:foo += 1;  ", want: SourceLine{Hits: 12, Lineno: 13, Code: "foo += 1;  "}},
		{name: "Uncovered", line: " #####: 13:foo += 1;", want: SourceLine{Hits: 0, Lineno: 13, Code: "foo += 1;"}},
		{name: "LargeLineno", line: " #####:10000:foo += 1;", want: SourceLine{Hits: 0, Lineno: 10000, Code: "foo += 1;"}},
		{name: "ExceptionOnly", line: " =====: 13:foo += 1;", want: SourceLine{Hits: 0, Lineno: 13, Code: "foo += 1;", Extra: ExceptionOnly}},
		{name: "Partial", line: "   12*: 13:cond ? f() : g();", want: SourceLine{Hits: 12, Lineno: 13, Code: "cond ? f() : g();", Extra: Partial}},
		{name: "PartialWithUnit", line: " 1.7k*: 13:foo();", want: SourceLine{Hits: 1700, Lineno: 13, Code: "foo();", Extra: Partial}},
		{name: "Metadata", line: "  -: 0:Foo:bar baz", want: MetadataLine{Key: "Foo", Value: "bar baz", HasValue: true}},
		{name: "MetadataNumber", line: "  -: 0:Some key:2", want: MetadataLine{Key: "Some key", Value: "2", HasValue: true}},
		{name: "MetadataWithoutValue", line: "  -: 0:Key", want: MetadataLine{Key: "Key"}},
		{name: "BranchPercent", line: "branch 3 taken 15%", want: BranchLine{BranchNo: 3, Hits: 1}},
		{name: "BranchZeroPercent", line: "branch 3 taken 0%", want: BranchLine{BranchNo: 3, Hits: 0}},
		{name: "BranchCount", line: "branch 3 taken 123", want: BranchLine{BranchNo: 3, Hits: 123}},
		{name: "BranchNegativeWarn", line: "branch 3 taken -1", ignore: []string{hits.IgnoreNegativeWarn}, want: BranchLine{BranchNo: 3, Hits: 0}},
		{name: "BranchSuspiciousWarn", line: "branch 3 taken 4294967296", ignore: []string{hits.IgnoreSuspiciousWarn}, want: BranchLine{BranchNo: 3, Hits: 0}},
		{name: "BranchFallthrough", line: "branch 7 taken 3% (fallthrough)", want: BranchLine{BranchNo: 7, Hits: 1, Annotation: "fallthrough"}},
		{name: "BranchThrow", line: "branch 17 taken 99% (throw)", want: BranchLine{BranchNo: 17, Hits: 1, Annotation: "throw"}},
		{name: "BranchNeverExecuted", line: "branch  0 never executed", want: BranchLine{BranchNo: 0, Hits: 0}},
		{name: "BranchNeverExecutedAnnotated", line: "branch  0 never executed (fallthrough)", want: BranchLine{BranchNo: 0, Annotation: "fallthrough"}},
		{name: "CallNeverExecuted", line: "call  0 never executed", want: CallLine{CallNo: 0, Returned: 0}},
		{name: "CallPercent", line: "call  17 returned 50%", want: CallLine{CallNo: 17, Returned: 1}},
		{name: "CallCount", line: "call  17 returned 9", want: CallLine{CallNo: 17, Returned: 9}},
		{name: "Unconditional", line: "unconditional 1 taken 17", want: UnconditionalLine{BranchNo: 1, Hits: 17}},
		{name: "UnconditionalNegativeWarn", line: "unconditional 2 taken -1", ignore: []string{hits.IgnoreNegativeWarn}, want: UnconditionalLine{BranchNo: 2}},
		{name: "UnconditionalNeverExecuted", line: "unconditional 3 never executed", want: UnconditionalLine{BranchNo: 3}},
		{name: "Function", line: "function foo called 2 returned 1 blocks executed 85%", want: FunctionLine{Name: "foo", CallCount: 2, BlocksCovered: 85}},
		{name: "FunctionReturnedPercent", line: "function foo called 2 returned 50% blocks executed 85%", want: FunctionLine{Name: "foo", CallCount: 2, BlocksCovered: 85}},
		{name: "FunctionDemangled", line: "function ns::foo(int) const called 0 returned 0% blocks executed 0%", want: FunctionLine{Name: "ns::foo(int) const"}},
		{name: "Separator", line: "------------------", want: SpecializationSeparatorLine{}},
		{name: "SpecializationName", line: "Foo<bar>::baz():", want: SpecializationNameLine{Name: "Foo<bar>::baz()"}},
		{name: "Block", line: "     1: 32-block  0", want: BlockLine{Hits: 1, Lineno: 32, BlockID: 0}},
		{name: "BlockUncovered", line: " %%%%%: 33-block  1", want: BlockLine{Hits: 0, Lineno: 33, BlockID: 1}},
		{name: "BlockExceptionOnly", line: " $$$$$: 33-block  1", want: BlockLine{Lineno: 33, BlockID: 1, Extra: ExceptionOnly}},
		{name: "BlockLargeLineno", line: " %%%%%:10000-block  0", want: BlockLine{Lineno: 10000}},
		{name: "BlockNegativeWarn", line: "     -1: 32-block  0", ignore: []string{hits.IgnoreNegativeWarn}, want: BlockLine{Lineno: 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.line, checker(t, tt.ignore...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr any
	}{
		{name: "BranchUnknownFormat", line: "branch 2 with some unknown format", wantErr: &UnknownLineError{}},
		{name: "CallUnknownFormat", line: "call 2 with some unknown format", wantErr: &UnknownLineError{}},
		{name: "UnconditionalUnknownFormat", line: "unconditional with some unknown format", wantErr: &UnknownLineError{}},
		{name: "FunctionUnknownFormat", line: "function foo with some unknown format", wantErr: &UnknownLineError{}},
		{name: "IndentedSpecializationName", line: " foo:", wantErr: &UnknownLineError{}},
		{name: "OnlyColon", line: ":", wantErr: &UnknownLineError{}},
		{name: "BlockUnknownFormat", line: "     1: 9-block with some unknown format", wantErr: &UnknownLineError{}},
		{name: "Garbage", line: "nonexistent_tag foo bar", wantErr: &UnknownLineError{}},
		{name: "NegativeBranch", line: "branch 3 taken -1", wantErr: &hits.NegativeHitsError{}},
		{name: "NegativeSource", line: "    -5: 3:x;", wantErr: &hits.NegativeHitsError{}},
		{name: "SuspiciousSource", line: "4294967296: 3:x;", wantErr: &hits.SuspiciousHitsError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.line, checker(t))
			require.Error(t, err)
			assert.IsType(t, tt.wantErr, err)
		})
	}

	_, err := Tokenize("garbage", nil)
	assert.EqualError(t, err, "garbage")
}

func TestTokenize_NilChecker(t *testing.T) {
	got, err := Tokenize("    -5: 3:x;", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceLine{Hits: -5, Lineno: 3, Code: "x;"}, got)
}

func TestIntFromGcovUnit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"123", 123},
		{"-1.2k", -1200},
		{"NAN %", 0},
		{"17.2%", 1},
		{"0%", 0},
		{"1.7k", 1700},
		{"0.5G", 500000000},
		{"2M", 2000000},
		{"18446744073709551615", math.MaxInt64},
		{"18.4E", math.MaxInt64},
		{"9E", 9000000000000000000},
		{"1Z", math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := intFromGcovUnit(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := intFromGcovUnit("1.5")
	assert.Error(t, err)
	_, err = intFromGcovUnit("-18446744073709551615")
	assert.ErrorIs(t, err, strconv.ErrRange)
}

func TestFloatFromGcovPercent(t *testing.T) {
	got, err := floatFromGcovPercent("17.2%")
	require.NoError(t, err)
	assert.Equal(t, 17.2, got)

	got, err = floatFromGcovPercent("NAN %")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	_, err = floatFromGcovPercent("17")
	assert.EqualError(t, err, "Number must end with %, got 17")
}

func TestExtraInfoString(t *testing.T) {
	assert.Equal(t, "NONE", ExtraInfo(0).String())
	assert.Equal(t, "NONCODE", Noncode.String())
	assert.Equal(t, "EXCEPTION_ONLY|PARTIAL", (ExceptionOnly | Partial).String())
}
