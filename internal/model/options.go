package model

import (
	"errors"
	"fmt"
)

// ErrUnknownMergeMode is returned when a merge mode name is not recognized.
var ErrUnknownMergeMode = errors.New("unknown merge mode")

// FunctionMergeMode defines how function coverage found on different lines
// is combined.
type FunctionMergeMode int

const (
	// FunctionMergeStrict fails if a function is reported on different lines.
	FunctionMergeStrict FunctionMergeMode = iota
	FunctionMergeUseLineZero
	FunctionMergeUseLineMin
	FunctionMergeUseLineMax
	// FunctionMergeSeparate keeps one counter per line.
	FunctionMergeSeparate
)

var functionMergeModeNames = map[FunctionMergeMode]string{
	FunctionMergeStrict:      "strict",
	FunctionMergeUseLineZero: "merge-use-line-0",
	FunctionMergeUseLineMin:  "merge-use-line-min",
	FunctionMergeUseLineMax:  "merge-use-line-max",
	FunctionMergeSeparate:    "separate",
}

func (m FunctionMergeMode) String() string {
	if name, ok := functionMergeModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("FunctionMergeMode(%d)", int(m))
}

// ParseFunctionMergeMode converts a CLI or config value into a mode.
func ParseFunctionMergeMode(s string) (FunctionMergeMode, error) {
	for mode, name := range functionMergeModeNames {
		if name == s {
			return mode, nil
		}
	}
	return FunctionMergeStrict, fmt.Errorf("%w for functions: %q", ErrUnknownMergeMode, s)
}

// ConditionMergeMode defines how conditions with different counts are merged.
type ConditionMergeMode int

const (
	ConditionMergeStrict ConditionMergeMode = iota
	// ConditionMergeFold reduces both sides to the smaller count.
	ConditionMergeFold
)

func (m ConditionMergeMode) String() string {
	switch m {
	case ConditionMergeStrict:
		return "strict"
	case ConditionMergeFold:
		return "fold"
	default:
		return fmt.Sprintf("ConditionMergeMode(%d)", int(m))
	}
}

// ParseConditionMergeMode converts a CLI or config value into a mode.
func ParseConditionMergeMode(s string) (ConditionMergeMode, error) {
	switch s {
	case "strict":
		return ConditionMergeStrict, nil
	case "fold":
		return ConditionMergeFold, nil
	default:
		return ConditionMergeStrict, fmt.Errorf("%w for conditions: %q", ErrUnknownMergeMode, s)
	}
}

// MergeOptions controls every merge operation of the model.
type MergeOptions struct {
	Functions  FunctionMergeMode
	Conditions ConditionMergeMode
}

// DefaultMergeOptions is strict for functions and conditions.
var DefaultMergeOptions = MergeOptions{}

// FunctionMaxLineMergeOptions is used by the parsers when inserting
// functions: the same function reported twice in one unit ends up on the
// largest line.
var FunctionMaxLineMergeOptions = MergeOptions{Functions: FunctionMergeUseLineMax}

func (o MergeOptions) ignoreFunctionLineno() bool {
	return o.Functions != FunctionMergeStrict
}
