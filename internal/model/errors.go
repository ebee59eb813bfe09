package model

import (
	"fmt"
	"strings"
)

// DataError reports coverage data violating a model invariant, e.g. a
// negative count or inconsistent condition arithmetic.
type DataError struct {
	Location string
	Msg      string
	Sources  DataSources
}

func (e *DataError) Error() string {
	var b strings.Builder
	writeLocated(&b, e.Location, e.Msg)
	if len(e.Sources) == 1 {
		b.WriteString("\nGCOV data file is:")
	} else {
		b.WriteString("\nGCOV data files are:")
	}
	writeSources(&b, e.Sources)
	return b.String()
}

// MergeError reports two coverage items that cannot be combined. Source is
// the provenance of the item merged in, Target the one merged into.
type MergeError struct {
	Location string
	Msg      string
	Source   DataSources
	Target   DataSources
}

func (e *MergeError) Error() string {
	var b strings.Builder
	writeLocated(&b, e.Location, e.Msg)
	if len(e.Source) == 1 {
		b.WriteString("\nGCOV data file of merge source is:")
	} else {
		b.WriteString("\nGCOV data files of merge source are:")
	}
	writeSources(&b, e.Source)
	if len(e.Target) == 1 {
		b.WriteString("\nand of merge target is:")
	} else {
		b.WriteString("\nand of merge target are:")
	}
	writeSources(&b, e.Target)
	return b.String()
}

func writeLocated(b *strings.Builder, location, msg string) {
	if location != "" {
		b.WriteString(location)
		b.WriteString(" ")
	}
	b.WriteString(msg)
}

func writeSources(b *strings.Builder, sources DataSources) {
	for _, chain := range sources.Strings() {
		b.WriteString("\n   ")
		b.WriteString(chain)
	}
}

func newDataError(location, msg string, sources DataSources) *DataError {
	return &DataError{Location: location, Msg: msg, Sources: sources.Clone()}
}

func newMergeError(location, msg string, target, source DataSources) *MergeError {
	return &MergeError{Location: location, Msg: msg, Source: source.Clone(), Target: target.Clone()}
}

// mergeOptionalInt returns the defined value of left and right and fails if
// both are defined with different values.
func mergeOptionalInt(location, what string, left, right *int, target, source DataSources) (*int, error) {
	if left != nil && right != nil && *left != *right {
		return nil, newMergeError(location, fmt.Sprintf("%s must be equal, got %d and %d.", what, *left, *right), target, source)
	}
	if left != nil {
		return Int(*left), nil
	}
	if right != nil {
		return Int(*right), nil
	}
	return nil, nil
}

// mergeOptionalString is mergeOptionalInt for strings where "" means unset.
func mergeOptionalString(location, what, left, right string, target, source DataSources) (string, error) {
	if left != "" && right != "" && left != right {
		return "", newMergeError(location, fmt.Sprintf("%s must be equal, got %s and %s.", what, left, right), target, source)
	}
	if left != "" {
		return left, nil
	}
	return right, nil
}

// Int returns a pointer to v, for the optional integer fields of the model.
func Int(v int) *int {
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func intOrMinusOne(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
