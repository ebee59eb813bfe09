package model

import (
	"sort"
	"strings"
)

// DataSources is the provenance set of a coverage entity. Each element is a
// chain of paths, e.g. the gcov data file and the intermediate file it was
// read through. The set is unioned on merge and never shrinks.
type DataSources map[string][]string

const sourceChainSeparator = " -> "

// NewDataSources returns a set holding one chain built from the given paths.
// Calling it without arguments returns an empty set.
func NewDataSources(chain ...string) DataSources {
	ds := DataSources{}
	if len(chain) > 0 {
		ds.Add(chain...)
	}
	return ds
}

// Add inserts one chain into the set.
func (ds DataSources) Add(chain ...string) {
	key := strings.Join(chain, sourceChainSeparator)
	if _, ok := ds[key]; ok {
		return
	}
	ds[key] = append([]string(nil), chain...)
}

// Update inserts all chains of other into the set.
func (ds DataSources) Update(other DataSources) {
	for key, chain := range other {
		if _, ok := ds[key]; !ok {
			ds[key] = append([]string(nil), chain...)
		}
	}
}

// Union returns a new set with the chains of both sets.
func (ds DataSources) Union(other DataSources) DataSources {
	result := ds.Clone()
	result.Update(other)
	return result
}

// Clone returns an independent copy of the set.
func (ds DataSources) Clone() DataSources {
	result := make(DataSources, len(ds))
	result.Update(ds)
	return result
}

// Contains reports whether every chain of other is also in ds.
func (ds DataSources) Contains(other DataSources) bool {
	for key := range other {
		if _, ok := ds[key]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the chains in lexical order.
func (ds DataSources) Sorted() [][]string {
	keys := make([]string, 0, len(ds))
	for key := range ds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([][]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, append([]string(nil), ds[key]...))
	}
	return result
}

// Strings returns the chains joined with " -> ", in lexical order.
func (ds DataSources) Strings() []string {
	keys := make([]string, 0, len(ds))
	for key := range ds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
