package parser

import (
	"github.com/gcovr/gcovr-sub000/internal/parser/filtering"
	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
)

// ParserConfig defines the lean configuration required by a parser.
// This consumer-defined interface decouples parsers from the main report configuration.
type ParserConfig interface {
	// RootDirectory is the base for relative source paths.
	RootDirectory() string
	FileFilters() filtering.IFilter
	IgnoreParseErrors() hits.IgnoreSet
	// SuspiciousHitsThreshold is 0 when the check is disabled.
	SuspiciousHitsThreshold() int64
	SourceEncoding() string
}
