package parser

import (
	"github.com/gcovr/gcovr-sub000/internal/model"
)

// FileResult is the coverage of one source file read from a data file,
// together with the decoded source lines the exclusion and decision passes
// work on.
type FileResult struct {
	Coverage    *model.FileCoverage
	SourceLines []string
}

// ParserResult holds the processed data from a single coverage data file.
type ParserResult struct {
	Files      []FileResult
	ParserName string
}

// IParser defines the contract for all coverage data parsers.
type IParser interface {
	Name() string
	SupportsFile(filePath string) bool
	Parse(filePath string, config ParserConfig) (*ParserResult, error)
}
