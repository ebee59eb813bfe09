package gcovtext

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/filereader"
	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser"
	"github.com/gcovr/gcovr-sub000/internal/utils"
)

// GcovTextParser implements the parser.IParser interface for *.gcov files.
type GcovTextParser struct {
	fileReader filereader.FileReader
	fs         filesystem.Filesystem
}

// NewGcovTextParser creates a GcovTextParser. Without a fileReader the
// data files are read with the source encoding of the configuration.
func NewGcovTextParser(fileReader filereader.FileReader, fs filesystem.Filesystem) parser.IParser {
	if fs == nil {
		fs = filesystem.DefaultFS{}
	}
	return &GcovTextParser{fileReader: fileReader, fs: fs}
}

func init() {
	parser.RegisterParser(NewGcovTextParser(nil, nil))
}

// Name returns the name of the parser.
func (p *GcovTextParser) Name() string {
	return "GcovText"
}

// SupportsFile checks if the file is a gcov text file.
func (p *GcovTextParser) SupportsFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".gcov")
}

// Parse reads one gcov text file. The result is empty if the source file
// is rejected by the file filters.
func (p *GcovTextParser) Parse(filePath string, config parser.ParserConfig) (*parser.ParserResult, error) {
	reader := p.fileReader
	if reader == nil {
		r, err := filereader.New(config.SourceEncoding(), -1)
		if err != nil {
			return nil, err
		}
		reader = r
	}

	lines, err := reader.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcov file %s: %w", filePath, err)
	}

	metadata, err := ParseMetadata(lines, config.SuspiciousHitsThreshold())
	if err != nil {
		return nil, err
	}
	fname := utils.GuessSourceFileName(p.fs, metadata.Source(), filePath, config.RootDirectory())

	result := &parser.ParserResult{ParserName: p.Name()}
	if filters := config.FileFilters(); filters != nil && !filters.IsElementIncludedInReport(fname) {
		slog.Debug("Source file is filtered out.", "file", fname, "gcov", filePath)
		return result, nil
	}

	slog.Debug("Parsing coverage data for file.", "file", fname)
	filecov, sourceLines, err := ParseCoverage(lines, Options{
		Filename:                filepath.Clean(fname),
		DataSources:             model.NewDataSources(filePath),
		IgnoreParseErrors:       config.IgnoreParseErrors(),
		SuspiciousHitsThreshold: config.SuspiciousHitsThreshold(),
		UseExistingFiles:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse gcov file %s: %w", filePath, err)
	}

	result.Files = append(result.Files, parser.FileResult{Coverage: filecov, SourceLines: sourceLines})
	return result, nil
}
