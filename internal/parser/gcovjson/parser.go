package gcovjson

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/filereader"
	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	"github.com/gcovr/gcovr-sub000/internal/parser"
)

// GcovJSONParser implements the parser.IParser interface for the gcov JSON
// intermediate format.
type GcovJSONParser struct {
	sourceReader filereader.FileReader
	fs           filesystem.Filesystem
}

// NewGcovJSONParser creates a GcovJSONParser. Without a sourceReader the
// sources are read with the shared reader for the configured encoding.
func NewGcovJSONParser(sourceReader filereader.FileReader, fs filesystem.Filesystem) parser.IParser {
	if fs == nil {
		fs = filesystem.DefaultFS{}
	}
	return &GcovJSONParser{sourceReader: sourceReader, fs: fs}
}

func init() {
	parser.RegisterParser(NewGcovJSONParser(nil, nil))
}

// Name returns the name of the parser.
func (p *GcovJSONParser) Name() string {
	return "GcovJson"
}

// SupportsFile checks if the file is a gcov JSON file, compressed or not.
func (p *GcovJSONParser) SupportsFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".gcov.json.gz") || strings.HasSuffix(filePath, ".gcov.json")
}

// Parse reads one gcov JSON file.
func (p *GcovJSONParser) Parse(filePath string, config parser.ParserConfig) (*parser.ParserResult, error) {
	reader := p.sourceReader
	if reader == nil {
		r, err := filereader.Shared(config.SourceEncoding())
		if err != nil {
			return nil, err
		}
		reader = r
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open gcov JSON file %s: %w", filePath, err)
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(filePath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gcov JSON file %s: %w", filePath, err)
		}
		defer gz.Close()
		in = gz
	}

	files, err := ParseCoverage(in, Options{
		DataFile:                filePath,
		RootDirectory:           config.RootDirectory(),
		Filters:                 config.FileFilters(),
		SourceReader:            reader,
		FS:                      p.fs,
		IgnoreParseErrors:       config.IgnoreParseErrors(),
		SuspiciousHitsThreshold: config.SuspiciousHitsThreshold(),
	})
	if err != nil {
		return nil, err
	}
	return &parser.ParserResult{Files: files, ParserName: p.Name()}, nil
}
