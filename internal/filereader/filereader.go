package filereader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gcovr/gcovr-sub000/internal/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultCacheSize is the number of decoded files a Reader keeps.
const DefaultCacheSize = 256

// FileReader reads text files as decoded lines.
type FileReader interface {
	ReadFile(path string) ([]string, error)
}

// Reader decodes files with a configured encoding and keeps the most recently
// read files in memory. A byte order mark in the file overrides the
// configured encoding. Invalid input is replaced, never rejected. A Reader
// is safe for concurrent use.
type Reader struct {
	encoding encoding.Encoding
	cache    *lru.Cache[string, []string]
}

// New creates a Reader for the named encoding, e.g. "utf-8" or "latin1".
// A cacheSize of 0 selects DefaultCacheSize, a negative one disables the
// cache.
func New(encodingName string, cacheSize int) (*Reader, error) {
	if encodingName == "" {
		encodingName = "utf-8"
	}
	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return nil, fmt.Errorf("unknown source encoding %q: %w", encodingName, err)
	}
	if cacheSize < 0 {
		return &Reader{encoding: enc}, nil
	}
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Reader{encoding: enc, cache: cache}, nil
}

var (
	sharedMu      sync.Mutex
	sharedReaders = map[string]*Reader{}
)

// Shared returns the process wide Reader for an encoding, so that parsers
// working on many data files read every source file once.
func Shared(encodingName string) (*Reader, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if r, ok := sharedReaders[encodingName]; ok {
		return r, nil
	}
	r, err := New(encodingName, DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	sharedReaders[encodingName] = r
	return r, nil
}

// ReadFile returns the lines of a file without line terminators. The caller
// owns the returned slice.
func (r *Reader) ReadFile(path string) ([]string, error) {
	if r.cache == nil {
		return ReadLinesInFile(path, r.encoding)
	}
	if lines, ok := r.cache.Get(path); ok {
		return slices.Clone(lines), nil
	}
	lines, err := ReadLinesInFile(path, r.encoding)
	if err != nil {
		return nil, err
	}
	r.cache.Add(path, lines)
	return slices.Clone(lines), nil
}

// ReadLinesInFile reads all lines from a file. The encoding announced by a
// byte order mark wins over enc.
func ReadLinesInFile(filePath string, enc encoding.Encoding) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	detectedEncoding, err := utils.DetectEncoding(filePath)
	if err != nil {
		slog.Warn("Could not detect encoding, using the configured one.", "file", filePath, "error", err)
	}
	if detectedEncoding != nil {
		enc = detectedEncoding
	}

	var reader io.Reader = file
	if enc != nil {
		reader = transform.NewReader(file, enc.NewDecoder())
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text at "\r\n", "\n" and "\r". A trailing line
// terminator does not start another line.
func SplitLines(text string) []string {
	lines := []string{}
	for len(text) > 0 {
		i := strings.IndexAny(text, "\r\n")
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i])
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			i++
		}
		text = text[i+1:]
	}
	return lines
}
