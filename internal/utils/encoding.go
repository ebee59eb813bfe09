package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// DetectEncoding reads the first bytes of a file and returns the encoding
// announced by its byte order mark, or nil if it has none.
func DetectEncoding(filePath string) (encoding.Encoding, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read header of %s: %w", filePath, err)
	}
	return DetectEncodingFromBytes(head[:n]), nil
}

// DetectEncodingFromBytes is DetectEncoding for data already in memory.
func DetectEncodingFromBytes(data []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return unicode.UTF8BOM
	case bytes.HasPrefix(data, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	}
	return nil
}
