package parser

import (
	"fmt"
	"sync"
)

var (
	registryMu        sync.RWMutex
	registeredParsers []IParser
)

// RegisterParser adds a parser to the list of available parsers.
// This should be called by each parser implementation in its init() function.
func RegisterParser(p IParser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registeredParsers = append(registeredParsers, p)
}

// GetParsers returns all registered parsers.
func GetParsers() []IParser {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]IParser(nil), registeredParsers...)
}

// FindParserForFile attempts to find a suitable parser for the given file.
// It iterates through registered parsers and calls their SupportsFile method.
func FindParserForFile(filePath string) (IParser, error) {
	for _, p := range GetParsers() {
		if p.SupportsFile(filePath) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no suitable parser found for file: %s", filePath)
}
