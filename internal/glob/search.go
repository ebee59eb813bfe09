package glob

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/filesystem"
)

// FindFiles walks the search paths and returns the files whose name ends
// with one of the suffixes, sorted and without duplicates. A search path
// naming a file is returned if it has a matching suffix.
func FindFiles(fsys filesystem.Filesystem, searchPaths []string, suffixes ...string) ([]string, error) {
	seen := map[string]bool{}
	var result []string
	add := func(path string) {
		if !seen[path] && hasSuffix(path, suffixes) {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, searchPath := range searchPaths {
		abs, err := fsys.Abs(searchPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve search path '%s': %w", searchPath, err)
		}
		info, err := fsys.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("search path '%s' does not exist: %w", searchPath, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		slog.Debug("Scanning directory for data files.", "dir", abs)
		walkFiles(fsys, abs, add)
	}
	slices.Sort(result)
	return result, nil
}

func walkFiles(fsys filesystem.Filesystem, dir string, visit func(string)) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		slog.Warn("Error reading directory.", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			walkFiles(fsys, path, visit)
		} else {
			visit(path)
		}
	}
}

func hasSuffix(path string, suffixes []string) bool {
	name := filepath.Base(path)
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
