package filtering

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// IFilter defines an interface for filtering elements.
type IFilter interface {
	IsElementIncludedInReport(name string) bool
	HasCustomFilters() bool
}

// pathPattern is one --filter or --exclude regex. Absolute patterns match
// the absolute path, all others the path relative to the root.
type pathPattern struct {
	re       *regexp.Regexp
	absolute bool
}

// PathFilter is the IFilter for source and data file paths. A path is
// included if any include pattern matches from its start and no exclude
// pattern does. Paths always use "/" when matched.
type PathFilter struct {
	root    string
	include []pathPattern
	exclude []pathPattern
}

// NewPathFilter creates a PathFilter. Without include patterns every file
// below root is included.
func NewPathFilter(root string, include, exclude []string) (IFilter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("error resolving filter root %q: %w", root, err)
	}
	pf := &PathFilter{root: absRoot}
	var errs []string

	for _, f := range include {
		p, err := compilePattern(f)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid include filter '%s': %v", f, err))
			continue
		}
		pf.include = append(pf.include, p)
	}
	for _, f := range exclude {
		p, err := compilePattern(f)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid exclude filter '%s': %v", f, err))
			continue
		}
		pf.exclude = append(pf.exclude, p)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("error creating path filter: %s", strings.Join(errs, "; "))
	}
	return pf, nil
}

// IsElementIncludedInReport checks if the given path matches the filter rules.
func (pf *PathFilter) IsElementIncludedInReport(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}
	rel, err := filepath.Rel(pf.root, abs)
	if err != nil {
		rel = abs
	}
	rel, abs = filepath.ToSlash(rel), filepath.ToSlash(abs)

	if len(pf.include) == 0 {
		if rel == ".." || strings.HasPrefix(rel, "../") {
			slog.Debug("File is outside of the root directory.", "path", abs, "root", pf.root)
			return false
		}
	} else if !matchAny(pf.include, rel, abs) {
		slog.Debug("No include filter matched.", "path", abs)
		return false
	}

	if matchAny(pf.exclude, rel, abs) {
		slog.Debug("Exclude filter matched.", "path", abs)
		return false
	}
	return true
}

// HasCustomFilters returns true if any include or exclude filters were specified.
func (pf *PathFilter) HasCustomFilters() bool {
	return len(pf.include) > 0 || len(pf.exclude) > 0
}

func matchAny(patterns []pathPattern, rel, abs string) bool {
	for _, p := range patterns {
		target := rel
		if p.absolute {
			target = abs
		}
		if p.re.MatchString(target) {
			return true
		}
	}
	return false
}

// compilePattern anchors the regex at the start of the path, case
// insensitive on file systems that are.
func compilePattern(pattern string) (pathPattern, error) {
	if pattern == "" {
		return pathPattern{}, fmt.Errorf("empty filter string")
	}
	flags := ""
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + "^(?:" + pattern + ")")
	if err != nil {
		return pathPattern{}, err
	}
	// A pattern for an absolute path starts with "/" or a drive letter.
	absolute := strings.HasPrefix(pattern, "/") || filepath.IsAbs(strings.ReplaceAll(pattern, `\\`, `\`))
	return pathPattern{re: re, absolute: absolute}, nil
}
