// Package glob finds files by matching their paths against a pattern.
// Supported are:
//   - `?`: any single character of a name.
//   - `*`: zero or more characters of a name.
//   - `**`: zero or more directories.
//   - `[...]`: a set of characters, e.g. `[abc]` or `[a-z]`.
//   - `{a,b,...}`: any of the alternatives, which may contain separators.
//
// Matching ignores case by default.
package glob

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	lru "github.com/hashicorp/golang-lru/v2"
)

const segmentCacheSize = 256

// segmentCache holds the compiled regexes of wildcard segments, keyed by
// segment and case mode.
var segmentCache, _ = lru.New[string, *regexp.Regexp](segmentCacheSize)

// regexSpecialChars are escaped when a segment is converted to a regex.
const regexSpecialChars = `\^$.|+(){}`

// Glob is a pattern bound to a file system.
type Glob struct {
	pattern string
	fs      filesystem.Filesystem
	// IgnoreCase makes wildcard segments case insensitive. Defaults to true.
	IgnoreCase bool
}

// NewGlob creates a Glob for pattern on fsys.
func NewGlob(pattern string, fsys filesystem.Filesystem) *Glob {
	return &Glob{pattern: pattern, fs: fsys, IgnoreCase: true}
}

func (g *Glob) String() string { return g.pattern }

// ExpandNames returns the absolute paths of all files and directories
// matching the pattern, sorted and without duplicates.
func (g *Glob) ExpandNames() ([]string, error) {
	if g.pattern == "" {
		return []string{}, nil
	}
	alternatives, err := ungroup(g.pattern)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	results := []string{}
	for _, alt := range alternatives {
		matches, err := g.expand(alt)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				results = append(results, m)
			}
		}
	}
	slices.Sort(results)
	return results, nil
}

// expand matches a pattern without groups segment by segment.
func (g *Glob) expand(pattern string) ([]string, error) {
	abs, err := g.fs.Abs(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pattern '%s': %w", pattern, err)
	}
	volume := filepath.VolumeName(abs)
	root := volume + string(filepath.Separator)
	rest := strings.Trim(abs[len(volume):], string(filepath.Separator))
	if rest == "" {
		return g.existing([]string{root}, false), nil
	}

	segments := strings.Split(rest, string(filepath.Separator))
	current := []string{root}
	for i, segment := range segments {
		last := i == len(segments)-1
		switch {
		case segment == "**":
			current = g.descend(current, !last)
		case !strings.ContainsAny(segment, "*?["):
			next := make([]string, 0, len(current))
			for _, dir := range current {
				next = append(next, g.literal(dir, segment)...)
			}
			current = g.existing(next, !last)
		default:
			re, err := g.compile(segment)
			if err != nil {
				return nil, err
			}
			current = g.matchChildren(current, re, !last)
		}
		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

// literal resolves a segment without wildcards inside dir. The name is
// looked up case insensitively if the exact name does not exist.
func (g *Glob) literal(dir, segment string) []string {
	path := filepath.Join(dir, segment)
	if _, err := g.fs.Stat(path); err == nil || !g.IgnoreCase {
		return []string{path}
	}
	entries, err := g.fs.ReadDir(dir)
	if err != nil {
		return nil
	}
	var found []string
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), segment) {
			found = append(found, filepath.Join(dir, entry.Name()))
		}
	}
	return found
}

// existing keeps the paths that exist, only directories if dirOnly.
func (g *Glob) existing(paths []string, dirOnly bool) []string {
	var result []string
	for _, p := range paths {
		info, err := g.fs.Stat(p)
		if err != nil || (dirOnly && !info.IsDir()) {
			continue
		}
		result = append(result, p)
	}
	return result
}

func (g *Glob) matchChildren(dirs []string, re *regexp.Regexp, dirOnly bool) []string {
	var result []string
	for _, dir := range dirs {
		entries, err := g.fs.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Error reading directory.", "dir", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if dirOnly && !entry.IsDir() {
				continue
			}
			if re.MatchString(entry.Name()) {
				result = append(result, filepath.Join(dir, entry.Name()))
			}
		}
	}
	return result
}

// descend returns the directories and everything below them. Only
// directories are returned if dirOnly.
func (g *Glob) descend(dirs []string, dirOnly bool) []string {
	seen := map[string]bool{}
	var result []string
	var walk func(dir string)
	walk = func(dir string) {
		if seen[dir] {
			return
		}
		seen[dir] = true
		result = append(result, dir)
		entries, err := g.fs.ReadDir(dir)
		if err != nil {
			slog.Warn("Error accessing directory during recursive search.", "dir", dir, "error", err)
			return
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				walk(path)
			} else if !dirOnly && !seen[path] {
				seen[path] = true
				result = append(result, path)
			}
		}
	}
	for _, dir := range dirs {
		walk(dir)
	}
	return result
}

func (g *Glob) compile(segment string) (*regexp.Regexp, error) {
	key := fmt.Sprintf("%s|%t", segment, g.IgnoreCase)
	if re, ok := segmentCache.Get(key); ok {
		return re, nil
	}
	expr, err := segmentToRegex(segment, g.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex '%s' from glob segment '%s': %w", expr, segment, err)
	}
	segmentCache.Add(key, re)
	return re, nil
}

// segmentToRegex converts one segment of a glob into an anchored regex.
func segmentToRegex(segment string, ignoreCase bool) (string, error) {
	var b strings.Builder
	if ignoreCase {
		b.WriteString("(?i)")
	}
	b.WriteByte('^')

	inClass := false
	for _, r := range segment {
		if inClass {
			if r == ']' {
				inClass = false
			}
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '*':
			b.WriteString(".*")
		case r == '?':
			b.WriteByte('.')
		case r == '[':
			inClass = true
			b.WriteRune(r)
		case strings.ContainsRune(regexSpecialChars, r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	if inClass {
		return "", fmt.Errorf("unterminated character class in glob segment: %s", segment)
	}
	b.WriteByte('$')
	return b.String(), nil
}

// ungroup expands braces, e.g. "{a,b}c" into "ac" and "bc". Groups can be
// nested.
func ungroup(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		if strings.Contains(pattern, "}") {
			return nil, fmt.Errorf("unbalanced braces in pattern: %s", pattern)
		}
		return []string{pattern}, nil
	}

	depth, closing := 0, -1
	var parts []string
	start := open + 1
	for i := open; i < len(pattern) && closing < 0; i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				parts = append(parts, pattern[start:i])
				closing = i
			}
		case ',':
			if depth == 1 {
				parts = append(parts, pattern[start:i])
				start = i + 1
			}
		}
	}
	if closing < 0 {
		return nil, fmt.Errorf("unbalanced braces in pattern: %s", pattern)
	}

	prefix, suffix := pattern[:open], pattern[closing+1:]
	var results []string
	for _, part := range parts {
		expanded, err := ungroup(prefix + part + suffix)
		if err != nil {
			return nil, err
		}
		results = append(results, expanded...)
	}
	return results, nil
}

// GetFiles returns the files matching pattern. Directories are dropped.
func GetFiles(fsys filesystem.Filesystem, pattern string) ([]string, error) {
	names, err := NewGlob(pattern, fsys).ExpandNames()
	if err != nil {
		return nil, err
	}
	files := names[:0]
	for _, name := range names {
		if info, err := fsys.Stat(name); err == nil && !info.IsDir() {
			files = append(files, name)
		}
	}
	return files, nil
}
