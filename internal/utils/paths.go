package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/filesystem"
)

// GuessSourceFileName resolves the Source entry of a gcov text file to a
// path. Absolute names are returned as they are. Relative names are tried
// against the common directory of the gcov file and the working directory,
// the directory of the gcov file, the working directory and finally the
// root directory. If nothing exists, the name relative to the gcov file is
// returned.
func GuessSourceFileName(fsys filesystem.Filesystem, source, dataFile, rootDir string) string {
	// gcov writes "/" even on Windows.
	source = filepath.FromSlash(source)
	if filepath.IsAbs(source) {
		return source
	}

	cwd, err := fsys.Getwd()
	if err != nil {
		cwd = "."
	}
	dataFile, err = fsys.Abs(dataFile)
	if err != nil {
		dataFile = filepath.Clean(dataFile)
	}
	dataDir := filepath.Dir(dataFile)

	candidates := []string{
		filepath.Join(commonPath(dataFile, cwd), source),
		filepath.Join(dataDir, source),
		filepath.Join(cwd, source),
	}
	if rootDir != "" {
		candidates = append(candidates, filepath.Join(rootDir, source))
	}

	fname := candidates[1]
	for _, candidate := range candidates {
		if _, err := fsys.Stat(candidate); err == nil {
			fname = candidate
			break
		}
	}
	if abs, err := fsys.Abs(fname); err == nil {
		fname = abs
	}

	slog.Debug("Finding source file corresponding to a gcov data file.",
		"gcov_fname", dataFile, "current_dir", cwd, "root", rootDir, "source", source, "fname", fname)
	return fname
}

// commonPath returns the longest common directory of two absolute paths.
func commonPath(a, b string) string {
	sep := string(os.PathSeparator)
	partsA := strings.Split(filepath.Clean(a), sep)
	partsB := strings.Split(filepath.Clean(b), sep)
	n := 0
	for n < len(partsA) && n < len(partsB) && partsA[n] == partsB[n] {
		n++
	}
	common := strings.Join(partsA[:n], sep)
	if common == "" {
		return sep
	}
	return common
}

// FindFileInSourceDirs attempts to locate a file, first checking if it's absolute,
// then searching through the provided source directories. A path that does
// not exist below a directory is retried with its leading components
// removed.
func FindFileInSourceDirs(fsys filesystem.Filesystem, relativePath string, sourceDirs []string) (string, bool) {
	if filepath.IsAbs(relativePath) {
		if _, err := fsys.Stat(relativePath); err == nil {
			return relativePath, true
		}
	}

	cleanedRelativePath := filepath.Clean(relativePath)
	pathParts := strings.Split(cleanedRelativePath, string(os.PathSeparator))
	for _, dir := range sourceDirs {
		for i := 0; i < len(pathParts); i++ {
			potentialPath := filepath.Join(filepath.Clean(dir), filepath.Join(pathParts[i:]...))
			if _, err := fsys.Stat(potentialPath); err == nil {
				return potentialPath, true
			}
		}
	}
	return "", false
}
