// Package filesystem abstracts the file system calls used to locate data
// files and source files, so they can be served from memory in tests.
package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Filesystem is the read-only view used for path resolution and discovery.
type Filesystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Getwd() (string, error)
	Abs(path string) (string, error)
}

// Remover deletes consumed data files.
type Remover interface {
	Remove(name string) error
}

// DefaultFS is the file system of the host.
type DefaultFS struct{}

func (DefaultFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (DefaultFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (DefaultFS) Getwd() (string, error)                     { return os.Getwd() }
func (DefaultFS) Abs(path string) (string, error)            { return filepath.Abs(path) }
func (DefaultFS) Remove(name string) error                   { return os.Remove(name) }
