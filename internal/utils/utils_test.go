package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFileInfo struct{ name string }

func (m mockFileInfo) Name() string       { return m.name }
func (m mockFileInfo) Size() int64        { return 0 }
func (m mockFileInfo) Mode() fs.FileMode  { return 0o644 }
func (m mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m mockFileInfo) IsDir() bool        { return false }
func (m mockFileInfo) Sys() interface{}   { return nil }

// mockFS is a Filesystem with a fixed working directory and a set of
// existing files.
type mockFS struct {
	cwd   string
	files map[string]bool
}

func (m *mockFS) Stat(name string) (fs.FileInfo, error) {
	if m.files[filepath.Clean(name)] {
		return mockFileInfo{name: filepath.Base(name)}, nil
	}
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadDir(string) ([]fs.DirEntry, error) { return nil, errors.New("not supported") }
func (m *mockFS) Getwd() (string, error)                { return m.cwd, nil }

func (m *mockFS) Abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Join(m.cwd, path), nil
}

func TestGuessSourceFileName(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("paths in this test are POSIX paths")
	}
	tests := []struct {
		name     string
		files    []string
		source   string
		dataFile string
		root     string
		want     string
	}{
		{name: "Absolute", source: "/src/a.c", dataFile: "build/a.c.gcov", want: "/src/a.c"},
		{name: "RelativeToCommonDir", files: []string{"/work/src/a.c"}, source: "src/a.c", dataFile: "/work/build/a.c.gcov", want: "/work/src/a.c"},
		{name: "RelativeToDataFile", files: []string{"/work/build/gen/a.c"}, source: "gen/a.c", dataFile: "build/a.c.gcov", want: "/work/build/gen/a.c"},
		{name: "RelativeToRoot", files: []string{"/project/lib/a.c"}, source: "lib/a.c", dataFile: "/tmp/a.c.gcov", root: "/project", want: "/project/lib/a.c"},
		{name: "FallbackToDataFileDir", source: "x.c", dataFile: "/tmp/out/x.c.gcov", want: "/tmp/out/x.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := &mockFS{cwd: "/work", files: map[string]bool{}}
			for _, f := range tt.files {
				fsys.files[f] = true
			}
			assert.Equal(t, tt.want, GuessSourceFileName(fsys, tt.source, tt.dataFile, tt.root))
		})
	}
}

func TestFindFileInSourceDirs(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("paths in this test are POSIX paths")
	}
	fsys := &mockFS{cwd: "/", files: map[string]bool{"/checkout/src/a.c": true}}

	got, ok := FindFileInSourceDirs(fsys, "/ci/build/checkout/src/a.c", []string{"/other", "/"})
	require.True(t, ok)
	assert.Equal(t, "/checkout/src/a.c", got)

	_, ok = FindFileInSourceDirs(fsys, "b.c", []string{"/checkout"})
	assert.False(t, ok)
}

func TestSplitThatEnsuresGlobsAreSafe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "Simple", in: "a.json;b.json", want: []string{"a.json", "b.json"}},
		{name: "BraceGroup", in: "out/{x,y}.json,z.json", want: []string{"out/{x,y}.json", "z.json"}},
		{name: "EmptyParts", in: " ; a ;", want: []string{"a"}},
		{name: "Empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitThatEnsuresGlobsAreSafe(tt.in, []rune{';', ','}))
		})
	}
}

func TestDetectEncoding(t *testing.T) {
	assert.Nil(t, DetectEncodingFromBytes([]byte("int x;")))
	assert.NotNil(t, DetectEncodingFromBytes([]byte{0xEF, 0xBB, 0xBF, 'a'}))
	assert.NotNil(t, DetectEncodingFromBytes([]byte{0xFE, 0xFF}))

	path := filepath.Join(t.TempDir(), "short.c")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	enc, err := DetectEncoding(path)
	require.NoError(t, err)
	assert.Nil(t, enc)
}

func TestMD5Hex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Hex(""))
}
