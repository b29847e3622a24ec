// Package mocks provides in-memory fakes shared by package tests.
package mocks

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileInfo is a static os.FileInfo.
type FileInfo struct {
	NameVal  string
	SizeVal  int64
	ModeVal  os.FileMode
	IsDirVal bool
}

func (f *FileInfo) Name() string       { return f.NameVal }
func (f *FileInfo) Size() int64        { return f.SizeVal }
func (f *FileInfo) Mode() os.FileMode  { return f.ModeVal }
func (f *FileInfo) ModTime() time.Time { return time.Time{} }
func (f *FileInfo) IsDir() bool        { return f.IsDirVal }
func (f *FileInfo) Sys() any           { return nil }

// FileSystem is an in-memory filesystem keyed by absolute path.
// Set OpErrors["WriteFileAtomic"] (or any other method name) to make
// that operation fail.
type FileSystem struct {
	Mu       sync.Mutex
	Files    map[string][]byte
	Modes    map[string]os.FileMode
	Dirs     map[string]bool
	OpErrors map[string]error
	Writes   int
}

func NewFileSystem() *FileSystem {
	return &FileSystem{
		Files:    map[string][]byte{},
		Modes:    map[string]os.FileMode{},
		Dirs:     map[string]bool{},
		OpErrors: map[string]error{},
	}
}

// AddFile stores content at path and registers its parent directories.
func (f *FileSystem) AddFile(path string, content string, mode os.FileMode) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	f.Files[path] = []byte(content)
	f.Modes[path] = mode
	f.addDirs(filepath.Dir(path))
}

func (f *FileSystem) addDirs(dir string) {
	for dir != "" && !f.Dirs[dir] {
		f.Dirs[dir] = true
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Content returns the stored content of path.
func (f *FileSystem) Content(path string) (string, bool) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	data, ok := f.Files[path]
	return string(data), ok
}

func (f *FileSystem) Stat(path string) (os.FileInfo, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	if err := f.OpErrors["Stat"]; err != nil {
		return nil, err
	}
	if data, ok := f.Files[path]; ok {
		return &FileInfo{NameVal: filepath.Base(path), SizeVal: int64(len(data)), ModeVal: f.Modes[path]}, nil
	}
	if f.Dirs[path] {
		return &FileInfo{NameVal: filepath.Base(path), ModeVal: os.ModeDir | 0o755, IsDirVal: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	if err := f.OpErrors["ReadFile"]; err != nil {
		return nil, err
	}
	data, ok := f.Files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (f *FileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	if err := f.OpErrors["ReadDir"]; err != nil {
		return nil, err
	}
	if !f.Dirs[path] {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	var entries []os.DirEntry
	prefix := strings.TrimSuffix(path, string(filepath.Separator)) + string(filepath.Separator)
	for p, data := range f.Files {
		if filepath.Dir(p) == path {
			entries = append(entries, fs.FileInfoToDirEntry(&FileInfo{NameVal: filepath.Base(p), SizeVal: int64(len(data)), ModeVal: f.Modes[p]}))
		}
	}
	for d := range f.Dirs {
		if d != path && strings.HasPrefix(d, prefix) && filepath.Dir(d) == path {
			entries = append(entries, fs.FileInfoToDirEntry(&FileInfo{NameVal: filepath.Base(d), ModeVal: os.ModeDir | 0o755, IsDirVal: true}))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (f *FileSystem) EnsureDirs(path string) error {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	if err := f.OpErrors["EnsureDirs"]; err != nil {
		return err
	}
	f.addDirs(path)
	return nil
}

func (f *FileSystem) WriteFileAtomic(path string, content []byte, perm os.FileMode) error {
	f.Mu.Lock()
	defer f.Mu.Unlock()
	if err := f.OpErrors["WriteFileAtomic"]; err != nil {
		return err
	}
	f.Files[path] = append([]byte(nil), content...)
	f.Modes[path] = perm
	f.Writes++
	return nil
}
