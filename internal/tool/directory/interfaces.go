package directory

import "os"

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
}

type pathResolver interface {
	Root() string
	Resolve(path string) (abs, rel string, err error)
}

type ignoreMatcher interface {
	ShouldIgnore(relativePath string, isDir bool) bool
}
