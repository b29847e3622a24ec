package file

import "os"

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
	EnsureDirs(path string) error
}

type pathResolver interface {
	Resolve(path string) (abs, rel string, err error)
}

type checksumStore interface {
	Compute(data []byte) string
	Get(path string) (string, bool)
	Update(path, checksum string)
}
