package file

import "errors"

var (
	ErrPathRequired       = errors.New("path is required")
	ErrOperationsRequired = errors.New("operations are required")
	ErrInvalidOffset      = errors.New("offset must be >= 0")
	ErrInvalidLimit       = errors.New("limit must be >= 0")
	ErrFileExists         = errors.New("file already exists; set overwrite or use edit_file")
	ErrEditConflict       = errors.New("file was modified since last read, read it again first")
)
