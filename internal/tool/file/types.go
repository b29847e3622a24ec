package file

import (
	"fmt"
	"strings"
)

// ReadFileRequest reads a file, optionally a window of lines.
type ReadFileRequest struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func (r ReadFileRequest) String() string {
	if r.Offset > 0 || r.Limit > 0 {
		return fmt.Sprintf("%s (from line %d)", r.Path, r.Offset+1)
	}
	return r.Path
}

func (r *ReadFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.Offset < 0 {
		return ErrInvalidOffset
	}
	if r.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// WriteFileRequest creates a file, or replaces it when Overwrite is set.
type WriteFileRequest struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Overwrite bool   `json:"overwrite"`
}

func (r WriteFileRequest) String() string {
	return fmt.Sprintf("%s (%d bytes)", r.Path, len(r.Content))
}

func (r *WriteFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	return nil
}

func (r *WriteFileRequest) PermissionKey() string {
	return r.Path
}

// EditOperation replaces Before with After. An empty Before appends After.
type EditOperation struct {
	Before               string `json:"before"`
	After                string `json:"after"`
	ExpectedReplacements int    `json:"expected_replacements"`
}

// EditFileRequest applies operations to an existing file in order.
type EditFileRequest struct {
	Path       string          `json:"path"`
	Operations []EditOperation `json:"operations"`
}

func (r EditFileRequest) String() string {
	n := len(r.Operations)
	return fmt.Sprintf("%s (%d %s)", r.Path, n, plural(n, "edit", "edits"))
}

func (r *EditFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if len(r.Operations) == 0 {
		return ErrOperationsRequired
	}
	for i := range r.Operations {
		op := &r.Operations[i]
		if op.ExpectedReplacements < 0 {
			return fmt.Errorf("operation %d: expected_replacements must be >= 0", i)
		}
		if op.ExpectedReplacements == 0 {
			op.ExpectedReplacements = 1
		}
		if op.Before != "" && op.Before == op.After {
			return fmt.Errorf("operation %d: before and after are identical", i)
		}
	}
	return nil
}

func (r *EditFileRequest) PermissionKey() string {
	return r.Path
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// normalizeNewlines converts CRLF to LF so snippets match regardless of the
// file's line endings.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
