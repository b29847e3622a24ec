package directory

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// ListDirectoryRequest lists a directory. MaxDepth 0 lists only immediate
// children; a negative depth is unlimited.
type ListDirectoryRequest struct {
	Path           string `json:"path"`
	MaxDepth       int    `json:"max_depth"`
	IncludeIgnored bool   `json:"include_ignored"`
}

func (r ListDirectoryRequest) String() string {
	p := r.Path
	if p == "" {
		p = "."
	}
	if r.MaxDepth != 0 {
		return fmt.Sprintf("%s (depth %d)", p, r.MaxDepth)
	}
	return p
}

// GlobRequest finds files whose workspace-relative path matches Pattern.
type GlobRequest struct {
	Pattern        string `json:"pattern"`
	Path           string `json:"path"`
	IncludeIgnored bool   `json:"include_ignored"`
}

func (r GlobRequest) String() string {
	if r.Path != "" && r.Path != "." {
		return fmt.Sprintf("%s in %s", r.Pattern, r.Path)
	}
	return r.Pattern
}

func (r *GlobRequest) Validate() error {
	if r.Pattern == "" {
		return errors.New("pattern is required")
	}
	if !doublestar.ValidatePattern(r.Pattern) {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, doublestar.ErrBadPattern)
	}
	return nil
}
