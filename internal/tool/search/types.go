package search

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// GrepRequest searches file contents with a regular expression.
type GrepRequest struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path"`
	Include         string `json:"include"`
	CaseInsensitive bool   `json:"case_insensitive"`
	IncludeIgnored  bool   `json:"include_ignored"`
}

func (r GrepRequest) String() string {
	s := fmt.Sprintf("/%s/", r.Pattern)
	if r.Path != "" && r.Path != "." {
		s += " in " + r.Path
	}
	if r.Include != "" {
		s += " (" + r.Include + ")"
	}
	return s
}

func (r *GrepRequest) Validate() error {
	if r.Pattern == "" {
		return errors.New("pattern is required")
	}
	if _, err := r.compile(); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	if r.Include != "" {
		if !doublestar.ValidatePattern(r.Include) {
			return fmt.Errorf("invalid include %q: %w", r.Include, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func (r *GrepRequest) compile() (*regexp.Regexp, error) {
	if r.CaseInsensitive {
		return regexp.Compile("(?i)" + r.Pattern)
	}
	return regexp.Compile(r.Pattern)
}

// Match is one matching line.
type Match struct {
	File       string
	LineNumber int
	Line       string
}
