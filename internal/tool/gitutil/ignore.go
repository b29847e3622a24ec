package gitutil

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFileError reports a .gitignore that exists but could not be read.
type IgnoreFileError struct {
	Path string
	Err  error
}

func (e *IgnoreFileError) Error() string { return "read " + e.Path + ": " + e.Err.Error() }
func (e *IgnoreFileError) Unwrap() error { return e.Err }

// Matcher decides whether a workspace-relative path is ignored.
type Matcher interface {
	ShouldIgnore(relativePath string, isDir bool) bool
}

// IgnoreMatcher applies the workspace's root .gitignore. The .git directory
// is always ignored.
type IgnoreMatcher struct {
	matcher gitignore.Matcher
}

// NewIgnoreMatcher loads .gitignore from the workspace root. A missing file
// yields a matcher that only ignores .git.
func NewIgnoreMatcher(workspaceRoot string) (*IgnoreMatcher, error) {
	if workspaceRoot == "" {
		panic("workspaceRoot is required")
	}
	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	path := filepath.Join(workspaceRoot, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &IgnoreFileError{Path: path, Err: err}
	}
	patterns = append(patterns, ParsePatterns(data, nil)...)

	return &IgnoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

// ParsePatterns parses gitignore content. domain is the directory the file
// lives in, as path segments relative to the workspace root.
func ParsePatterns(data []byte, domain []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns
}

// ShouldIgnore reports whether relativePath (slash or OS separated) is ignored.
func (m *IgnoreMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	segments := splitPath(relativePath)
	if len(segments) == 0 {
		return false
	}
	return m.matcher.Match(segments, isDir)
}

func splitPath(path string) []string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}

// NoOpMatcher never ignores anything.
type NoOpMatcher struct{}

func (NoOpMatcher) ShouldIgnore(string, bool) bool { return false }
