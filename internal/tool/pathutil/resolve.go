package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CanonicaliseRoot makes a workspace root absolute and resolves its symlinks.
// The root must exist and be a directory.
func CanonicaliseRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &WorkspaceRootError{Root: root, Cause: err}
	}

	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", &WorkspaceRootError{Root: absRoot, Cause: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &WorkspaceRootError{Root: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &WorkspaceRootError{Root: resolved, Cause: fmt.Errorf("%w: %s", ErrNotADirectory, resolved)}
	}
	return resolved, nil
}

// Resolver confines paths to a workspace root.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for an already canonical root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the workspace root.
func (r *Resolver) Root() string {
	return r.root
}

// Abs resolves path against the workspace root and rejects anything outside it.
// Relative paths are joined to the root. Symlinks in the existing part of the
// path are followed so a link cannot be used to step out of the workspace.
func (r *Resolver) Abs(path string) (string, error) {
	if r.root == "" {
		return "", ErrWorkspaceRootNotSet
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(r.root, path))
	}
	if !r.within(abs) {
		return "", ErrOutsideWorkspace
	}

	real, err := evalExisting(abs)
	if err != nil {
		return "", err
	}
	if !r.within(real) {
		return "", ErrOutsideWorkspace
	}
	return abs, nil
}

// Rel returns path relative to the root with forward slashes. The root itself is ".".
func (r *Resolver) Rel(path string) (string, error) {
	abs, err := r.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", ErrOutsideWorkspace
	}
	return filepath.ToSlash(rel), nil
}

// Resolve returns both the absolute and workspace-relative forms of path.
func (r *Resolver) Resolve(path string) (abs, rel string, err error) {
	abs, err = r.Abs(path)
	if err != nil {
		return "", "", err
	}
	rel, err = filepath.Rel(r.root, abs)
	if err != nil {
		return "", "", ErrOutsideWorkspace
	}
	return abs, filepath.ToSlash(rel), nil
}

func (r *Resolver) within(abs string) bool {
	return abs == r.root || strings.HasPrefix(abs, r.root+string(filepath.Separator))
}

// evalExisting resolves symlinks in the longest existing prefix of abs and
// re-attaches the missing tail, so paths for files about to be created work.
func evalExisting(abs string) (string, error) {
	var tail []string
	cur := abs
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{real}, tail...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %s: %w", cur, err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
