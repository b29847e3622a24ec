// Package directory implements the list_directory and glob tools.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/bmatcuk/doublestar/v4"
)

const (
	ListDirectoryName = "list_directory"
	GlobName          = "glob"
)

// errCapReached stops a walk once enough entries were collected.
var errCapReached = errors.New("result cap reached")

type entry struct {
	rel   string
	isDir bool
}

// Tools builds the directory tools over one workspace.
type Tools struct {
	fs     fileSystem
	paths  pathResolver
	ignore ignoreMatcher
	cfg    config.ToolsConfig
}

// NewTools creates the directory tools. ignore may be nil to disable gitignore filtering.
func NewTools(fs fileSystem, paths pathResolver, ignore ignoreMatcher, cfg config.ToolsConfig) *Tools {
	if fs == nil {
		panic("fs is required")
	}
	if paths == nil {
		panic("paths is required")
	}
	return &Tools{fs: fs, paths: paths, ignore: ignore, cfg: cfg}
}

func (t *Tools) All() []tool.Tool {
	return []tool.Tool{t.ListDirectory(), t.Glob()}
}

func (t *Tools) ListDirectory() tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        ListDirectoryName,
		Description: "List a workspace directory. Directories end with '/'. Gitignored entries are hidden unless include_ignored is true.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":            {Type: tool.TypeString, Description: "Directory relative to the workspace root (default '.')."},
				"max_depth":       {Type: tool.TypeInteger, Description: "Levels to descend below the directory; 0 lists only its children, -1 is unlimited."},
				"include_ignored": {Type: tool.TypeBoolean, Description: "Include gitignored entries."},
			},
		},
	}, t.list)
}

func (t *Tools) Glob() tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        GlobName,
		Description: "Find files by glob pattern, e.g. '**/*.go' or 'cmd/*/main.go'. Patterns without '/' match file names at any depth.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"pattern":         {Type: tool.TypeString, Description: "Glob pattern relative to path. '**' matches any number of directories."},
				"path":            {Type: tool.TypeString, Description: "Directory to search (default '.')."},
				"include_ignored": {Type: tool.TypeBoolean, Description: "Include gitignored files."},
			},
			Required: []string{"pattern"},
		},
	}, t.glob)
}

func (t *Tools) list(ctx context.Context, req ListDirectoryRequest) (tool.Result, error) {
	abs, rel, res, ok := t.openDir(req.Path)
	if !ok {
		return res, nil
	}

	maxDepth := req.MaxDepth
	if maxDepth < 0 {
		maxDepth = -1
	}

	var entries []entry
	visited := make(map[string]bool)
	err := t.listRecursive(ctx, abs, 0, maxDepth, req.IncludeIgnored, visited, &entries)
	capped := errors.Is(err, errCapReached)
	if err != nil && !capped {
		if ctx.Err() != nil {
			return tool.Result{}, ctx.Err()
		}
		return tool.Failf("list %s: %v", rel, err), nil
	}

	if len(entries) == 0 {
		return tool.OK(fmt.Sprintf("%s is empty.", rel)), nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].rel < entries[j].rel
	})

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.rel)
		if e.isDir {
			sb.WriteByte('/')
		}
		sb.WriteByte('\n')
	}
	if capped {
		fmt.Fprintf(&sb, "[listing capped at %d entries]\n", t.cfg.MaxListEntries)
	}
	return tool.OK(sb.String()), nil
}

func (t *Tools) listRecursive(ctx context.Context, abs string, depth, maxDepth int, includeIgnored bool, visited map[string]bool, out *[]entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		canonical = abs
	}
	if visited[canonical] {
		return nil
	}
	visited[canonical] = true

	dirEntries, err := t.fs.ReadDir(abs)
	if err != nil {
		return err
	}

	for _, de := range dirEntries {
		childAbs := filepath.Join(abs, de.Name())
		childRel, err := filepath.Rel(t.paths.Root(), childAbs)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", childAbs, err)
		}
		childRel = filepath.ToSlash(childRel)

		isDir := de.IsDir()
		if de.Type()&fs.ModeSymlink != 0 {
			if info, err := t.fs.Stat(childAbs); err == nil {
				isDir = info.IsDir()
			}
		}

		if !includeIgnored && t.ignore != nil && t.ignore.ShouldIgnore(childRel, isDir) {
			continue
		}
		if t.cfg.MaxListEntries > 0 && len(*out) >= t.cfg.MaxListEntries {
			return errCapReached
		}
		*out = append(*out, entry{rel: childRel, isDir: isDir})

		if isDir && (maxDepth < 0 || depth < maxDepth) {
			if err := t.listRecursive(ctx, childAbs, depth+1, maxDepth, includeIgnored, visited, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tools) glob(ctx context.Context, req GlobRequest) (tool.Result, error) {
	abs, rel, res, ok := t.openDir(req.Path)
	if !ok {
		return res, nil
	}

	limit := t.cfg.MaxSearchResults
	var matches []string
	err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == abs {
			return nil
		}

		wsRel, err := filepath.Rel(t.paths.Root(), p)
		if err != nil {
			return err
		}
		wsRel = filepath.ToSlash(wsRel)

		if !req.IncludeIgnored && t.ignore != nil && t.ignore.ShouldIgnore(wsRel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		searchRel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		if globMatches(req.Pattern, filepath.ToSlash(searchRel)) {
			if limit > 0 && len(matches) >= limit {
				return errCapReached
			}
			matches = append(matches, wsRel)
		}
		return nil
	})
	capped := errors.Is(err, errCapReached)
	if err != nil && !capped {
		if ctx.Err() != nil {
			return tool.Result{}, ctx.Err()
		}
		return tool.Failf("glob %s in %s: %v", req.Pattern, rel, err), nil
	}

	if len(matches) == 0 {
		return tool.OK(fmt.Sprintf("No files match %s in %s.", req.Pattern, rel)), nil
	}
	sort.Strings(matches)
	out := strings.Join(matches, "\n") + "\n"
	if capped {
		out += fmt.Sprintf("[results capped at %d matches]\n", limit)
	}
	return tool.OK(out), nil
}

// openDir resolves p and checks it is a directory. When ok is false, res
// holds the failure to return.
func (t *Tools) openDir(p string) (abs, rel string, res tool.Result, ok bool) {
	if p == "" {
		p = "."
	}
	abs, rel, err := t.paths.Resolve(p)
	if err != nil {
		return "", "", tool.Failf("%s: %v", p, err), false
	}
	info, err := t.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", tool.Failf("%s does not exist", rel), false
		}
		return "", "", tool.Failf("stat %s: %v", rel, err), false
	}
	if !info.IsDir() {
		return "", "", tool.Failf("%s is not a directory", rel), false
	}
	return abs, rel, tool.Result{}, true
}

// globMatches reports whether the slash-separated name matches pattern. A
// pattern without a slash is matched against the base name at any depth.
func globMatches(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		name = path.Base(name)
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}
