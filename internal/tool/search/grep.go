// Package search implements the grep tool.
package search

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/tool/fsutil"
	"github.com/bmatcuk/doublestar/v4"
)

const GrepName = "grep"

// maxScanLine bounds a single line; files with longer lines are skipped.
const maxScanLine = 1024 * 1024

var errCapReached = errors.New("result cap reached")

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

type pathResolver interface {
	Root() string
	Resolve(path string) (abs, rel string, err error)
}

type ignoreMatcher interface {
	ShouldIgnore(relativePath string, isDir bool) bool
}

// GrepTool searches workspace files line by line with Go regular expressions.
type GrepTool struct {
	fs     fileSystem
	paths  pathResolver
	ignore ignoreMatcher
	cfg    config.ToolsConfig
}

// NewGrepTool creates the grep tool. ignore may be nil.
func NewGrepTool(fs fileSystem, paths pathResolver, ignore ignoreMatcher, cfg config.ToolsConfig) tool.Tool {
	if fs == nil {
		panic("fs is required")
	}
	if paths == nil {
		panic("paths is required")
	}
	g := &GrepTool{fs: fs, paths: paths, ignore: ignore, cfg: cfg}
	return tool.NewTyped(tool.Declaration{
		Name:        GrepName,
		Description: "Search file contents with a regular expression (Go RE2 syntax). Returns 'file:line: text' for each match. Binary and gitignored files are skipped.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"pattern":          {Type: tool.TypeString, Description: "Regular expression."},
				"path":             {Type: tool.TypeString, Description: "File or directory to search (default '.')."},
				"include":          {Type: tool.TypeString, Description: "Only search files whose name matches this glob, e.g. '*.go'."},
				"case_insensitive": {Type: tool.TypeBoolean, Description: "Ignore case."},
				"include_ignored":  {Type: tool.TypeBoolean, Description: "Also search gitignored files."},
			},
			Required: []string{"pattern"},
		},
	}, g.run)
}

func (g *GrepTool) run(ctx context.Context, req GrepRequest) (tool.Result, error) {
	re, err := req.compile()
	if err != nil {
		return tool.Failf("invalid pattern: %v", err), nil
	}

	searchPath := req.Path
	if searchPath == "" {
		searchPath = "."
	}
	abs, rel, err := g.paths.Resolve(searchPath)
	if err != nil {
		return tool.Failf("%s: %v", searchPath, err), nil
	}
	info, err := g.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tool.Failf("%s does not exist", rel), nil
		}
		return tool.Failf("stat %s: %v", rel, err), nil
	}

	var matches []Match
	if info.IsDir() {
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == abs {
				return nil
			}
			wsRel := g.relative(p)
			if !req.IncludeIgnored && g.ignore != nil && g.ignore.ShouldIgnore(wsRel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if req.Include != "" {
				if ok, _ := doublestar.Match(req.Include, d.Name()); !ok {
					return nil
				}
			}
			return g.searchFile(p, wsRel, re, &matches)
		})
	} else {
		err = g.searchFile(abs, rel, re, &matches)
	}

	capped := errors.Is(err, errCapReached)
	if err != nil && !capped {
		if ctx.Err() != nil {
			return tool.Result{}, ctx.Err()
		}
		return tool.Failf("search %s: %v", rel, err), nil
	}

	if len(matches) == 0 {
		return tool.OK(fmt.Sprintf("No matches for %s.", req.String())), nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.LineNumber, m.Line)
	}
	if capped {
		fmt.Fprintf(&sb, "[results capped at %d matches]\n", g.cfg.MaxSearchResults)
	}
	return tool.OK(sb.String()), nil
}

// searchFile appends matches from one file. Unreadable, oversized and binary
// files are skipped silently.
func (g *GrepTool) searchFile(abs, rel string, re *regexp.Regexp, out *[]Match) error {
	info, err := g.fs.Stat(abs)
	if err != nil || (g.cfg.MaxFileSize > 0 && info.Size() > g.cfg.MaxFileSize) {
		return nil
	}
	data, err := g.fs.ReadFile(abs)
	if err != nil || fsutil.IsBinaryContent(data) {
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if !re.MatchString(line) {
			continue
		}
		if g.cfg.MaxSearchResults > 0 && len(*out) >= g.cfg.MaxSearchResults {
			return errCapReached
		}
		line = strings.TrimSpace(line)
		if g.cfg.MaxLineLength > 0 && len(line) > g.cfg.MaxLineLength {
			line = line[:g.cfg.MaxLineLength] + "...[truncated]"
		}
		*out = append(*out, Match{File: rel, LineNumber: lineNo, Line: line})
	}
	return nil
}

func (g *GrepTool) relative(p string) string {
	rel, err := filepath.Rel(g.paths.Root(), p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}
