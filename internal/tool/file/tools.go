// Package file implements the read_file, write_file and edit_file tools.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/tool/fsutil"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	ReadFileName  = "read_file"
	WriteFileName = "write_file"
	EditFileName  = "edit_file"
)

// Tools builds the file tools over one workspace. The tools share a checksum
// store so an edit can tell whether the file changed since it was last read.
type Tools struct {
	fs        fileSystem
	paths     pathResolver
	checksums checksumStore
	cfg       config.ToolsConfig
}

// NewTools creates the file tools with injected dependencies.
func NewTools(fs fileSystem, paths pathResolver, checksums checksumStore, cfg config.ToolsConfig) *Tools {
	if fs == nil {
		panic("fs is required")
	}
	if paths == nil {
		panic("paths is required")
	}
	if checksums == nil {
		panic("checksums is required")
	}
	return &Tools{fs: fs, paths: paths, checksums: checksums, cfg: cfg}
}

// All returns read_file, write_file and edit_file.
func (t *Tools) All() []tool.Tool {
	return []tool.Tool{t.ReadFile(), t.WriteFile(), t.EditFile()}
}

func (t *Tools) ReadFile() tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        ReadFileName,
		Description: "Read a text file from the workspace. Lines are numbered. Use offset and limit to page through large files.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":   {Type: tool.TypeString, Description: "Path relative to the workspace root."},
				"offset": {Type: tool.TypeInteger, Description: "Number of lines to skip (default 0)."},
				"limit":  {Type: tool.TypeInteger, Description: "Maximum number of lines to return (default all)."},
			},
			Required: []string{"path"},
		},
	}, t.read)
}

func (t *Tools) WriteFile() tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        WriteFileName,
		Description: "Create a file with the given content. Parent directories are created. Existing files are only replaced when overwrite is true.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":      {Type: tool.TypeString, Description: "Path relative to the workspace root."},
				"content":   {Type: tool.TypeString, Description: "Full file content."},
				"overwrite": {Type: tool.TypeBoolean, Description: "Replace the file if it exists."},
			},
			Required: []string{"path", "content"},
		},
	}, t.write)
}

func (t *Tools) EditFile() tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        EditFileName,
		Description: "Edit an existing file by exact text replacement. Operations apply in order; each must match exactly expected_replacements times (default 1). An empty before appends to the file.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path": {Type: tool.TypeString, Description: "Path relative to the workspace root."},
				"operations": {
					Type:        tool.TypeArray,
					Description: "Edit operations.",
					Items: &tool.Schema{
						Type: tool.TypeObject,
						Properties: map[string]*tool.Schema{
							"before":                {Type: tool.TypeString, Description: "Exact text to find."},
							"after":                 {Type: tool.TypeString, Description: "Replacement text."},
							"expected_replacements": {Type: tool.TypeInteger, Description: "Number of occurrences expected."},
						},
						Required: []string{"before", "after"},
					},
				},
			},
			Required: []string{"path", "operations"},
		},
	}, t.edit)
}

func (t *Tools) read(ctx context.Context, req ReadFileRequest) (tool.Result, error) {
	abs, rel, err := t.paths.Resolve(req.Path)
	if err != nil {
		return tool.Failf("%s: %v", req.Path, err), nil
	}

	info, err := t.fs.Stat(abs)
	if err != nil {
		return statFailure(rel, err), nil
	}
	if info.IsDir() {
		return tool.Failf("%s is a directory, use list_directory", rel), nil
	}
	if info.Size() > t.cfg.MaxFileSize {
		return tool.Failf("%s is too large (%d bytes, limit %d)", rel, info.Size(), t.cfg.MaxFileSize), nil
	}

	data, err := t.fs.ReadFile(abs)
	if err != nil {
		return tool.Failf("read %s: %v", rel, err), nil
	}
	if fsutil.IsBinaryContent(data) {
		return tool.Failf("%s is a binary file", rel), nil
	}
	content := normalizeNewlines(string(data))
	t.checksums.Update(abs, t.checksums.Compute([]byte(content)))

	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)
	if content == "" {
		return tool.OK(fmt.Sprintf("%s is empty.", rel)), nil
	}
	if req.Offset >= total {
		return tool.Failf("offset %d is past the end of %s (%d lines)", req.Offset, rel, total), nil
	}

	end := total
	if req.Limit > 0 {
		end = min(total, req.Offset+req.Limit)
	}

	var sb strings.Builder
	for i := req.Offset; i < end; i++ {
		line := lines[i]
		if t.cfg.MaxLineLength > 0 && len(line) > t.cfg.MaxLineLength {
			line = line[:t.cfg.MaxLineLength] + "...[truncated]"
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, line)
	}
	if req.Offset > 0 || end < total {
		fmt.Fprintf(&sb, "[showing lines %d-%d of %d]\n", req.Offset+1, end, total)
	}
	return tool.OK(sb.String()), nil
}

func (t *Tools) write(ctx context.Context, req WriteFileRequest) (tool.Result, error) {
	abs, rel, err := t.paths.Resolve(req.Path)
	if err != nil {
		return tool.Failf("%s: %v", req.Path, err), nil
	}

	content := []byte(req.Content)
	if int64(len(content)) > t.cfg.MaxFileSize {
		return tool.Failf("content for %s is too large (%d bytes, limit %d)", rel, len(content), t.cfg.MaxFileSize), nil
	}
	if fsutil.IsBinaryContent(content) {
		return tool.Failf("refusing to write binary content to %s", rel), nil
	}

	perm := os.FileMode(0o644)
	info, err := t.fs.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		return tool.Failf("%s is a directory", rel), nil
	case err == nil && !req.Overwrite:
		return tool.Failf("%s: %v", rel, ErrFileExists), nil
	case err == nil:
		perm = info.Mode().Perm()
	case !errors.Is(err, fs.ErrNotExist):
		return tool.Failf("stat %s: %v", rel, err), nil
	}

	if err := t.fs.EnsureDirs(filepath.Dir(abs)); err != nil {
		return tool.Failf("create parent directories for %s: %v", rel, err), nil
	}
	if err := t.fs.WriteFileAtomic(abs, content, perm); err != nil {
		return tool.Failf("write %s: %v", rel, err), nil
	}
	t.checksums.Update(abs, t.checksums.Compute([]byte(normalizeNewlines(req.Content))))

	return tool.OK(fmt.Sprintf("Wrote %d bytes to %s.", len(content), rel)), nil
}

func (t *Tools) edit(ctx context.Context, req EditFileRequest) (tool.Result, error) {
	abs, rel, err := t.paths.Resolve(req.Path)
	if err != nil {
		return tool.Failf("%s: %v", req.Path, err), nil
	}

	info, err := t.fs.Stat(abs)
	if err != nil {
		return statFailure(rel, err), nil
	}
	if info.IsDir() {
		return tool.Failf("%s is a directory", rel), nil
	}

	data, err := t.fs.ReadFile(abs)
	if err != nil {
		return tool.Failf("read %s: %v", rel, err), nil
	}
	if fsutil.IsBinaryContent(data) {
		return tool.Failf("%s is a binary file", rel), nil
	}

	raw := string(data)
	hasCRLF := strings.Contains(raw, "\r\n")
	oldContent := normalizeNewlines(raw)

	if prior, ok := t.checksums.Get(abs); ok && prior != t.checksums.Compute([]byte(oldContent)) {
		return tool.Failf("%s: %v", rel, ErrEditConflict), nil
	}

	content := oldContent
	for i, op := range req.Operations {
		before := normalizeNewlines(op.Before)
		after := normalizeNewlines(op.After)

		if before == "" {
			if op.ExpectedReplacements != 1 {
				return tool.Failf("operation %d: append has exactly one target, expected_replacements was %d", i, op.ExpectedReplacements), nil
			}
			content += after
			continue
		}

		count := strings.Count(content, before)
		if count == 0 {
			return tool.Failf("operation %d: text not found in %s: %q", i, rel, op.Before), nil
		}
		if count != op.ExpectedReplacements {
			return tool.Failf("operation %d: expected %d replacements in %s, found %d", i, op.ExpectedReplacements, rel, count), nil
		}
		content = strings.ReplaceAll(content, before, after)
	}

	final := content
	if hasCRLF {
		final = strings.ReplaceAll(content, "\n", "\r\n")
	}
	if int64(len(final)) > t.cfg.MaxFileSize {
		return tool.Failf("%s would be too large after the edit (%d bytes, limit %d)", rel, len(final), t.cfg.MaxFileSize), nil
	}

	if err := t.fs.WriteFileAtomic(abs, []byte(final), info.Mode().Perm()); err != nil {
		return tool.Failf("write %s: %v", rel, err), nil
	}
	t.checksums.Update(abs, t.checksums.Compute([]byte(content)))

	diff, added, removed := unifiedDiff(rel, oldContent, content)
	res := tool.OK(fmt.Sprintf("Edited %s: %d %s applied, +%d -%d lines.\n%s",
		rel, len(req.Operations), plural(len(req.Operations), "operation", "operations"), added, removed, diff))
	res.Display = tool.DiffDisplay{Diff: diff, AddedLines: added, RemovedLines: removed}
	return res, nil
}

func statFailure(rel string, err error) tool.Result {
	if errors.Is(err, fs.ErrNotExist) {
		return tool.Failf("%s does not exist", rel)
	}
	return tool.Failf("stat %s: %v", rel, err)
}

func unifiedDiff(name, oldContent, newContent string) (diff string, added, removed int) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	diff, _ = difflib.GetUnifiedDiffString(ud)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return diff, added, removed
}
