package ui

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/permission"
	"github.com/charmbracelet/lipgloss"
)

// maxPreviewLines bounds how much of a write is shown in a permission prompt.
const maxPreviewLines = 20

// RenderPreview shows what a pending invocation will do, for the tools where
// the one-line description is not enough to decide.
func RenderPreview(req permission.Request) string {
	switch req.Tool {
	case "edit_file":
		return renderEditPreview(req.Args)
	case "write_file":
		return renderWritePreview(req.Args)
	case "run_shell":
		return renderShellPreview(req.Args)
	default:
		return ""
	}
}

func renderEditPreview(args map[string]any) string {
	var sb strings.Builder
	path, _ := args["path"].(string)
	fmt.Fprintf(&sb, "File: %s\n", path)

	ops, ok := args["operations"].([]any)
	if !ok {
		return fmt.Sprintf("Edit operations for %s (details unavailable)", path)
	}
	for i, op := range ops {
		opMap, ok := op.(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\nOperation %d:\n", i+1)
		if before, ok := opMap["before"].(string); ok && before != "" {
			sb.WriteString(prefixLines(before, "- ", DiffRemoveStyle))
		}
		if after, ok := opMap["after"].(string); ok {
			sb.WriteString(prefixLines(after, "+ ", DiffAddStyle))
		}
	}
	return sb.String()
}

func renderWritePreview(args map[string]any) string {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%d lines)\n", path, len(lines))
	shown := lines
	if len(shown) > maxPreviewLines {
		shown = shown[:maxPreviewLines]
	}
	sb.WriteString(prefixLines(strings.Join(shown, "\n"), "+ ", DiffAddStyle))
	if len(lines) > len(shown) {
		fmt.Fprintf(&sb, "... %d more lines\n", len(lines)-len(shown))
	}
	return sb.String()
}

func renderShellPreview(args map[string]any) string {
	cmd, _ := args["command"].(string)
	out := "$ " + cmd
	if dir, ok := args["working_dir"].(string); ok && dir != "" {
		out += "\n(in " + dir + ")"
	}
	return out
}

func prefixLines(text, prefix string, style lipgloss.Style) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(style.Render(prefix+line) + "\n")
	}
	return sb.String()
}
