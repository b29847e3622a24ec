package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantAllow []string
		wantBlock []string
		wantTurns int
		wantBg    bool
		wantBody  string
		wantErr   bool
	}{
		{
			name: "full front matter with list",
			input: `---
name: reviewer
description: Reviews diffs
tools:
  - read_file
  - grep
max_turns: 12
background: true
---
You review code.
`,
			wantName:  "reviewer",
			wantAllow: []string{"read_file", "grep"},
			wantTurns: 12,
			wantBg:    true,
			wantBody:  "You review code.",
		},
		{
			name: "comma separated tools and unknown keys",
			input: `---
tools: read_file, glob
disallowed_tools: run_shell
color: blue
model: something
---
Prompt text`,
			wantName:  "fallback",
			wantAllow: []string{"read_file", "glob"},
			wantBlock: []string{"run_shell"},
			wantBody:  "Prompt text",
		},
		{
			name:     "no front matter",
			input:    "Just a prompt.\n---\nwith a rule line",
			wantName: "fallback",
			wantBody: "Just a prompt.\n---\nwith a rule line",
		},
		{
			name:     "unterminated front matter",
			input:    "---\nname: x\nstill prompt",
			wantName: "fallback",
			wantBody: "---\nname: x\nstill prompt",
		},
		{
			name:     "windows line endings",
			input:    "---\r\nname: win\r\n---\r\nBody\r\n",
			wantName: "win",
			wantBody: "Body",
		},
		{
			name:    "invalid yaml",
			input:   "---\nname: [unclosed\n---\nBody",
			wantErr: true,
		},
		{
			name:    "empty prompt",
			input:   "---\nname: empty\n---\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse("fallback", []byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, def.Name)
			assert.Equal(t, tt.wantAllow, def.Tools.Allow)
			assert.Equal(t, tt.wantBlock, def.Tools.Block)
			assert.Equal(t, tt.wantTurns, def.MaxTurns)
			assert.Equal(t, tt.wantBg, def.Background)
			assert.Equal(t, tt.wantBody, def.SystemPrompt)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("b-tester.md", "---\ndescription: runs tests\n---\nRun the tests.")
	write("a-docs.md", "Write documentation.")
	write("broken.md", "---\nmax_turns: lots\n---\nBody")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0o755))

	defs, err := LoadDir(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.md")
	require.Len(t, defs, 2)
	assert.Equal(t, "a-docs", defs[0].Name)
	assert.Equal(t, "b-tester", defs[1].Name)
	assert.Equal(t, "runs tests", defs[1].Description)
}

func TestLoadDir_Missing(t *testing.T) {
	defs, err := LoadDir(filepath.Join(t.TempDir(), "none"))

	assert.NoError(t, err)
	assert.Empty(t, defs)
}
