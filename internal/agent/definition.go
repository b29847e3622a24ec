package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/workflow/toolmanager"
)

var (
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrDuplicateAgent = errors.New("agent already registered")
	ErrUnknownTask    = errors.New("unknown task")
	ErrTaskAborted    = errors.New("task aborted")
)

// Thoroughness selects a turn budget preset.
type Thoroughness string

const (
	Quick        Thoroughness = "quick"
	Medium       Thoroughness = "medium"
	VeryThorough Thoroughness = "very_thorough"
)

// Preset overrides the turn budget and extends the prompt.
type Preset struct {
	MaxTurns       int
	PromptAddendum string
}

// Definition describes a sub-agent. It is immutable once registered.
type Definition struct {
	Name         string
	Description  string
	SystemPrompt string
	Tools        toolmanager.Restriction
	MaxTurns     int  // 0 uses the orchestrator default
	Background   bool // default execution mode

	// Presets is keyed by thoroughness; DefaultPreset applies when the
	// caller gives none.
	Presets       map[Thoroughness]Preset
	DefaultPreset Thoroughness
}

// Validate checks the definition is usable.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("agent name is required")
	}
	if strings.ContainsAny(d.Name, " \t\n") {
		return fmt.Errorf("agent name %q must not contain whitespace", d.Name)
	}
	if strings.TrimSpace(d.SystemPrompt) == "" {
		return fmt.Errorf("agent %s: system prompt is required", d.Name)
	}
	if d.MaxTurns < 0 {
		return fmt.Errorf("agent %s: max turns must be >= 0", d.Name)
	}
	return nil
}

// preset resolves the turn budget and addendum for t.
func (d *Definition) preset(t Thoroughness) (maxTurns int, addendum string, err error) {
	if len(d.Presets) == 0 {
		return d.MaxTurns, "", nil
	}
	if t == "" {
		t = d.DefaultPreset
	}
	p, ok := d.Presets[t]
	if !ok {
		return 0, "", fmt.Errorf("agent %s has no %q thoroughness", d.Name, t)
	}
	return p.MaxTurns, p.PromptAddendum, nil
}

func (d Definition) clone() Definition {
	d.Tools = toolmanager.Restriction{
		Allow: append([]string(nil), d.Tools.Allow...),
		Block: append([]string(nil), d.Tools.Block...),
	}
	if d.Presets != nil {
		presets := make(map[Thoroughness]Preset, len(d.Presets))
		for k, v := range d.Presets {
			presets[k] = v
		}
		d.Presets = presets
	}
	return d
}

// ReadOnlyTools is the tool set of the built-in agents.
var ReadOnlyTools = []string{"read_file", "list_directory", "glob", "grep"}

const exploreName = "explore"

const explorePrompt = `You are a read-only exploration agent working inside a code repository.
Answer the question you are given by searching and reading files.
You cannot modify anything. Report concrete findings with file paths and
line numbers, and say clearly when something could not be found.`

const planPrompt = `You are a planning agent working inside a code repository.
Study the relevant code with the read-only tools available, then produce a
structured implementation plan rather than a direct answer: list the files to
change, the changes to make in order, the risks, and how to verify the result.
Do not write code beyond short illustrative snippets.`

// Builtins returns the built-in definitions.
func Builtins() []Definition {
	return []Definition{
		{
			Name:         exploreName,
			Description:  "Fast read-only codebase exploration. Supports quick, medium and very_thorough.",
			SystemPrompt: explorePrompt,
			Tools:        toolmanager.Restriction{Allow: append([]string(nil), ReadOnlyTools...)},
			Presets: map[Thoroughness]Preset{
				Quick: {
					MaxTurns:       5,
					PromptAddendum: "Thoroughness: quick. Do a targeted lookup and answer as soon as you have a reasonable answer.",
				},
				Medium: {
					MaxTurns:       15,
					PromptAddendum: "Thoroughness: medium. Check the most likely locations and follow the important references.",
				},
				VeryThorough: {
					MaxTurns:       50,
					PromptAddendum: "Thoroughness: very thorough. Search exhaustively across naming conventions and locations before answering.",
				},
			},
			DefaultPreset: Medium,
		},
		{
			Name:         "plan",
			Description:  "Read-only agent that produces a structured implementation plan.",
			SystemPrompt: planPrompt,
			Tools:        toolmanager.Restriction{Allow: append([]string(nil), ReadOnlyTools...)},
			MaxTurns:     30,
		},
	}
}
