package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/workflow/toolmanager"
	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// stringList accepts either a YAML sequence or a comma separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(node.Value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or comma separated string", node.Line)
	}
}

// frontMatter holds the recognized keys; others are ignored.
type frontMatter struct {
	Name            string     `yaml:"name"`
	Description     string     `yaml:"description"`
	Tools           stringList `yaml:"tools"`
	DisallowedTools stringList `yaml:"disallowed_tools"`
	MaxTurns        int        `yaml:"max_turns"`
	Background      bool       `yaml:"background"`
}

// LoadDir reads every *.md file in dir as a definition. A missing directory
// yields no definitions. Files that fail to parse are skipped and reported
// in the joined error alongside the definitions that did load.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var defs []Definition
	var errs []error
	for _, n := range names {
		path := filepath.Join(dir, n)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		def, err := Parse(strings.TrimSuffix(n, ".md"), data)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", path, err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, errors.Join(errs...)
}

// Parse builds a definition from a file body. fallbackName is used when the
// front matter has no name. Without front matter the whole body is the
// prompt and every other setting is default.
func Parse(fallbackName string, data []byte) (Definition, error) {
	fm, body := splitFrontMatter(data)

	def := Definition{Name: fallbackName}
	if fm != nil {
		var meta frontMatter
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return Definition{}, fmt.Errorf("front matter: %w", err)
		}
		if meta.Name != "" {
			def.Name = meta.Name
		}
		def.Description = meta.Description
		def.Tools = toolmanager.Restriction{Allow: meta.Tools, Block: meta.DisallowedTools}
		def.MaxTurns = meta.MaxTurns
		def.Background = meta.Background
	}
	def.SystemPrompt = strings.TrimSpace(string(body))

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// splitFrontMatter returns the YAML between the leading delimiter lines and
// the rest of the file. fm is nil when the file does not open with a
// complete block.
func splitFrontMatter(data []byte) (fm, body []byte) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	if strings.TrimSpace(lines[0]) != frontMatterDelim {
		return nil, data
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			fm = []byte(strings.Join(lines[1:i], "\n"))
			body = []byte(strings.Join(lines[i+1:], "\n"))
			return fm, body
		}
	}
	// Unterminated: treat the file as having no front matter.
	return nil, data
}
