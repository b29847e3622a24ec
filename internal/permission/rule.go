package permission

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Scope is the outcome a matching rule imposes.
type Scope string

const (
	ScopeAlways Scope = "always"
	ScopeNever  Scope = "never"
)

// Rule is a permanent permission rule. Rules are checked in order and the
// first match decides.
type Rule struct {
	// ToolPattern is a path.Match glob over the tool name, e.g. "mcp__github__*".
	ToolPattern string `json:"tool"`

	// Key, when set, must equal the invocation's permission key exactly.
	Key string `json:"key,omitempty"`

	// ArgumentPattern, when set, is a regexp matched against the canonical
	// JSON encoding of the arguments.
	ArgumentPattern string `json:"arguments,omitempty"`

	Scope       Scope  `json:"scope"`
	Description string `json:"description,omitempty"`

	argRe *regexp.Regexp
}

// Compile validates the rule's patterns and prepares it for matching.
func (r *Rule) Compile() error {
	if r.ToolPattern == "" {
		return fmt.Errorf("rule: tool pattern is required")
	}
	if _, err := path.Match(r.ToolPattern, ""); err != nil {
		return fmt.Errorf("rule %q: invalid tool pattern: %w", r.ToolPattern, err)
	}
	switch r.Scope {
	case ScopeAlways, ScopeNever:
	default:
		return fmt.Errorf("rule %q: scope must be %q or %q, got %q", r.ToolPattern, ScopeAlways, ScopeNever, r.Scope)
	}
	r.argRe = nil
	if r.ArgumentPattern != "" {
		re, err := regexp.Compile(r.ArgumentPattern)
		if err != nil {
			return fmt.Errorf("rule %q: invalid argument pattern: %w", r.ToolPattern, err)
		}
		r.argRe = re
	}
	return nil
}

// Matches reports whether the rule applies to an invocation.
// canonicalArgs is the output of CanonicalArgs.
func (r *Rule) Matches(toolName, key, canonicalArgs string) bool {
	ok, err := path.Match(r.ToolPattern, toolName)
	if err != nil || !ok {
		return false
	}
	if r.Key != "" && r.Key != key {
		return false
	}
	if r.ArgumentPattern != "" {
		if r.argRe == nil {
			// Uncompiled rules never match on arguments.
			return false
		}
		return r.argRe.MatchString(canonicalArgs)
	}
	return true
}

// CanonicalArgs serializes arguments deterministically: encoding/json sorts
// map keys at every level.
func CanonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

// escapeGlob quotes path.Match metacharacters so a literal tool name can be
// used as a pattern.
func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
