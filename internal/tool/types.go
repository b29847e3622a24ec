package tool

import (
	"context"
)

// Type represents JSON Schema types.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Schema represents a JSON Schema for tool parameters.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Declaration declares a tool's function signature for the LLM.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Tool is a single entry in a tool registry.
// Each tool carries its own permission-key derivation and display formatting
// alongside its handler, so nothing central has to switch on tool names.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Declaration returns the tool's schema for the LLM.
	Declaration() Declaration

	// PermissionKey returns the tool-specific part of the session grant key,
	// e.g. the file path for edits. Empty means one grant covers every call.
	PermissionKey(args map[string]any) string

	// Describe returns a short human-readable description of the call.
	Describe(args map[string]any) string

	// Execute runs the tool. Returned errors are converted to failed results
	// by the registry; they never abort the conversation.
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Display is implemented by all display types returned from tools.
// The UI uses type switches to render each type appropriately.
type Display interface {
	isDisplay()
}

// StringDisplay is for simple text output (most tools).
type StringDisplay string

func (StringDisplay) isDisplay() {}

// DiffDisplay is for file edit operations with unified diff content.
type DiffDisplay struct {
	Diff         string // Unified diff content
	AddedLines   int
	RemovedLines int
}

func (DiffDisplay) isDisplay() {}
