package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Provider     ProviderConfig     `json:"provider"`
	Permission   PermissionConfig   `json:"permission"`
	Capability   CapabilityConfig   `json:"capability"`
	Agents       AgentsConfig       `json:"agents"`
	Tools        ToolsConfig        `json:"tools"`
	Log          LogConfig          `json:"log"`
}

type OrchestratorConfig struct {
	MaxTurns     int    `json:"max_turns"`     // Default: 50
	MaxTokens    int    `json:"max_tokens"`    // Default: 8192
	SystemPrompt string `json:"system_prompt"` // Default: built-in coding assistant prompt

	// RequirePermissionForSafeTools disables auto-approval of read-only tools.
	RequirePermissionForSafeTools bool `json:"require_permission_for_safe_tools"`
}

type ProviderConfig struct {
	Model     string `json:"model"`       // Default: gemini-2.5-flash
	APIKeyEnv string `json:"api_key_env"` // Default: GEMINI_API_KEY
}

type PermissionConfig struct {
	// RulesFile stores permanent rules. Empty means ~/.config/agentcore/permissions.json.
	RulesFile string   `json:"rules_file"`
	SafeTools []string `json:"safe_tools"`
}

// ServerConfig describes how to launch one capability server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

type CapabilityConfig struct {
	RequestTimeoutMs int                     `json:"request_timeout_ms"` // Default: 30000
	ProtocolVersion  string                  `json:"protocol_version"`   // Default: 2024-11-05
	Servers          map[string]ServerConfig `json:"servers"`
}

type AgentsConfig struct {
	Dir                  string `json:"dir"`                    // Default: .agentcore/agents (relative to workspace)
	MaxRetainedTasks     int    `json:"max_retained_tasks"`     // Default: 100
	TaskRetentionMinutes int    `json:"task_retention_minutes"` // Default: 60
}

type ToolsConfig struct {
	// File Operations
	MaxFileSize int64 `json:"max_file_size"` // Default: 5MB

	// Directory Listing / Search
	MaxListEntries   int `json:"max_list_entries"`   // Default: 1000
	MaxSearchResults int `json:"max_search_results"` // Default: 200
	MaxLineLength    int `json:"max_line_length"`    // Default: 2000

	// Command Execution
	DefaultShellTimeout  int   `json:"default_shell_timeout"`   // Default: 120 (seconds)
	MaxCommandOutputSize int64 `json:"max_command_output_size"` // Default: 1MB

	// Web
	FetchTimeoutSeconds int   `json:"fetch_timeout_seconds"` // Default: 30
	MaxFetchBytes       int64 `json:"max_fetch_bytes"`       // Default: 1MB
}

type LogConfig struct {
	Level string `json:"level"` // Default: info
}

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = `You are a coding assistant working inside the user's workspace.
Use the available tools to inspect and change files and to run commands.
Prefer reading before editing, keep changes minimal, and explain what you did.`

// DefaultSafeTools are read-only tools auto-approved unless configured otherwise.
var DefaultSafeTools = []string{"read_file", "list_directory", "glob", "grep", "fetch_url", "read_todos", "write_todos"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxTurns:     50,
			MaxTokens:    8192,
			SystemPrompt: DefaultSystemPrompt,
		},
		Provider: ProviderConfig{
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Permission: PermissionConfig{
			SafeTools: append([]string(nil), DefaultSafeTools...),
		},
		Capability: CapabilityConfig{
			RequestTimeoutMs: 30000,
			ProtocolVersion:  "2024-11-05",
			Servers:          map[string]ServerConfig{},
		},
		Agents: AgentsConfig{
			Dir:                  ".agentcore/agents",
			MaxRetainedTasks:     100,
			TaskRetentionMinutes: 60,
		},
		Tools: ToolsConfig{
			MaxFileSize:          5 * 1024 * 1024,
			MaxListEntries:       1000,
			MaxSearchResults:     200,
			MaxLineLength:        2000,
			DefaultShellTimeout:  120,
			MaxCommandOutputSize: 1024 * 1024,
			FetchTimeoutSeconds:  30,
			MaxFetchBytes:        1024 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
