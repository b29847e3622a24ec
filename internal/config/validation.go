package config

import (
	"fmt"
	"strings"
)

// Validate checks config values for correctness.
// Returns an error listing every invalid value.
func (c *Config) Validate() error {
	var errs []string

	// Orchestrator
	if c.Orchestrator.MaxTurns < 1 {
		errs = append(errs, "orchestrator.max_turns must be >= 1")
	}
	if c.Orchestrator.MaxTokens < 1 {
		errs = append(errs, "orchestrator.max_tokens must be >= 1")
	}

	// Provider
	if strings.TrimSpace(c.Provider.Model) == "" {
		errs = append(errs, "provider.model must not be empty")
	}

	// Capability servers
	if c.Capability.RequestTimeoutMs < 1 {
		errs = append(errs, "capability.request_timeout_ms must be >= 1")
	}
	if c.Capability.ProtocolVersion == "" {
		errs = append(errs, "capability.protocol_version must not be empty")
	}
	for name, srv := range c.Capability.Servers {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "capability.servers keys must not be empty")
		}
		if strings.Contains(name, "__") {
			errs = append(errs, fmt.Sprintf("capability.servers.%s: name must not contain \"__\"", name))
		}
		if strings.TrimSpace(srv.Command) == "" {
			errs = append(errs, fmt.Sprintf("capability.servers.%s.command must not be empty", name))
		}
	}

	// Agents
	if c.Agents.MaxRetainedTasks < 1 {
		errs = append(errs, "agents.max_retained_tasks must be >= 1")
	}
	if c.Agents.TaskRetentionMinutes < 0 {
		errs = append(errs, "agents.task_retention_minutes must be >= 0")
	}

	// Tools
	if c.Tools.MaxFileSize < 1 {
		errs = append(errs, "tools.max_file_size must be >= 1")
	}
	if c.Tools.MaxListEntries < 1 {
		errs = append(errs, "tools.max_list_entries must be >= 1")
	}
	if c.Tools.MaxSearchResults < 1 {
		errs = append(errs, "tools.max_search_results must be >= 1")
	}
	if c.Tools.MaxLineLength < 1 {
		errs = append(errs, "tools.max_line_length must be >= 1")
	}
	if c.Tools.DefaultShellTimeout < 1 {
		errs = append(errs, "tools.default_shell_timeout must be >= 1")
	}
	if c.Tools.MaxCommandOutputSize < 1 {
		errs = append(errs, "tools.max_command_output_size must be >= 1")
	}
	if c.Tools.FetchTimeoutSeconds < 1 {
		errs = append(errs, "tools.fetch_timeout_seconds must be >= 1")
	}
	if c.Tools.MaxFetchBytes < 1 {
		errs = append(errs, "tools.max_fetch_bytes must be >= 1")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
