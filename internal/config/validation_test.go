package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_AllDefaults_Pass(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max turns", func(c *Config) { c.Orchestrator.MaxTurns = 0 }, "max_turns"},
		{"zero max tokens", func(c *Config) { c.Orchestrator.MaxTokens = 0 }, "max_tokens"},
		{"blank model", func(c *Config) { c.Provider.Model = "  " }, "provider.model"},
		{"zero request timeout", func(c *Config) { c.Capability.RequestTimeoutMs = 0 }, "request_timeout_ms"},
		{"no protocol version", func(c *Config) { c.Capability.ProtocolVersion = "" }, "protocol_version"},
		{"server without command", func(c *Config) { c.Capability.Servers["fs"] = ServerConfig{} }, "capability.servers.fs.command"},
		{"empty server name", func(c *Config) { c.Capability.Servers[""] = ServerConfig{Command: "x"} }, "keys must not be empty"},
		{"zero retained tasks", func(c *Config) { c.Agents.MaxRetainedTasks = 0 }, "max_retained_tasks"},
		{"negative retention", func(c *Config) { c.Agents.TaskRetentionMinutes = -1 }, "task_retention_minutes"},
		{"zero file size", func(c *Config) { c.Tools.MaxFileSize = 0 }, "max_file_size"},
		{"zero list entries", func(c *Config) { c.Tools.MaxListEntries = 0 }, "max_list_entries"},
		{"zero search results", func(c *Config) { c.Tools.MaxSearchResults = 0 }, "max_search_results"},
		{"zero line length", func(c *Config) { c.Tools.MaxLineLength = 0 }, "max_line_length"},
		{"zero shell timeout", func(c *Config) { c.Tools.DefaultShellTimeout = 0 }, "default_shell_timeout"},
		{"zero output size", func(c *Config) { c.Tools.MaxCommandOutputSize = 0 }, "max_command_output_size"},
		{"zero fetch timeout", func(c *Config) { c.Tools.FetchTimeoutSeconds = 0 }, "fetch_timeout_seconds"},
		{"zero fetch bytes", func(c *Config) { c.Tools.MaxFetchBytes = 0 }, "max_fetch_bytes"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "DEBUG"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroRetentionAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agents.TaskRetentionMinutes = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MultipleErrors_ReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orchestrator.MaxTurns = 0
	cfg.Tools.MaxFileSize = 0
	cfg.Log.Level = ""

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_turns")
	assert.Contains(t, err.Error(), "max_file_size")
	assert.Contains(t, err.Error(), "log.level")
}
