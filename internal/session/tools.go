package session

import (
	"log/slog"
	"net/http"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/tool/directory"
	"github.com/Cyclone1070/agentcore/internal/tool/file"
	"github.com/Cyclone1070/agentcore/internal/tool/fsutil"
	"github.com/Cyclone1070/agentcore/internal/tool/gitutil"
	"github.com/Cyclone1070/agentcore/internal/tool/pathutil"
	"github.com/Cyclone1070/agentcore/internal/tool/search"
	"github.com/Cyclone1070/agentcore/internal/tool/shell"
	"github.com/Cyclone1070/agentcore/internal/tool/web"
)

// BaseTools builds the workspace tools shared by the parent and sub-agents.
// root must already be canonical.
func BaseTools(cfg config.ToolsConfig, root string, httpClient *http.Client, logger *slog.Logger) []tool.Tool {
	osFS := fsutil.NewOSFileSystem()
	resolver := pathutil.NewResolver(root)
	checksums := fsutil.NewChecksumStore()

	var ignore gitutil.Matcher
	matcher, err := gitutil.NewIgnoreMatcher(root)
	if err != nil {
		logger.Warn("gitignore disabled", "error", err)
		ignore = gitutil.NoOpMatcher{}
	} else {
		ignore = matcher
	}

	var tools []tool.Tool
	tools = append(tools, file.NewTools(osFS, resolver, checksums, cfg).All()...)
	tools = append(tools, directory.NewTools(osFS, resolver, ignore, cfg).All()...)
	tools = append(tools,
		search.NewGrepTool(osFS, resolver, ignore, cfg),
		shell.NewShellTool(shell.NewExecutor(cfg.MaxCommandOutputSize), resolver, cfg),
		web.NewFetchTool(httpClient, cfg),
	)
	return tools
}
