// Package main provides the agentcore command-line assistant.
// It runs one prompt or an interactive session against the configured
// workspace, and offers subcommands to inspect agents, servers and models.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/provider/gemini"
	"github.com/Cyclone1070/agentcore/internal/ui"
	"github.com/spf13/cobra"
)

// ProviderFactory creates the completion backend once configuration is known.
type ProviderFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Backend, error)

// Dependencies holds the components required to run the application.
type Dependencies struct {
	Config          *config.Config
	RulesPath       string // "" keeps permanent rules in memory
	WorkspaceRoot   string
	ProviderFactory ProviderFactory

	Stdin    io.Reader
	Stdout   io.Writer
	Logger   *slog.Logger
	Markdown bool // render assistant text with glamour
	Verbose  bool
}

// options are the root command's flags.
type options struct {
	configPath string
	workspace  string
	debug      bool
	maxTurns   int
	model      string
	prompt     string
	noServers  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(createRealProviderFactory).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(factory ProviderFactory) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "agentcore [prompt]",
		Short:         "A coding assistant that works inside your workspace",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDependencies(cmd, opts, factory)
			if err != nil {
				return err
			}
			prompt := opts.prompt
			if prompt == "" && len(args) > 0 {
				prompt = strings.Join(args, " ")
			}
			return run(cmd.Context(), deps, prompt, !opts.noServers)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/agentcore/config.json)")
	flags.StringVarP(&opts.workspace, "workspace", "w", "", "workspace root (default current directory)")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level and show turn details")
	root.Flags().IntVar(&opts.maxTurns, "max-turns", 0, "override orchestrator.max_turns")
	root.Flags().StringVarP(&opts.model, "model", "m", "", "override provider.model")
	root.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "run one prompt and exit")
	root.Flags().BoolVar(&opts.noServers, "no-servers", false, "do not start capability servers")

	root.AddCommand(
		newAgentsCmd(opts),
		newServersCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// loadConfig layers the user (or --config) file and the workspace file,
// then applies flag overrides.
func loadConfig(opts *options) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	base := opts.configPath
	if base == "" {
		base = loader.UserConfigPath()
	}
	layers := []string{base}
	if root, err := workspaceRoot(opts); err == nil {
		layers = append(layers, config.WorkspaceConfigPath(root))
	}
	cfg, err := loader.LoadLayers(layers...)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
	if opts.maxTurns > 0 {
		cfg.Orchestrator.MaxTurns = opts.maxTurns
	}
	if opts.model != "" {
		cfg.Provider.Model = opts.model
	}
	return cfg, loader, nil
}

func workspaceRoot(opts *options) (string, error) {
	if opts.workspace != "" {
		return opts.workspace, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

func buildDependencies(cmd *cobra.Command, opts *options, factory ProviderFactory) (Dependencies, error) {
	cfg, loader, err := loadConfig(opts)
	if err != nil {
		return Dependencies{}, err
	}
	root, err := workspaceRoot(opts)
	if err != nil {
		return Dependencies{}, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	rulesPath, err := loader.RulesPath(cfg)
	if err != nil {
		logger.Warn("permanent permission rules will not be saved", "error", err)
		rulesPath = ""
	}

	markdown := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		markdown = ui.IsTerminal(f)
	}

	return Dependencies{
		Config:          cfg,
		RulesPath:       rulesPath,
		WorkspaceRoot:   root,
		ProviderFactory: factory,
		Stdin:           cmd.InOrStdin(),
		Stdout:          cmd.OutOrStdout(),
		Logger:          logger,
		Markdown:        markdown,
		Verbose:         opts.debug,
	}, nil
}

// newLogger returns a text logger on w at the named level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func createRealProviderFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Backend, error) {
	return newGeminiProvider(ctx, cfg, logger)
}

func newGeminiProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gemini.GeminiProvider, error) {
	apiKey := os.Getenv(cfg.Provider.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is required", cfg.Provider.APIKeyEnv)
	}
	client, err := gemini.NewClientFromAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return gemini.New(client, cfg.Provider.Model, logger.With("component", "gemini")), nil
}
