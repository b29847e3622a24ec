package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Cyclone1070/agentcore/internal/agent"
	"github.com/Cyclone1070/agentcore/internal/capability"
	"github.com/Cyclone1070/agentcore/internal/ui"
	"github.com/spf13/cobra"
)

func newAgentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List built-in and workspace agent definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			root, err := workspaceRoot(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			defs := agent.Builtins()
			if cfg.Agents.Dir != "" {
				dir := cfg.Agents.Dir
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(root, dir)
				}
				custom, err := agent.LoadDir(dir)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ui.ErrorStyle.Render(err.Error()))
				}
				defs = append(defs, custom...)
			}
			for _, d := range defs {
				printDefinition(out, d)
			}
			return nil
		},
	}
}

func printDefinition(out io.Writer, d agent.Definition) {
	fmt.Fprintln(out, ui.ToolStartStyle.Render(d.Name)+"  "+d.Description)
	tools := "all"
	if len(d.Tools.Allow) > 0 {
		tools = strings.Join(d.Tools.Allow, ", ")
	}
	if len(d.Tools.Block) > 0 {
		tools += " except " + strings.Join(d.Tools.Block, ", ")
	}
	fmt.Fprintf(out, "  tools: %s\n", tools)
	if d.MaxTurns > 0 {
		fmt.Fprintf(out, "  max turns: %d\n", d.MaxTurns)
	}
	if d.Background {
		fmt.Fprintln(out, "  runs in background")
	}
}

func newServersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "Start each configured capability server and show what it offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
			mgr := capability.NewManager(cfg.Capability.Servers, capability.ClientOptions{
				Timeout:         time.Duration(cfg.Capability.RequestTimeoutMs) * time.Millisecond,
				ProtocolVersion: cfg.Capability.ProtocolVersion,
				Logger:          logger,
			})
			defer mgr.DisconnectAll()

			if len(mgr.Names()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no capability servers configured")
				return nil
			}
			connectErr := mgr.ConnectAll(cmd.Context())
			printServerStates(cmd.OutOrStdout(), mgr.States())
			return connectErr
		},
	}
}

func printServerStates(out io.Writer, states []capability.ServerState) {
	if len(states) == 0 {
		fmt.Fprintln(out, "no capability servers configured")
		return
	}
	for _, st := range states {
		style := ui.StatusDefaultStyle
		switch st.Status {
		case capability.StatusConnected:
			style = ui.StatusDoneStyle
		case capability.StatusError:
			style = ui.ToolFailureStyle
		}
		fmt.Fprintf(out, "%s  %s\n", st.Name, style.Render(string(st.Status)))
		for _, t := range st.Tools {
			fmt.Fprintf(out, "  tool %s  %s\n", t.Name, firstLine(t.Description))
		}
		if n := len(st.Resources); n > 0 {
			fmt.Fprintf(out, "  %d resources\n", n)
		}
		if n := len(st.Prompts); n > 0 {
			fmt.Fprintf(out, "  %d prompts\n", n)
		}
	}
}

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the chat models available to the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			p, err := newGeminiProvider(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg.Log.Level))
			if err != nil {
				return err
			}
			models, err := p.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			for _, m := range models {
				marker := "  "
				if m == cfg.Provider.Model {
					marker = "* "
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker+m)
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
