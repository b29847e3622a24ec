package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Cyclone1070/agentcore/internal/capability"
	"github.com/Cyclone1070/agentcore/internal/permission"
	"github.com/Cyclone1070/agentcore/internal/session"
	"github.com/Cyclone1070/agentcore/internal/ui"
	"github.com/Cyclone1070/agentcore/internal/workflow"
)

const markdownWidth = 100

// run builds a session and either answers prompt or starts the REPL.
func run(ctx context.Context, deps Dependencies, prompt string, connectServers bool) error {
	backend, err := deps.ProviderFactory(ctx, deps.Config, deps.Logger)
	if err != nil {
		return err
	}

	var renderer ui.MarkdownRenderer
	if deps.Markdown {
		if renderer, err = ui.NewGlamourRenderer(markdownWidth); err != nil {
			deps.Logger.Warn("markdown rendering disabled", "error", err)
			renderer = nil
		}
	}
	presenter := ui.NewPresenter(deps.Stdout, renderer, deps.Verbose)
	input := ui.NewLineReader(deps.Stdin)

	var store permission.RuleStore
	if deps.RulesPath != "" {
		store = permission.NewFileRuleStore(deps.RulesPath)
	}

	events := make(chan workflow.Event, 64)
	sess, err := session.New(session.Deps{
		Config:        deps.Config,
		Backend:       backend,
		WorkspaceRoot: deps.WorkspaceRoot,
		Prompter:      ui.NewPrompter(input, deps.Stdout),
		RuleStore:     store,
		Events:        events,
		Logger:        deps.Logger,
	})
	if err != nil {
		return err
	}

	consumeCtx, stopConsume := context.WithCancel(context.Background())
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		presenter.Consume(consumeCtx, events)
	}()
	defer func() {
		if err := sess.Close(); err != nil {
			deps.Logger.Warn("session shutdown incomplete", "error", err)
		}
		stopConsume()
		<-consumed
	}()

	if connectServers {
		if err := sess.ConnectServers(ctx); err != nil {
			deps.Logger.Warn("some capability servers are unavailable", "error", err)
		}
	}

	if prompt != "" {
		_, err := sess.Run(ctx, prompt)
		return err
	}
	return repl(ctx, sess, input, deps.Stdout)
}

// repl reads user messages until EOF, /exit or cancellation.
func repl(ctx context.Context, sess *session.Session, input *ui.LineReader, out io.Writer) error {
	fmt.Fprintln(out, ui.StatusDefaultStyle.Render("workspace "+sess.WorkspaceRoot()+" · /help for commands"))
	for {
		fmt.Fprint(out, ui.UserPromptStyle.Render("> "))
		line, err := input.ReadLine(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := slashCommand(ctx, sess, line, out); quit {
				return nil
			}
			continue
		}

		// Backend failures reach the presenter as error events.
		if _, err := sess.Run(ctx, line); err != nil && ctx.Err() != nil {
			return nil
		}
	}
}

const helpText = `/help     show this help
/reset    clear the conversation and session permissions
/tasks    list background agent tasks
/cancel   cancel a background task: /cancel <id>
/servers  show capability servers
/prompts  list prompt templates of connected servers
/prompt   send a server prompt: /prompt <server> <name> [key=value ...]
/usage    show token usage
/exit     quit`

// slashCommand runs a REPL command and reports whether to quit.
func slashCommand(ctx context.Context, sess *session.Session, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(out, helpText)
	case "/reset":
		sess.Reset()
		fmt.Fprintln(out, ui.StatusDoneStyle.Render("conversation cleared"))
	case "/tasks":
		tasks := sess.Agents().Tasks()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "no background tasks")
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "%s  %-10s %-9s %s\n", t.ID, t.Agent, t.State, time.Since(t.StartedAt).Round(time.Second))
		}
	case "/cancel":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: /cancel <task id>")
			break
		}
		if err := sess.Agents().CancelTask(fields[1]); err != nil {
			fmt.Fprintln(out, ui.ErrorStyle.Render(err.Error()))
		}
	case "/servers":
		printServerStates(out, sess.Capabilities().States())
	case "/prompts":
		printPrompts(out, sess.Capabilities().States())
	case "/prompt":
		if len(fields) < 3 {
			fmt.Fprintln(out, "usage: /prompt <server> <name> [key=value ...]")
			break
		}
		args := make(map[string]string, len(fields)-3)
		for _, kv := range fields[3:] {
			k, v, _ := strings.Cut(kv, "=")
			args[k] = v
		}
		text, err := sess.ExpandPrompt(ctx, fields[1], fields[2], args)
		if err != nil {
			fmt.Fprintln(out, ui.ErrorStyle.Render(err.Error()))
			break
		}
		_, _ = sess.Run(ctx, text)
	case "/usage":
		u := sess.Orchestrator().Usage()
		fmt.Fprintf(out, "%d input, %d output, %d total tokens\n", u.InputTokens, u.OutputTokens, u.Total())
	default:
		fmt.Fprintf(out, "unknown command %s, try /help\n", fields[0])
	}
	return false
}

func printPrompts(out io.Writer, states []capability.ServerState) {
	n := 0
	for _, st := range states {
		for _, p := range st.Prompts {
			n++
			args := make([]string, 0, len(p.Arguments))
			for _, a := range p.Arguments {
				if a.Required {
					args = append(args, a.Name)
				} else {
					args = append(args, "["+a.Name+"]")
				}
			}
			fmt.Fprintf(out, "%s %s %s  %s\n", st.Name, p.Name, strings.Join(args, " "), p.Description)
		}
	}
	if n == 0 {
		fmt.Fprintln(out, "no prompts available")
	}
}
