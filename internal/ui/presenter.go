package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/Cyclone1070/agentcore/internal/workflow"
)

// Presenter writes workflow events to a terminal. With a markdown renderer
// assistant text is buffered and rendered per turn; without one it streams.
type Presenter struct {
	out      io.Writer
	renderer MarkdownRenderer
	verbose  bool

	mu      sync.Mutex
	pending strings.Builder // text not yet written
	midLine bool            // streamed text did not end with a newline
}

// NewPresenter returns a Presenter writing to out. renderer may be nil.
func NewPresenter(out io.Writer, renderer MarkdownRenderer, verbose bool) *Presenter {
	return &Presenter{out: out, renderer: renderer, verbose: verbose}
}

// Consume handles events until the channel is closed or ctx is done.
// Events already buffered when ctx ends are still written.
func (p *Presenter) Consume(ctx context.Context, events <-chan workflow.Event) {
	defer p.Flush()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Handle(ev)
		case <-ctx.Done():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					p.Handle(ev)
				default:
					return
				}
			}
		}
	}
}

// Handle writes one event.
func (p *Presenter) Handle(ev workflow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case workflow.ThinkingEvent:
		if p.verbose {
			p.flushLocked()
			p.println(StatusThinkingStyle.Render(fmt.Sprintf("· thinking (turn %d)", e.Turn)))
		}
	case workflow.TextEvent:
		p.text(e.Text)
	case workflow.ToolStartEvent:
		p.flushLocked()
		label := e.RequestDisplay
		if label == "" {
			label = e.ToolName
		}
		p.println(ToolStartStyle.Render("→ " + e.ToolName + ": " + label))
	case workflow.ToolResultEvent:
		p.flushLocked()
		p.result(e.Result)
	case workflow.UsageEvent:
		if p.verbose {
			p.println(StatusDefaultStyle.Render(fmt.Sprintf("  tokens: %d in, %d out (session %d)",
				e.Turn.InputTokens, e.Turn.OutputTokens, e.Total.Total())))
		}
	case workflow.ErrorEvent:
		p.flushLocked()
		p.println(ErrorStyle.Render("error: " + e.Err.Error()))
	case workflow.TaskDoneEvent:
		p.flushLocked()
		msg := fmt.Sprintf("background task %s (%s) %s", e.TaskID, e.Agent, e.Status)
		if e.Err != nil {
			p.println(ToolFailureStyle.Render(msg + ": " + e.Err.Error()))
		} else {
			p.println(StatusDoneStyle.Render(msg))
		}
	case workflow.DoneEvent:
		p.flushLocked()
		if e.MaxTurnsReached {
			p.println(StatusThinkingStyle.Render(fmt.Sprintf("stopped after %d turns; send another message to continue", e.TurnsTaken)))
		}
	}
}

// Flush writes any buffered assistant text.
func (p *Presenter) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
}

func (p *Presenter) text(delta string) {
	if p.renderer != nil {
		p.pending.WriteString(delta)
		return
	}
	fmt.Fprint(p.out, delta)
	p.midLine = !strings.HasSuffix(delta, "\n")
}

func (p *Presenter) flushLocked() {
	if p.pending.Len() > 0 {
		text := p.pending.String()
		p.pending.Reset()
		out := RenderMarkdown(text, p.renderer)
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		fmt.Fprint(p.out, out)
	}
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func (p *Presenter) result(res tool.Result) {
	if !res.Success {
		p.println(ToolFailureStyle.Render("  ✘ " + firstLine(res.ErrorDetail)))
		return
	}
	if d, ok := res.Display.(tool.DiffDisplay); ok {
		p.println(ToolSuccessStyle.Render(fmt.Sprintf("  ✔ +%d -%d", d.AddedLines, d.RemovedLines)))
		fmt.Fprint(p.out, RenderDiff(d.Diff))
		return
	}
	p.println(ToolSuccessStyle.Render("  ✔ " + summarize(res.Output)))
}

func (p *Presenter) println(s string) {
	fmt.Fprintln(p.out, s)
}

// RenderDiff colours a unified diff line by line.
func RenderDiff(diff string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			sb.WriteString(StatusDefaultStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			sb.WriteString(DiffHunkStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			sb.WriteString(DiffAddStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			sb.WriteString(DiffRemoveStyle.Render(line))
		default:
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// summarize is the first output line plus a count of the rest.
func summarize(output string) string {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return "done"
	}
	n := strings.Count(output, "\n")
	if n == 0 {
		return output
	}
	return fmt.Sprintf("%s (+%d lines)", firstLine(output), n)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
