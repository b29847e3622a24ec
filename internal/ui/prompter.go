package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/permission"
)

// Prompter asks the user about permission requests on a terminal.
type Prompter struct {
	in  *LineReader
	out io.Writer
	mu  sync.Mutex // one question at a time, including from background agents
}

func NewPrompter(in *LineReader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// RequestPermission shows the request and waits for y, n or a. An empty
// answer or closed input denies.
func (p *Prompter) RequestPermission(ctx context.Context, req permission.Request) (permission.Answer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body := fmt.Sprintf("Allow %s?\n%s", req.Tool, req.Description)
	if preview := RenderPreview(req); preview != "" {
		body += "\n\n" + strings.TrimRight(preview, "\n")
	}
	fmt.Fprintln(p.out, PermissionStyle.Render(body))

	for {
		fmt.Fprint(p.out, "[y]es / [n]o / [a]lways: ")
		line, err := p.in.ReadLinePriority(ctx)
		if err == io.EOF {
			fmt.Fprintln(p.out)
			return permission.AnswerNo, nil
		}
		if err != nil {
			return "", err
		}
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		fmt.Fprintf(p.out, "Please answer y, n or a.\n")
	}
}

func parseAnswer(s string) (permission.Answer, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return permission.AnswerYes, true
	case "", "n", "no":
		return permission.AnswerNo, true
	case "a", "always":
		return permission.AnswerAlways, true
	}
	return "", false
}
