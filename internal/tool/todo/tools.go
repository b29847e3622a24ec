// Package todo implements a per-session task list the model can keep for itself.
package todo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/tool"
)

const (
	ReadTodosName  = "read_todos"
	WriteTodosName = "write_todos"
)

var statusMarks = map[Status]string{
	StatusPending:    "[ ]",
	StatusInProgress: "[~]",
	StatusCompleted:  "[x]",
	StatusCancelled:  "[-]",
}

// Tools returns read_todos and write_todos over store.
func Tools(store *Store) []tool.Tool {
	if store == nil {
		panic("store is required")
	}
	read := tool.NewTyped(tool.Declaration{
		Name:        ReadTodosName,
		Description: "Show the current todo list.",
		Parameters:  &tool.Schema{Type: tool.TypeObject},
	}, func(ctx context.Context, _ ReadTodosRequest) (tool.Result, error) {
		return tool.OK(format(store.Read())), nil
	})

	write := tool.NewTyped(tool.Declaration{
		Name:        WriteTodosName,
		Description: "Replace the todo list. Use it to plan multi-step work and to mark progress.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"todos": {
					Type: tool.TypeArray,
					Items: &tool.Schema{
						Type: tool.TypeObject,
						Properties: map[string]*tool.Schema{
							"description": {Type: tool.TypeString},
							"status": {Type: tool.TypeString, Enum: []string{
								string(StatusPending), string(StatusInProgress), string(StatusCompleted), string(StatusCancelled),
							}},
						},
						Required: []string{"description", "status"},
					},
				},
			},
			Required: []string{"todos"},
		},
	}, func(ctx context.Context, req WriteTodosRequest) (tool.Result, error) {
		store.Write(req.Todos)
		return tool.OK(fmt.Sprintf("Saved %d todos.\n%s", len(req.Todos), format(req.Todos))), nil
	})

	return []tool.Tool{read, write}
}

func format(todos []Todo) string {
	if len(todos) == 0 {
		return "No todos."
	}
	var sb strings.Builder
	for i, t := range todos {
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, statusMarks[t.Status], t.Description)
	}
	return sb.String()
}
