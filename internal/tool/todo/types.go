package todo

import "fmt"

// Status is the state of one todo item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Todo is a single task item.
type Todo struct {
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// WriteTodosRequest replaces the whole list.
type WriteTodosRequest struct {
	Todos []Todo `json:"todos"`
}

func (r WriteTodosRequest) String() string {
	return fmt.Sprintf("%d todos", len(r.Todos))
}

func (r *WriteTodosRequest) Validate() error {
	for i, t := range r.Todos {
		if t.Description == "" {
			return fmt.Errorf("todo %d: description cannot be empty", i)
		}
		if !t.Status.valid() {
			return fmt.Errorf("todo %d: invalid status %q", i, t.Status)
		}
	}
	return nil
}

// ReadTodosRequest takes no arguments.
type ReadTodosRequest struct{}

func (ReadTodosRequest) String() string {
	return "todo list"
}
