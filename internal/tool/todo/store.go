package todo

import "sync"

// Store holds one conversation's todo list in memory.
type Store struct {
	mu    sync.RWMutex
	todos []Todo
}

func NewStore() *Store {
	return &Store{}
}

// Read returns a copy of the list.
func (s *Store) Read() []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// Write replaces the list with a copy of todos.
func (s *Store) Write(todos []Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos = make([]Todo, len(todos))
	copy(s.todos, todos)
}
