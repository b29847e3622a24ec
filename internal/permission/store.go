package permission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RuleStore persists permanent rules across sessions.
type RuleStore interface {
	Load() ([]Rule, error)
	Save(rules []Rule) error
}

// FileRuleStore keeps rules in a JSON file. A missing file holds no rules.
type FileRuleStore struct {
	path string
}

func NewFileRuleStore(path string) *FileRuleStore {
	return &FileRuleStore{path: path}
}

func (s *FileRuleStore) Path() string { return s.path }

func (s *FileRuleStore) Load() ([]Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules %s: %w", s.path, err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", s.path, err)
	}
	return rules, nil
}

// Save writes the rules atomically via a temp file and rename.
func (s *FileRuleStore) Save(rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".permissions-*.json")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close rules: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace rules %s: %w", s.path, err)
	}
	return nil
}

// MemoryRuleStore keeps rules in memory only.
type MemoryRuleStore struct {
	mu    sync.Mutex
	rules []Rule
	saves int
}

func NewMemoryRuleStore(rules ...Rule) *MemoryRuleStore {
	return &MemoryRuleStore{rules: append([]Rule(nil), rules...)}
}

func (s *MemoryRuleStore) Load() ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Rule(nil), s.rules...), nil
}

func (s *MemoryRuleStore) Save(rules []Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]Rule(nil), rules...)
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryRuleStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
