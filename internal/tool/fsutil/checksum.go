package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// ChecksumStore remembers the SHA-256 of each file as last seen by a tool, so
// edits can detect that a file changed underneath the conversation.
type ChecksumStore struct {
	mu    sync.RWMutex
	store map[string]string
}

func NewChecksumStore() *ChecksumStore {
	return &ChecksumStore{store: make(map[string]string)}
}

// Compute returns the hex SHA-256 of data.
func (m *ChecksumStore) Compute(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (m *ChecksumStore) Get(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	checksum, ok := m.store[path]
	return checksum, ok
}

func (m *ChecksumStore) Update(path, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[path] = checksum
}

// Clear forgets every recorded checksum.
func (m *ChecksumStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]string)
}
