package archive

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps payloads in a map and returns pseudo URIs. Used in tests and
// local development where no bucket exists.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Put stores the payload under key and returns a memory:// URI.
func (a *Memory) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	a.mu.Lock()
	a.data[key] = append([]byte(nil), data...)
	a.mu.Unlock()
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns a stored payload.
func (a *Memory) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports how many payloads are stored.
func (a *Memory) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
