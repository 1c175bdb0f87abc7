package persist

import (
	"sync"

	"avaneesh/pnio-go/pkg/types"
)

// Memory is a Store that forgets everything at exit
type Memory struct {
	mu    sync.Mutex
	id    types.StationIdentity
	saved bool
	saves int
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Store
func (m *Memory) Load() (types.StationIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return types.StationIdentity{}, ErrNotFound
	}
	return m.id, nil
}

// Save implements Store
func (m *Memory) Save(id types.StationIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id, m.saved = id, true
	m.saves++
	return nil
}

// Reset implements Store
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id, m.saved = types.StationIdentity{}, false
	return nil
}

// Close implements Store
func (m *Memory) Close() error { return nil }

// Saves returns the number of Save calls
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
