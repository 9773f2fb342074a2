package testutil

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Registration is one call received by MockRegistrar.
type Registration struct {
	Path string
	Base uint64
}

// MockRegistrar records symbol registrations and fails for configured files.
type MockRegistrar struct {
	mu       sync.Mutex
	calls    []Registration
	failures map[string]error
}

// NewMockRegistrar creates a registrar that accepts every file.
func NewMockRegistrar() *MockRegistrar {
	return &MockRegistrar{failures: make(map[string]error)}
}

// FailFor makes registration of any file with the given base name fail.
func (m *MockRegistrar) FailFor(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = err
}

// Clear removes a configured failure.
func (m *MockRegistrar) Clear(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, name)
}

// Register implements the registration service.
func (m *MockRegistrar) Register(path string, base uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Registration{Path: path, Base: base})
	if err, ok := m.failures[filepath.Base(path)]; ok {
		if err == nil {
			return fmt.Errorf("registration rejected")
		}
		return err
	}
	return nil
}

// Calls returns a copy of all registrations received so far.
func (m *MockRegistrar) Calls() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Registration(nil), m.calls...)
}

// CallCount returns the number of registrations received so far.
func (m *MockRegistrar) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockBaseQuery answers base-address queries from a fixed table.
type MockBaseQuery struct {
	Bases   map[string]uint64
	Queries []string
}

// CurrentBase implements the base-address query collaborator.
func (m *MockBaseQuery) CurrentBase(hint string) (uint64, bool) {
	m.Queries = append(m.Queries, hint)
	base, ok := m.Bases[hint]
	return base, ok
}
