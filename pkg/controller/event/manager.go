// Package event buffers the typed events controllers emit while handling a
// single transaction.
package event

import (
	"sync"

	"github.com/gdex-labs/gdex/pkg/types"
)

// Manager is shared by every controller. Handlers push zero or more events
// per transaction; the router swaps the buffer out at the end of dispatch.
type Manager struct {
	mu      sync.Mutex
	current types.ExecutionResultBody
}

func NewManager() *Manager {
	return &Manager{}
}

// Push appends one event to the current transaction's buffer.
func (m *Manager) Push(e types.ExecutionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Events = append(m.current.Events, e)
}

// Emit swaps the current buffer for an empty one and returns the collected
// result.
func (m *Manager) Emit() types.ExecutionResultBody {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.current
	m.current = types.ExecutionResultBody{}
	return out
}

// Reset drops any buffered events.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = types.ExecutionResultBody{}
}
