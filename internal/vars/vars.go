// Package vars implements the in-process variable bus: named string slots
// with last-write-wins semantics and change notification.
package vars

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shelepuginivan/statusbar/internal/broadcast"
)

// DefaultBufferSize is the number of pending values a subscriber may hold.
const DefaultBufferSize = 16

// ErrInvalidName is returned by [Manager.Set] for names that cannot be used
// as variable names.
var ErrInvalidName = errors.New("vars: invalid variable name")

// Subscription receives every value written to one variable after it was
// created.
type Subscription = broadcast.Subscription[string]

type variable struct {
	value string
	set   bool
	hub   *broadcast.Hub[string]
}

// Manager holds all variables of the process.
type Manager struct {
	mu   sync.Mutex
	vars map[string]*variable
	size int
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		vars: make(map[string]*variable),
		size: DefaultBufferSize,
	}
}

// Subscribe returns a subscription to name. The variable does not have to
// exist yet.
func (m *Manager) Subscribe(name string) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lookup(name).hub.Subscribe()
}

// Set stores value under name and notifies its subscribers.
func (m *Manager) Set(name, value string) error {
	if name == "" || strings.Contains(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Publishing under the lock keeps notification order equal to write order.
	v := m.lookup(name)
	v.value = value
	v.set = true
	v.hub.Publish(value)

	return nil
}

// Get returns the current value of name and whether it was ever set.
func (m *Manager) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vars[name]
	if !ok || !v.set {
		return "", false
	}

	return v.value, true
}

// Names returns the sorted names of all variables that have a value.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.vars))
	for name, v := range m.vars {
		if v.set {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// lookup returns the variable called name, creating it if needed. Must be
// called with m.mu held.
func (m *Manager) lookup(name string) *variable {
	v, ok := m.vars[name]
	if !ok {
		v = &variable{hub: broadcast.New[string]("vars", m.size)}
		m.vars[name] = v
	}

	return v
}
