package session

import (
	"sync"
	"time"
)

// Manager serializes runs per client so one caller cannot have several
// agent conversations hitting the model and the database at the same time.
type Manager struct {
	mu      sync.Mutex
	mutexes map[string]*clientLock
}

type clientLock struct {
	mu       sync.Mutex
	waiters  int // guarded by Manager.mu
	lastUsed time.Time
}

func NewManager() *Manager {
	return &Manager{
		mutexes: make(map[string]*clientLock),
	}
}

// WithLock executes fn while holding the per-client mutex.
// Runs from the same client are serialized; different clients run in parallel.
func (m *Manager) WithLock(client string, fn func() error) error {
	m.mu.Lock()
	cl, ok := m.mutexes[client]
	if !ok {
		cl = &clientLock{}
		m.mutexes[client] = cl
	}
	cl.waiters++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		cl.waiters--
		cl.lastUsed = time.Now()
		m.mu.Unlock()
	}()

	cl.mu.Lock()
	defer cl.mu.Unlock()
	return fn()
}

// Cleanup removes idle locks not used within maxAge to prevent memory leaks.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for client, cl := range m.mutexes {
		if cl.waiters == 0 && now.Sub(cl.lastUsed) > maxAge {
			delete(m.mutexes, client)
		}
	}
}

// Len reports how many clients currently have a lock entry.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mutexes)
}
