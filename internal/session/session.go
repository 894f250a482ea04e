// Package session holds the shopper's API token for outgoing requests.
//
// The token is set once at login and cleared at logout or when the server
// reports it expired; call sites read it through Store instead of reaching
// into global storage.
package session

import "sync"

// Store provides the current session token.
type Store interface {
	Token() (string, bool)
	Set(token string)
	Clear()
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Store seeded with token. An empty token means no
// session.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

// Token returns the token and whether a session is active.
func (m *Memory) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// Set starts a session with token.
func (m *Memory) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// Clear ends the session.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}
