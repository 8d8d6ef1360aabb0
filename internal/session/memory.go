package session

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/profile-service/internal/domain"
)

type memoryEntry struct {
	token     domain.SessionToken
	expiresAt time.Time
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the token of the session.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (domain.SessionToken, error) {
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()

	if !ok || entry.token.IsZero() {
		return "", noCredential(sessionID)
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return "", noCredential(sessionID)
	}
	return entry.token, nil
}

// Set stores token. A ttl of zero keeps it until deleted.
func (m *MemoryStore) Set(_ context.Context, sessionID string, token domain.SessionToken, ttl time.Duration) error {
	entry := memoryEntry{token: token}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = entry
	return nil
}

// Delete removes the token of the session.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}
