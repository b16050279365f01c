package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Records are stored
// encoded so callers never share state with the store. Expired entries are
// dropped lazily on access.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Create stores a new session record.
func (m *MemorySessionStore) Create(_ context.Context, s *model.ExamSession, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.ID] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get loads a session record.
func (m *MemorySessionStore) Get(_ context.Context, id string) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeSession(e.data)
}

// Update runs fn while holding the store lock.
func (m *MemorySessionStore) Update(_ context.Context, id string, fn func(s *model.ExamSession) error) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess, err := decodeSession(e.data)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	m.entries[id] = memoryEntry{data: data, expiresAt: e.expiresAt}
	return sess, nil
}

// Delete removes a session record.
func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// lookup must be called with mu held.
func (m *MemorySessionStore) lookup(id string) (memoryEntry, bool) {
	e, ok := m.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}
