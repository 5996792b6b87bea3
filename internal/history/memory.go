package history

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Ledger for tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]time.Time)}
}

func (m *Memory) Contains(_ context.Context, feedID, entryID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[feedID+"\x00"+entryID]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, feedID, entryID string, notifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := feedID + "\x00" + entryID
	if _, ok := m.seen[key]; !ok {
		m.seen[key] = notifiedAt
	}
	return nil
}

// Len reports the number of recorded pairs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}
