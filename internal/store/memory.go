package store

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time check
var _ MessageStore = (*Memory)(nil)

// Memory keeps records in process memory. Used by the standalone daemon and
// by tests.
type Memory struct {
	mu     sync.Mutex
	nextID Handle
	recs   map[Handle]Record
}

func NewMemory() *Memory {
	return &Memory{recs: make(map[Handle]Record)}
}

func (m *Memory) Insert(_ context.Context, rec Record) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.recs[m.nextID] = rec
	return m.nextID, nil
}

func (m *Memory) Update(_ context.Context, h Handle, state State, errorCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[h]
	if !ok {
		return fmt.Errorf("no record for handle %d", h)
	}
	rec.State = state
	rec.ErrorCode = errorCode
	m.recs[h] = rec
	return nil
}

// Get returns a stored record. Test helper.
func (m *Memory) Get(h Handle) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[h]
	return rec, ok
}
