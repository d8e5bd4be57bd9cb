// Package sim exposes the subscription-record and SIM-resident key-value
// stores used to persist the last protocol message reference across
// restarts.
package sim

import "sync"

// RefNotSet marks a store that has never recorded a reference.
const RefNotSet = -1

// RefStore persists the last-used message reference for a subscription.
// Implementations return RefNotSet (with a nil error) when no value has been
// written; a non-nil error means the backing medium could not be read and
// the caller should fall back to another source.
type RefStore interface {
	LastMessageRef(subID int) (int, error)
	SetLastMessageRef(subID int, ref int) error
}

// Compile-time check
var _ RefStore = (*MemoryRefStore)(nil)

// MemoryRefStore is an in-process RefStore, standing in for both the
// subscription database and the SIM elementary file in tests and in the
// standalone daemon.
type MemoryRefStore struct {
	mu   sync.Mutex
	refs map[int]int
}

func NewMemoryRefStore() *MemoryRefStore {
	return &MemoryRefStore{refs: make(map[int]int)}
}

func (s *MemoryRefStore) LastMessageRef(subID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[subID]
	if !ok {
		return RefNotSet, nil
	}
	return ref, nil
}

func (s *MemoryRefStore) SetLastMessageRef(subID int, ref int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[subID] = ref
	return nil
}
