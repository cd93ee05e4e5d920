package reconcile

import (
	"context"
	"sync"
)

// MemorySignatures is a process-local SignatureLedger.
type MemorySignatures struct {
	mu        sync.Mutex
	processed map[string]map[string]struct{} // duelID -> signatures
	inflight  map[string]map[string]struct{} // duelID -> signatures
}

// NewMemorySignatures creates an empty in-memory ledger.
func NewMemorySignatures() *MemorySignatures {
	return &MemorySignatures{
		processed: make(map[string]map[string]struct{}),
		inflight:  make(map[string]map[string]struct{}),
	}
}

// Reserve implements SignatureLedger.
func (m *MemorySignatures) Reserve(_ context.Context, duelID, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.processed[duelID][signature]; done {
		return false, nil
	}
	if _, busy := m.inflight[duelID][signature]; busy {
		return false, nil
	}

	add(m.inflight, duelID, signature)
	return true, nil
}

// Commit implements SignatureLedger.
func (m *MemorySignatures) Commit(_ context.Context, duelID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	remove(m.inflight, duelID, signature)
	add(m.processed, duelID, signature)
	return nil
}

// Release implements SignatureLedger.
func (m *MemorySignatures) Release(_ context.Context, duelID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	remove(m.inflight, duelID, signature)
	return nil
}

func add(set map[string]map[string]struct{}, duelID, signature string) {
	sigs, ok := set[duelID]
	if !ok {
		sigs = make(map[string]struct{})
		set[duelID] = sigs
	}
	sigs[signature] = struct{}{}
}

func remove(set map[string]map[string]struct{}, duelID, signature string) {
	sigs, ok := set[duelID]
	if !ok {
		return
	}
	delete(sigs, signature)
	if len(sigs) == 0 {
		delete(set, duelID)
	}
}
