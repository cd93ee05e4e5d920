// Package store holds the authoritative, process-lifetime duel state.
//
// Put is the only mutation path. Lock provides the per-duel serialization
// domain: callers that read-modify-write a duel hold Lock(id) for the whole
// unit so two reconciliations of the same duel cannot interleave, while
// different duels never contend.
package store

import (
	"sync"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

type entry struct {
	state    *duel.State
	revision uint64
}

// Store maps duel IDs to their current state.
// It is safe for concurrent use. Values returned are clones.
type Store struct {
	mu    sync.RWMutex
	duels map[string]*entry
	locks *KeyedMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		duels: make(map[string]*entry),
		locks: NewKeyedMutex(),
	}
}

// Get returns a copy of the duel's current state.
func (s *Store) Get(id string) (*duel.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.duels[id]
	if !ok {
		return nil, false
	}
	return e.state.Clone(), true
}

// Put replaces the duel's state wholesale and bumps its revision.
// Returns the new revision.
func (s *Store) Put(state *duel.State) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.duels[state.ID]
	if !ok {
		e = &entry{}
		s.duels[state.ID] = e
	}
	e.state = state.Clone()
	e.revision++
	return e.revision
}

// Revision returns how many times the duel has been written. Zero means unknown.
func (s *Store) Revision(id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.duels[id]; ok {
		return e.revision
	}
	return 0
}

// List returns a snapshot of every duel. Order is unspecified.
func (s *Store) List() []*duel.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*duel.State, 0, len(s.duels))
	for _, e := range s.duels {
		out = append(out, e.state.Clone())
	}
	return out
}

// Len returns the number of known duels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.duels)
}

// Lock acquires the serialization lock for one duel and returns its release func.
func (s *Store) Lock(id string) (unlock func()) {
	return s.locks.Lock(id)
}
