package incidents

import (
	"context"
	"sync"

	"github.com/bissquit/oprisk/internal/domain"
)

// Escalator performs escalation transitions.
type Escalator interface {
	Escalate(ctx context.Context, incidentID string, input EscalateInput) (*domain.IncidentEscalation, error)
}

// KeyedMutex hands out one lock per key and forgets keys nobody holds.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the lock for key is held and returns its release function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// SerializedEscalator runs Escalate calls for the same incident one at a time.
// Calls for different incidents proceed in parallel.
type SerializedEscalator struct {
	next  Escalator
	locks *KeyedMutex
}

// NewSerializedEscalator wraps next with per-incident serialization.
func NewSerializedEscalator(next Escalator) *SerializedEscalator {
	return &SerializedEscalator{
		next:  next,
		locks: NewKeyedMutex(),
	}
}

// Escalate implements Escalator.
func (s *SerializedEscalator) Escalate(ctx context.Context, incidentID string, input EscalateInput) (*domain.IncidentEscalation, error) {
	unlock := s.locks.Lock(incidentID)
	defer unlock()

	return s.next.Escalate(ctx, incidentID, input)
}
