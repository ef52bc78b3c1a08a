package conversation

import (
	"context"
	"sync"
	"time"
)

// Store keeps one session per sender.
type Store interface {
	// Get returns a copy of the sender's session, or a new one when absent.
	Get(ctx context.Context, sender string) (*Session, error)
	Put(ctx context.Context, sender string, s *Session) error
	// Lock serializes turns for a sender until unlock is called.
	Lock(ctx context.Context, sender string) (unlock func(), err error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    *keyedMutex
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, sender string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sender]
	m.mu.RUnlock()
	if !ok {
		return NewSession(sender), nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, sender string, s *Session) error {
	c := s.Clone()
	c.Sender = sender
	c.UpdatedAt = m.now().UTC()
	m.mu.Lock()
	m.sessions[sender] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, sender string) (func(), error) {
	return m.locks.Lock(ctx, sender)
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// keyedMutex hands out one lock per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

type keyedSlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]*keyedSlot)}
}

func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &keyedSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			k.release(key, slot)
		})
	}, nil
}

func (k *keyedMutex) release(key string, slot *keyedSlot) {
	k.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
