package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/newsdigest/session/session_models"
)

// Store keeps conversations in process memory; everything is lost on restart.
type Store struct {
	sessions map[string]session_models.Conversation
	running  map[string]struct{}
	mu       sync.RWMutex
}

func NewInMemorySessionStore() *Store {
	return &Store{
		sessions: make(map[string]session_models.Conversation),
		running:  make(map[string]struct{}),
	}
}

func (store *Store) Get(_ context.Context, id string) (session_models.Conversation, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	conv, ok := store.sessions[id]
	if !ok {
		return session_models.Conversation{}, false, nil
	}
	return conv.Clone(), true, nil
}

func (store *Store) Save(_ context.Context, conv session_models.Conversation) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[conv.ID] = conv.Clone()
	return nil
}

func (store *Store) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
	return nil
}

func (store *Store) Acquire(_ context.Context, id string) (func(), error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, busy := store.running[id]; busy {
		return nil, session_models.ErrBusy
	}
	store.running[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			store.mu.Lock()
			delete(store.running, id)
			store.mu.Unlock()
		})
	}, nil
}

// EvictIdle skips conversations with a turn in flight.
func (store *Store) EvictIdle(_ context.Context, cutoff time.Time) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	n := 0
	for id, conv := range store.sessions {
		if _, busy := store.running[id]; busy {
			continue
		}
		if conv.UpdatedAt.Before(cutoff) {
			delete(store.sessions, id)
			n++
		}
	}
	return n, nil
}

func (store *Store) Len(_ context.Context) (int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.sessions), nil
}
