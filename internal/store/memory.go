package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps notes in a map. It is used for ephemeral sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[string]Note
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[string]Note)}
}

func (m *MemoryStore) Create(_ context.Context, title, folder string) (Note, error) {
	n := newNote(uuid.NewString(), title, folder, time.Now())
	m.mu.Lock()
	m.notes[n.ID] = n
	m.mu.Unlock()
	return n, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (string, error) {
	n, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return n.Content, nil
}

// Save stores the image, creating the note on first save.
func (m *MemoryStore) Save(_ context.Context, id, image string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		n = newNote(id, "", "", now)
	}
	n.Content = image
	n.UpdatedAt = &now
	m.notes[id] = n
	return nil
}
