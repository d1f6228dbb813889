package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps one JSON document per note in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed. A leading "~" expands to
// the home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if len(dir) > 0 && dir[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("store: resolve home: %w", err)
		}
		dir = filepath.Join(home, dir[1:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Create writes a new empty note with a fresh ID.
func (s *FileStore) Create(_ context.Context, title, folder string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := newNote(uuid.NewString(), title, folder, time.Now())
	if err := s.write(n); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *FileStore) Get(_ context.Context, id string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) Load(ctx context.Context, id string) (string, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return n.Content, nil
}

// Save replaces the note content, creating the note on first save.
func (s *FileStore) Save(ctx context.Context, id, image string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n, err := s.read(id)
	if errors.Is(err, ErrNotFound) {
		n = newNote(id, "", "", now)
	} else if err != nil {
		return err
	}
	n.Content = image
	n.UpdatedAt = &now
	return s.write(n)
}

func (s *FileStore) read(id string) (Note, error) {
	p, err := s.path(id)
	if err != nil {
		return Note{}, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Note{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Note{}, fmt.Errorf("store: read %s: %w", id, err)
	}
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return Note{}, fmt.Errorf("store: parse %s: %w", id, err)
	}
	return n, nil
}

// write replaces the file atomically so a crash never leaves half a note.
func (s *FileStore) write(n Note) error {
	p, err := s.path(n.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", n.ID, err)
	}
	tmp, err := os.CreateTemp(s.dir, n.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: write %s: %w", n.ID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", n.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %s: %w", n.ID, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("store: write %s: %w", n.ID, err)
	}
	return nil
}
