// Package store persists the serialized drawing of a note.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("store: note not found")
	ErrInvalidID = errors.New("store: invalid note id")
)

// DefaultFolder and DefaultTitle are applied to notes created implicitly by
// the first save.
const (
	DefaultFolder = "General"
	DefaultTitle  = "Untitled Drawing"
)

// Store loads and saves the serialized image of a note. Load returns an
// empty string for a note that exists but has never been drawn on.
type Store interface {
	Load(ctx context.Context, id string) (string, error)
	Save(ctx context.Context, id, image string) error
}

// Note is a note record. Only Content is written by the drawing surface.
type Note struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Folder     string     `json:"folder"`
	IsFavorite bool       `json:"is_favorite"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func newNote(id, title, folder string, now time.Time) Note {
	if title == "" {
		title = DefaultTitle
	}
	if folder == "" {
		folder = DefaultFolder
	}
	return Note{ID: id, Title: title, Folder: folder, CreatedAt: now}
}

func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
