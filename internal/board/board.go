// Package board is the drawing-surface interaction engine: it turns pointer
// and keyboard input into mutations of the open document's bitmap and
// schedules their persistence.
package board

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"DrawPad/internal/autosave"
	"DrawPad/internal/state"
	"DrawPad/internal/store"
	"DrawPad/internal/surface"
)

var (
	ErrNoDocument = errors.New("board: no open document")
	ErrBusy       = errors.New("board: a gesture is in progress")

	// ErrDiscarded describes local work dropped by Reload.
	ErrDiscarded = errors.New("board: unsaved changes replaced by a newer save")
)

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.log = l
		}
	}
}

// WithSaveDelay sets the autosave settle time.
func WithSaveDelay(d time.Duration) Option {
	return func(b *Board) { b.saveDelay = d }
}

// OnChange is called after every visible change: painted pixels, an opened
// or closed document, or an edit of the text overlay. It is never called
// with the board locked.
func OnChange(fn func()) Option {
	return func(b *Board) { b.onChange = fn }
}

func OnSaved(fn func(autosave.Snapshot)) Option {
	return func(b *Board) { b.onSaved = fn }
}

// OnSaveError receives persistence failures so they can be shown to the
// user. The drawing is kept in memory.
func OnSaveError(fn func(autosave.Snapshot, error)) Option {
	return func(b *Board) { b.onSaveError = fn }
}

// Board owns the surface of the open document and the tool machine acting
// on it. All methods are safe for concurrent use; state changes are
// serialized so only one gesture ever writes to the surface.
type Board struct {
	store       store.Store
	log         *slog.Logger
	autosave    *autosave.Dispatcher
	saveDelay   time.Duration
	onChange    func()
	onSaved     func(autosave.Snapshot)
	onSaveError func(autosave.Snapshot, error)

	// lifecycle serializes Open and Close.
	lifecycle sync.Mutex

	mu      sync.Mutex
	docID   string
	buf     *surface.Buffer
	tools   state.ToolState
	gesture gesture
	rev     state.Revision
}

func New(st store.Store, opts ...Option) *Board {
	b := &Board{
		store:     st,
		log:       slog.Default(),
		saveDelay: autosave.DefaultDelay,
		tools:     state.DefaultToolState(),
	}
	for _, opt := range opts {
		opt(b)
	}
	base := b.log
	b.log = base.With("component", "board")
	b.autosave = autosave.New(st, b.snapshot,
		autosave.WithDelay(b.saveDelay),
		autosave.WithLogger(base),
		autosave.OnSaved(b.onSaved),
		autosave.OnError(b.onSaveError),
	)
	return b
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

// committed records a mutation that must reach persistence.
func (b *Board) committed() {
	b.autosave.NotifyMutation()
}

// DocumentID is the open document, or "" when none is open.
func (b *Board) DocumentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docID
}

func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gesture == nil {
		return Idle
	}
	return b.gesture.State()
}

// Revision counts committed mutations since the document was opened.
func (b *Board) Revision() uint64 {
	return b.rev.Current()
}

// Image returns a copy of the surface, or nil when no document is open.
func (b *Board) Image() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf == nil {
		return nil
	}
	return b.buf.Image()
}

func (b *Board) Tools() state.ToolState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tools
}

// SetTools replaces the tool selection. A gesture in progress keeps the
// settings it started with.
func (b *Board) SetTools(ts state.ToolState) error {
	if err := ts.Validate(); err != nil {
		return err
	}
	ts.Color.A = 255
	b.mu.Lock()
	b.tools = ts
	b.mu.Unlock()
	return nil
}

func (b *Board) SetTool(t state.Tool) error {
	ts := b.Tools()
	ts.Tool = t
	return b.SetTools(ts)
}

func (b *Board) SetColor(c color.RGBA) {
	ts := b.Tools()
	ts.Color = c
	_ = b.SetTools(ts)
}

func (b *Board) SetWidth(w int) error {
	ts := b.Tools()
	ts.Width = w
	return b.SetTools(ts)
}

func (b *Board) SetTextStyle(s state.TextStyle) {
	ts := b.Tools()
	ts.TextStyle = s
	_ = b.SetTools(ts)
}

// Open loads a document into a new surface of the given size. A document
// that is missing from the store opens blank, and so does one whose image
// cannot be decoded. The previous document, if any, is detached first: its
// gesture is finished and unsaved changes are written before the store is
// read, so reopening the same document sees its latest state.
func (b *Board) Open(ctx context.Context, id string, width, height int) error {
	buf, err := surface.New(width, height)
	if err != nil {
		return err
	}

	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if prev, err := b.detach(ctx); err != nil {
		b.log.Warn("previous drawing not saved", "id", prev, "err", err)
	}

	serialized, err := b.store.Load(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		b.changed()
		return fmt.Errorf("board: load %s: %w", id, err)
	}
	if err := buf.LoadImage(serialized); err != nil {
		b.log.Warn("stored drawing unreadable, starting blank", "id", id, "err", err)
	}

	b.mu.Lock()
	b.docID = id
	b.buf = buf
	b.gesture = nil
	b.rev.Reset()
	b.mu.Unlock()

	b.log.Info("document opened", "id", id, "width", width, "height", height)
	b.changed()
	return nil
}

// Close finishes the active gesture, saves any unsaved change and drops
// the surface.
func (b *Board) Close(ctx context.Context) error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	id, err := b.detach(ctx)
	if id != "" {
		b.log.Info("document closed", "id", id)
		b.changed()
	}
	return err
}

// detach ends the open document. Releasing the gesture, taking the final
// snapshot and dropping the surface happen under one lock, so input that
// races with the switch is either in the snapshot or finds no document.
// The snapshot is written after the lock is released.
func (b *Board) detach(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.buf == nil {
		b.mu.Unlock()
		return "", nil
	}
	id := b.docID
	mutated := b.forceReleaseLocked()
	dirty := mutated || b.autosave.Pending()
	b.autosave.Cancel()

	var snap *autosave.Snapshot
	var err error
	if dirty {
		snap, err = b.snapshotLocked()
	}
	b.docID = ""
	b.buf = nil
	b.gesture = nil
	b.mu.Unlock()

	if err != nil {
		return id, fmt.Errorf("board: snapshot %s: %w", id, err)
	}
	if snap == nil {
		return id, nil
	}
	return id, b.autosave.SaveSnapshot(ctx, *snap)
}

// forceReleaseLocked ends the active gesture as if the pointer had been
// released and reports whether the surface changed.
func (b *Board) forceReleaseLocked() bool {
	if b.gesture == nil {
		return false
	}
	mutated := b.gesture.abort(b.buf)
	b.gesture = nil
	if mutated {
		b.rev.Tick()
	}
	return mutated
}

// Resize changes the surface size, keeping content anchored at the top-left.
// An active gesture is released first so dimensions never change mid-stroke.
func (b *Board) Resize(width, height int) error {
	b.mu.Lock()
	if b.buf == nil {
		b.mu.Unlock()
		return nil
	}
	mutated := b.forceReleaseLocked()
	err := b.buf.Resize(width, height)
	b.mu.Unlock()

	if mutated {
		b.committed()
	}
	b.changed()
	return err
}

// Reload repaints the surface from an image that changed outside this
// board. The external image wins: the active gesture and any pending save
// are dropped, and discarded reports whether that threw away local work.
func (b *Board) Reload(serialized string) (discarded bool, err error) {
	b.mu.Lock()
	if b.buf == nil {
		b.mu.Unlock()
		return false, ErrNoDocument
	}
	id := b.docID
	discarded = b.gesture != nil || b.autosave.Pending()
	b.gesture = nil
	b.autosave.Cancel()
	err = b.buf.LoadImage(serialized)
	b.mu.Unlock()

	if err != nil {
		b.log.Warn("reloaded drawing unreadable, showing blank", "id", id, "err", err)
	}
	if discarded {
		b.log.Info("unsaved changes replaced by a newer save", "id", id)
	}
	b.changed()
	return discarded, err
}

// Press starts a gesture for the active tool. Without an open document it
// does nothing. An open text overlay is confirmed first, like an input
// losing focus.
func (b *Board) Press(p state.Point) {
	b.mu.Lock()
	if b.buf == nil {
		b.mu.Unlock()
		return
	}
	mutated := b.forceReleaseLocked()
	if begin := beginners[b.tools.Tool.Kind()]; begin != nil {
		b.gesture = begin(b.tools, p)
	}
	b.mu.Unlock()

	if mutated {
		b.committed()
	}
	b.changed()
}

// Move continues the active gesture.
func (b *Board) Move(p state.Point) {
	b.mu.Lock()
	if b.buf == nil || b.gesture == nil {
		b.mu.Unlock()
		return
	}
	painted := b.gesture.move(b.buf, p)
	b.mu.Unlock()

	if painted {
		b.changed()
	}
}

// Release ends a stroke or commits a shape. The text overlay stays open.
func (b *Board) Release(p state.Point) {
	b.mu.Lock()
	if b.buf == nil || b.gesture == nil || b.gesture.State() == Texting {
		b.mu.Unlock()
		return
	}
	mutated := b.gesture.release(b.buf, p)
	b.gesture = nil
	if mutated {
		b.rev.Tick()
	}
	b.mu.Unlock()

	if mutated {
		b.committed()
	}
	b.changed()
}

// Leave handles the pointer leaving the surface, which counts as a release.
func (b *Board) Leave(p state.Point) {
	b.Release(p)
}

// Clear fills the surface with the background color and saves right away,
// even when it was already blank. It is only allowed while idle.
func (b *Board) Clear(ctx context.Context) error {
	b.mu.Lock()
	if b.buf == nil {
		b.mu.Unlock()
		return nil
	}
	if b.gesture != nil {
		b.mu.Unlock()
		return ErrBusy
	}
	b.buf.Clear()
	b.rev.Tick()
	b.mu.Unlock()

	b.changed()
	return b.autosave.Flush(ctx)
}

// Save persists the current drawing now, replacing any pending autosave.
func (b *Board) Save(ctx context.Context) error {
	if b.DocumentID() == "" {
		return ErrNoDocument
	}
	return b.autosave.Flush(ctx)
}

// Snapshot serializes the current drawing.
func (b *Board) Snapshot() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf == nil {
		return "", ErrNoDocument
	}
	return b.buf.Serialize()
}

func (b *Board) snapshot() (*autosave.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() (*autosave.Snapshot, error) {
	if b.buf == nil {
		return nil, nil
	}
	img, err := b.buf.Serialize()
	if err != nil {
		return nil, err
	}
	return &autosave.Snapshot{ID: b.docID, Image: img, Revision: b.rev.Current()}, nil
}

// Shutdown closes the document and stops autosaving for good.
func (b *Board) Shutdown(ctx context.Context) error {
	err := b.Close(ctx)
	b.autosave.Close()
	return err
}
