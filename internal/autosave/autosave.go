// Package autosave debounces persistence of a drawing: rapid mutations are
// coalesced and only the state at the end of the quiet period is saved.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay is the settle time between the last mutation and the save.
const DefaultDelay = 500 * time.Millisecond

// Saver is the persistence collaborator.
type Saver interface {
	Save(ctx context.Context, id, image string) error
}

// Snapshot is the serialized state of one document.
type Snapshot struct {
	ID       string
	Image    string
	Revision uint64
}

// SnapshotFunc captures the current state. A nil snapshot means there is
// nothing to persist.
type SnapshotFunc func() (*Snapshot, error)

type Option func(*Dispatcher)

func WithDelay(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.delay = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// OnSaved is called after every successful save.
func OnSaved(fn func(Snapshot)) Option {
	return func(d *Dispatcher) { d.onSaved = fn }
}

// OnError is called when a save fails. There is no retry.
func OnError(fn func(Snapshot, error)) Option {
	return func(d *Dispatcher) { d.onError = fn }
}

// Dispatcher holds at most one pending save.
type Dispatcher struct {
	saver    Saver
	snapshot SnapshotFunc
	delay    time.Duration
	log      *slog.Logger
	onSaved  func(Snapshot)
	onError  func(Snapshot, error)

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64 // bumped on every schedule change; stale timers compare against it
	closed bool

	saveMu sync.Mutex
}

func New(saver Saver, snapshot SnapshotFunc, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		saver:    saver,
		snapshot: snapshot,
		delay:    DefaultDelay,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "autosave")
	return d
}

func (d *Dispatcher) Delay() time.Duration {
	return d.delay
}

// NotifyMutation (re)starts the settle timer, replacing any pending save.
func (d *Dispatcher) NotifyMutation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.stopLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a save is scheduled.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush cancels the pending save, if any, and saves the current state now.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.Cancel()
	return d.persist(ctx)
}

// Cancel drops the pending save without persisting.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Close cancels the pending save and ignores later notifications.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.closed = true
}

func (d *Dispatcher) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Dispatcher) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	// Failures are already logged and reported through OnError.
	_ = d.persist(context.Background())
}

func (d *Dispatcher) persist(ctx context.Context) error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	snap, err := d.snapshot()
	if err != nil {
		d.log.Error("cannot serialize drawing", "err", err)
		d.report(Snapshot{}, err)
		return fmt.Errorf("autosave: snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	return d.saveLocked(ctx, *snap)
}

// SaveSnapshot cancels the pending save and persists snap instead of taking
// a fresh snapshot. It is used when the caller has already detached the
// drawing the snapshot came from.
func (d *Dispatcher) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	d.Cancel()
	d.saveMu.Lock()
	defer d.saveMu.Unlock()
	return d.saveLocked(ctx, snap)
}

func (d *Dispatcher) saveLocked(ctx context.Context, snap Snapshot) error {
	if err := d.saver.Save(ctx, snap.ID, snap.Image); err != nil {
		d.log.Warn("save failed", "id", snap.ID, "revision", snap.Revision, "err", err)
		d.report(snap, err)
		return fmt.Errorf("autosave: save %s: %w", snap.ID, err)
	}
	d.log.Debug("saved", "id", snap.ID, "revision", snap.Revision, "bytes", len(snap.Image))
	if d.onSaved != nil {
		d.onSaved(snap)
	}
	return nil
}

func (d *Dispatcher) report(snap Snapshot, err error) {
	if d.onError != nil {
		d.onError(snap, err)
	}
}
