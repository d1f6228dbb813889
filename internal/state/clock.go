package state

import "sync/atomic"

// Revision is a logical clock counting committed mutations of one document.
// Every snapshot handed to persistence carries the revision it was taken at.
type Revision struct {
	n atomic.Uint64
}

// Tick records a mutation and returns the new revision.
func (r *Revision) Tick() uint64 {
	return r.n.Add(1)
}

func (r *Revision) Current() uint64 {
	return r.n.Load()
}

// Reset starts counting again, used when another document is opened.
func (r *Revision) Reset() {
	r.n.Store(0)
}
