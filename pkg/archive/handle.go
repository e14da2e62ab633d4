package archive

import "sync/atomic"

// Handle shares one Archive between the host and any number of in-flight
// tasks. The archive is closed when the last reference is released.
//
// The count is the only mutable state; the archive itself is read-only, so
// no lock is needed to query it.
type Handle struct {
	archive   *Archive
	refs      atomic.Int64
	onRelease func(*Archive)
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithReleaseHook registers fn to run once, right after the archive is closed.
func WithReleaseHook(fn func(*Archive)) HandleOption {
	return func(h *Handle) { h.onRelease = fn }
}

// NewHandle wraps a with a single reference owned by the caller.
func NewHandle(a *Archive, opts ...HandleOption) *Handle {
	h := &Handle{archive: a}
	for _, opt := range opts {
		opt(h)
	}
	h.refs.Store(1)
	return h
}

// Retain adds a reference. It fails with ErrReleased once the count has
// reached zero; a released handle is never revived.
func (h *Handle) Retain() (*Handle, error) {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return nil, ErrReleased
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h, nil
		}
	}
}

// Release drops a reference. Extra releases past zero are ignored.
func (h *Handle) Release() {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return
		}
		if !h.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n == 1 {
			h.archive.Close()
			if h.onRelease != nil {
				h.onRelease(h.archive)
			}
		}
		return
	}
}

// Refs returns the current reference count.
func (h *Handle) Refs() int64 { return h.refs.Load() }

// Released reports whether the archive has been closed.
func (h *Handle) Released() bool { return h.refs.Load() <= 0 }

// Archive returns the shared archive. Callers must hold a reference.
func (h *Handle) Archive() *Archive { return h.archive }
