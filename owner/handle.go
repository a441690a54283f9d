// Package owner provides Handle, a pointer wrapper that is the single owner of the value it points
// to and disposes of it with a release action when it is closed or reset.
//
// Ownership is never duplicated: handles are always used through a pointer, Handle carries a
// marker that `go vet` reports when a Handle value is copied, and ownership moves between handles
// only through Take, MoveFrom and Swap.
package owner

import (
	"context"
	"io"

	"golang.org/x/exp/slog"
)

// noCopy may be embedded into structs which must not be copied after first use. See
// https://golang.org/issues/8005#issuecomment-190753527
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ReleaseFunc disposes of a pointee that a Handle owns. It is never called with nil.
type ReleaseFunc[T any] func(pointee *T)

// DefaultRelease is the release action used when none is provided. If *T implements io.Closer, the
// pointee is closed and any error is logged to slog.Default(). Otherwise the handle simply drops its
// reference and leaves the pointee to the garbage collector.
func DefaultRelease[T any](pointee *T) {
	closer, ok := any(pointee).(io.Closer)
	if !ok {
		return
	}

	err := closer.Close()
	if err != nil {
		slog.Default().LogAttrs(context.Background(), slog.LevelError, "failed to close owned value",
			slog.Any("error", err))
	}
}

// Handle owns a single *T. The zero value is a nil handle that uses DefaultRelease.
//
// Dereferencing a nil handle with Value is a precondition violation. Handle is not safe for concurrent
// use.
type Handle[T any] struct {
	noCopy noCopy

	pointee *T
	release ReleaseFunc[T]
}

// New creates a handle that owns pointee and disposes of it with DefaultRelease
func New[T any](pointee *T) *Handle[T] {
	return &Handle[T]{pointee: pointee}
}

// NewWithRelease creates a handle that owns pointee and disposes of it with release. A nil release
// action means DefaultRelease.
func NewWithRelease[T any](pointee *T, release ReleaseFunc[T]) *Handle[T] {
	return &Handle[T]{pointee: pointee, release: release}
}

// ReleaseAction returns the action used to dispose of the pointee
func (h *Handle[T]) ReleaseAction() ReleaseFunc[T] {
	if h.release == nil {
		return DefaultRelease[T]
	}
	return h.release
}

// Get returns the owned pointer without giving up ownership
func (h *Handle[T]) Get() *T { return h.pointee }

// Value returns a copy of the owned value. The handle must not be nil.
func (h *Handle[T]) Value() T { return *h.pointee }

// Valid reports whether the handle owns a non-nil pointer
func (h *Handle[T]) Valid() bool { return h.pointee != nil }

// Release gives up ownership of the pointee without disposing of it and returns it. The handle is nil
// afterwards and the caller is responsible for the pointee.
func (h *Handle[T]) Release() *T {
	pointee := h.pointee
	h.pointee = nil
	return pointee
}

// Reset disposes of the current pointee, if any, and takes ownership of pointee, which may be nil
func (h *Handle[T]) Reset(pointee *T) {
	old := h.pointee
	h.pointee = pointee

	if old != nil {
		h.ReleaseAction()(old)
	}
}

// Take moves ownership into a new handle, which also receives this handle's release action. This
// handle is nil afterwards.
func (h *Handle[T]) Take() *Handle[T] {
	return &Handle[T]{pointee: h.Release(), release: h.release}
}

// MoveFrom disposes of the current pointee and takes ownership of other's pointee and release action.
// other is nil afterwards.
func (h *Handle[T]) MoveFrom(other *Handle[T]) {
	if h == other {
		return
	}

	h.Reset(nil)
	h.pointee = other.Release()
	h.release = other.release
}

// Swap exchanges the pointees and release actions of two handles
func (h *Handle[T]) Swap(other *Handle[T]) {
	h.pointee, other.pointee = other.pointee, h.pointee
	h.release, other.release = other.release, h.release
}

// Close disposes of the pointee, if any, leaving the handle nil. It always returns nil, so that a
// Handle may be used wherever an io.Closer is expected.
func (h *Handle[T]) Close() error {
	h.Reset(nil)
	return nil
}
