package aio

import (
	"time"

	"github.com/brickingsoft/coio/pkg/buf"
)

// Support classifies how a backend carries an operation kind.
type Support uint8

const (
	// SupportNone marks a kind the backend rejects with ErrUnsupported.
	SupportNone Support = iota
	// SupportNative marks a kind the backend hands to the kernel as-is.
	SupportNative
	// SupportEmulated marks a kind the backend carries through its
	// readiness or synchronous fallback. Same completion shape, different
	// plumbing.
	SupportEmulated
)

// Driver is one completion backend bound to one event loop. All methods
// except Wake must be called from the owning loop goroutine; Wake is the
// one cross-thread entry and interrupts a Wait in progress.
type Driver interface {
	// Name reports the backend, one of "ring", "iocp" and "poll".
	Name() string
	// Registry exposes the driver's slot table.
	Registry() *Registry
	// Submit inserts op and starts it, returning the minted key. The
	// operation and its buffer belong to the driver until an Entry
	// carrying the key is produced by Wait.
	Submit(op *Operation) (Key, error)
	// Cancel requests cancellation of the in-flight target. Best effort:
	// the target still completes exactly once through Wait, with
	// ErrCanceled when the cancel won.
	Cancel(target Key) error
	// Wait blocks until at least one completion is available or timeout
	// elapses, fills entries and returns the count. A negative timeout
	// blocks indefinitely. Retiring the keys is the caller's job.
	Wait(entries []Entry, timeout time.Duration) (int, error)
	// Wake interrupts a concurrent Wait. Safe from any goroutine.
	Wake() error
	// Supports classifies kind on this backend instance.
	Supports(kind OpKind) Support
	// Close tears the backend down. Still-inflight operations complete
	// with ErrClosed before Close returns.
	Close() error
}

// fixedAllocator is implemented by backends carrying a registered buffer
// table. Acquire and release are safe from any goroutine.
type fixedAllocator interface {
	AcquireFixed() *buf.Fixed
	ReleaseFixed(f *buf.Fixed)
}
