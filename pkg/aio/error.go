package aio

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrCanceled tags a completion that arrived after a cancel request.
	ErrCanceled = errors.Define("operation canceled")
	// ErrRegistryFull reports slot table exhaustion. Recoverable: back off
	// and resubmit.
	ErrRegistryFull = errors.Define("operation registry is full")
	// ErrUnsupported reports an operation kind with no native or emulated
	// implementation on the active backend.
	ErrUnsupported = errors.Define("operation kind is not supported")
	// ErrClosed reports a submission against a closed event loop.
	ErrClosed = errors.Define("event loop is closed")
	// ErrBusy reports a full submission queue. Recoverable.
	ErrBusy = errors.Define("submission queue is full")
)

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsRegistryFull(err error) bool {
	return errors.Is(err, ErrRegistryFull)
}

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "aio"
)

func newOpErr(op string, cause error) error {
	return errors.New(
		op+" failed",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithWrap(cause),
	)
}
