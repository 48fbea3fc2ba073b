// Package coio dispatches completion-based asynchronous I/O onto a
// process-wide group of event loops. Build an operation, hand it to
// Dispatch and resolve the returned future; or spawn a task and drive the
// loop directly through its continuations.
//
// The group is created lazily on first use. Preset customizes it, Pin and
// Unpin manage its lifetime for long-lived holders, Close releases the
// reference the process itself holds.
package coio

import (
	"sync"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/brickingsoft/coio/pkg/reference"
)

var (
	groupOptions []aio.Option
	groupPointer *reference.Pointer[*aio.EventLoopGroup]
	groupOnce    sync.Once
	groupErr     error
)

// Preset
// stores the options the process-wide event loop group starts with.
//
// Must be called before the first Pin, Spawn or Dispatch, it has no effect
// afterwards.
func Preset(options ...aio.Option) {
	groupOptions = options
}

func group() (p *reference.Pointer[*aio.EventLoopGroup], err error) {
	groupOnce.Do(func() {
		g, newErr := aio.NewEventLoopGroup(groupOptions...)
		if newErr != nil {
			groupErr = newErr
			return
		}
		p := reference.Make(g)
		// held by the process until Close
		p.Pin()
		groupPointer = p
	})
	p = groupPointer
	err = groupErr
	return
}

// Pin
// takes a reference on the process-wide event loop group, creating it on
// first use. Pair with Unpin.
func Pin() (*aio.EventLoopGroup, error) {
	p, err := group()
	if err != nil {
		return nil, err
	}
	return p.Pin(), nil
}

// Unpin
// drops one reference. The group shuts down when the last reference,
// including the one the process holds until Close, is gone.
func Unpin() error {
	if groupPointer == nil {
		return nil
	}
	return groupPointer.Unpin()
}

// Close
// releases the reference the process holds on the group.
func Close() error {
	if groupPointer == nil {
		return nil
	}
	return groupPointer.Unpin()
}

// Spawn
// places a task on the process-wide group. The task is pinned to one loop
// for its whole life; Join it from any goroutine.
func Spawn(fn func(tk *aio.Task)) (*aio.Task, error) {
	p, err := group()
	if err != nil {
		return nil, err
	}
	return p.Value().Spawn(fn)
}
