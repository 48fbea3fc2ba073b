package aio

import (
	"sync/atomic"

	"github.com/brickingsoft/errors"
)

// NewEventLoopGroup starts one event loop per configured slot and returns
// the group fronting them.
func NewEventLoopGroup(options ...Option) (group *EventLoopGroup, err error) {
	opts := Options{}
	for _, opt := range options {
		opt(&opts)
	}
	opts.normalize()

	members := make([]*EventLoop, 0, opts.EventLoopCount)
	for i := uint32(0); i < opts.EventLoopCount; i++ {
		event := <-newEventLoop(int(i), opts)
		if err = event.Valid(); err != nil {
			for _, member := range members {
				_ = member.Close()
			}
			err = errors.New(
				"new event loop group failed",
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithWrap(err),
			)
			return
		}
		members = append(members, event)
	}
	group = &EventLoopGroup{
		members:   members,
		size:      int64(len(members)),
		leastLoad: opts.LeastLoadDispatch,
		idx:       -1,
	}
	return
}

// EventLoopGroup is a fixed set of event loops plus a dispatch policy.
// Next places new work; existing work stays on the loop it was placed on.
type EventLoopGroup struct {
	members   []*EventLoop
	size      int64
	leastLoad bool
	idx       int64
	closed    atomic.Bool
}

// Size reports the member count.
func (group *EventLoopGroup) Size() int {
	return int(group.size)
}

// Member returns the loop at index id.
func (group *EventLoopGroup) Member(id int) *EventLoop {
	return group.members[id]
}

// Next picks the loop for a new piece of work: round robin by default, the
// least loaded member when configured.
func (group *EventLoopGroup) Next() *EventLoop {
	if group.size == 1 {
		return group.members[0]
	}
	if group.leastLoad {
		chosen := group.members[0]
		load := chosen.Inflight()
		for _, member := range group.members[1:] {
			if n := member.Inflight(); n < load {
				chosen = member
				load = n
			}
		}
		return chosen
	}
	idx := atomic.AddInt64(&group.idx, 1) % group.size
	return group.members[idx]
}

// Submit places op on the next loop per the dispatch policy. The returned
// token addresses op for cancellation while it is in flight.
func (group *EventLoopGroup) Submit(op *Operation) (CancelToken, error) {
	if group.closed.Load() {
		return CancelToken{}, ErrClosed
	}
	return group.Next().Submit(op)
}

// Spawn places a task on the next loop per the dispatch policy. The task
// stays pinned there for its whole life.
func (group *EventLoopGroup) Spawn(fn func(tk *Task)) (*Task, error) {
	if group.closed.Load() {
		return nil, ErrClosed
	}
	return group.Next().Spawn(fn)
}

// Close stops every member. The first member error is returned.
func (group *EventLoopGroup) Close() (err error) {
	if !group.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, member := range group.members {
		if closeErr := member.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return
}
