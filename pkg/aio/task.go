package aio

import (
	"sync/atomic"
	"time"
)

const (
	TaskCreated int64 = iota
	TaskReady
	TaskRunning
	TaskSuspended
	TaskCompleted
)

// Task is a unit of work pinned to one event loop. Its steps run on the
// loop goroutine only: the entry function first, then one continuation per
// completed operation. Between a submit and its completion the task is
// suspended and occupies no goroutine.
//
// A task never migrates. Foreign goroutines interact with it through Join
// alone.
type Task struct {
	state      atomic.Int64
	loop       *EventLoop
	entry      func(tk *Task)
	resume     func(tk *Task, res Result)
	pendingOp  *Operation
	pendingRes Result
	done       chan struct{}
	err        error
}

func newTask(loop *EventLoop, entry func(tk *Task)) *Task {
	tk := &Task{
		loop:  loop,
		entry: entry,
		done:  make(chan struct{}),
	}
	tk.state.Store(TaskCreated)
	return tk
}

// State reports the task's lifecycle stage.
func (tk *Task) State() int64 {
	return tk.state.Load()
}

// Submit starts op on the task's loop and suspends the task. resume runs
// on the loop goroutine once op completes; the operation and its buffer
// are the task's again inside resume. The returned token addresses op for
// cancellation from any goroutine. Calling Submit outside a task step is a
// contract violation.
func (tk *Task) Submit(op *Operation, resume func(tk *Task, res Result)) CancelToken {
	if !tk.state.CompareAndSwap(TaskRunning, TaskSuspended) {
		panic("aio: task submit outside of a running step")
	}
	if !op.markInflight() {
		tk.failSubmit(op, resume, ErrBusy)
		return CancelToken{}
	}
	op.task = tk
	op.resume = resume
	if _, err := tk.loop.submitLocal(op); err != nil {
		op.markCompleted()
		op.task = nil
		op.resume = nil
		tk.failSubmit(op, resume, err)
		return CancelToken{}
	}
	return CancelToken{event: tk.loop, op: op}
}

// failSubmit reschedules the task so resume sees err as the completion.
func (tk *Task) failSubmit(op *Operation, resume func(tk *Task, res Result), err error) {
	tk.resume = resume
	tk.pendingOp = op
	tk.pendingRes = Result{Err: err}
	tk.state.Store(TaskReady)
	tk.loop.schedule(tk)
}

// Sleep suspends the task until d elapses, then runs resume on the loop
// goroutine.
func (tk *Task) Sleep(d time.Duration, resume func(tk *Task, res Result)) {
	if !tk.state.CompareAndSwap(TaskRunning, TaskSuspended) {
		panic("aio: task sleep outside of a running step")
	}
	tk.resume = resume
	tk.pendingOp = nil
	tk.pendingRes = Result{}
	tk.loop.addSleep(tk, time.Now().Add(d))
}

// Fail records err and completes the task at the end of the current step.
func (tk *Task) Fail(err error) {
	tk.err = err
}

// Join blocks until the task completes and returns its recorded error.
// Safe from any goroutine except the task's own steps.
func (tk *Task) Join() error {
	<-tk.done
	return tk.err
}

// resolve parks the completion and makes the task runnable again. Runs on
// the loop goroutine.
func (tk *Task) resolve(op *Operation, res Result) {
	resume := op.resume
	op.task = nil
	op.resume = nil
	tk.resume = resume
	tk.pendingOp = op
	tk.pendingRes = res
	if !tk.state.CompareAndSwap(TaskSuspended, TaskReady) {
		return
	}
	tk.loop.schedule(tk)
}

// wake makes a sleeping task runnable. Runs on the loop goroutine.
func (tk *Task) wake() {
	if !tk.state.CompareAndSwap(TaskSuspended, TaskReady) {
		return
	}
	tk.loop.schedule(tk)
}

// run executes one step. Runs on the loop goroutine.
func (tk *Task) run() {
	if !tk.state.CompareAndSwap(TaskReady, TaskRunning) &&
		!tk.state.CompareAndSwap(TaskCreated, TaskRunning) {
		return
	}
	if tk.resume != nil {
		resume := tk.resume
		res := tk.pendingRes
		tk.resume = nil
		tk.pendingOp = nil
		tk.pendingRes = Result{}
		resume(tk, res)
	} else if tk.entry != nil {
		entry := tk.entry
		tk.entry = nil
		entry(tk)
	}
	// a step that did not suspend again ends the task
	if tk.state.CompareAndSwap(TaskRunning, TaskCompleted) {
		close(tk.done)
	}
}
