package aio

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/coio/pkg/buf"
	"github.com/brickingsoft/coio/pkg/process"
	"github.com/brickingsoft/coio/pkg/queue"
	equeue "github.com/eapache/queue"
)

type inbound struct {
	op     *Operation
	tk     *Task
	cancel *Operation
}

func newEventLoop(id int, options Options) (v <-chan *EventLoop) {
	ch := make(chan *EventLoop)
	go func(id int, options Options, ch chan<- *EventLoop) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		process.MaskInterruptSignals()
		if options.CPUAffinityEnabled {
			_ = process.SetCPUAffinity(id)
		}

		driver, driverErr := newDriver(options)
		if driverErr != nil {
			ch <- &EventLoop{id: id, err: driverErr}
			close(ch)
			return
		}

		event := &EventLoop{
			id:      id,
			driver:  driver,
			wg:      new(sync.WaitGroup),
			inbound: queue.New[inbound](),
			ready:   equeue.New(),
			timers:  &timerHeap{},
			sleeps:  &sleepHeap{},
			tran:    NewCurveTransmission(options.WaitTimeoutCurve),
		}
		event.running.Store(true)
		event.wg.Add(1)
		ch <- event
		close(ch)
		event.process()
	}(id, options, ch)
	v = ch
	return
}

// EventLoop owns one driver and runs it from one locked OS thread. All
// driver calls happen on that thread; foreign goroutines reach the loop
// through the inbound queue plus a driver wake.
type EventLoop struct {
	id       int
	driver   Driver
	wg       *sync.WaitGroup
	running  atomic.Bool
	inflight atomic.Int64
	inbound  *queue.Queue[inbound]
	ready    *equeue.Queue
	timers   *timerHeap
	sleeps   *sleepHeap
	tran     Transmission
	err      error
}

func (event *EventLoop) Id() int {
	return event.id
}

func (event *EventLoop) Valid() error {
	return event.err
}

// Inflight reports operations submitted and not yet completed, plus
// runnable tasks. Dispatchers use it as the load signal.
func (event *EventLoop) Inflight() int64 {
	return event.inflight.Load()
}

// Backend reports the active driver's name.
func (event *EventLoop) Backend() string {
	return event.driver.Name()
}

// Supports classifies kind on the loop's driver.
func (event *EventLoop) Supports(kind OpKind) Support {
	return event.driver.Supports(kind)
}

// AcquireFixed borrows a registered buffer from the driver's table. Nil
// when the pool is exhausted or the backend has no buffer registration.
func (event *EventLoop) AcquireFixed() *buf.Fixed {
	if alloc, ok := event.driver.(fixedAllocator); ok {
		return alloc.AcquireFixed()
	}
	return nil
}

// ReleaseFixed returns a registered buffer to the driver's table.
func (event *EventLoop) ReleaseFixed(f *buf.Fixed) {
	if alloc, ok := event.driver.(fixedAllocator); ok {
		alloc.ReleaseFixed(f)
	}
}

// Submit hands op to the loop from any goroutine. Ownership of op and its
// buffer transfers until the completion is delivered through Await or the
// task continuation. The returned token addresses op for cancellation
// while it is in flight.
func (event *EventLoop) Submit(op *Operation) (CancelToken, error) {
	if !event.running.Load() {
		return CancelToken{}, ErrClosed
	}
	if !op.markInflight() {
		return CancelToken{}, ErrBusy
	}
	event.inflight.Add(1)
	event.inbound.Enqueue(&inbound{op: op})
	return CancelToken{event: event, op: op}, event.driver.Wake()
}

// CancelToken addresses one submitted operation for cancellation. The zero
// token cancels nothing. A token dies with its operation: releasing the
// operation back to the pool invalidates every token minted for it.
type CancelToken struct {
	event *EventLoop
	op    *Operation
}

// Cancel requests cancellation of the token's operation, best effort and
// safe from any goroutine. The completion still arrives through the normal
// path, tagged ErrCanceled when the cancel won the race.
func (t CancelToken) Cancel() error {
	if t.event == nil {
		return nil
	}
	if !t.event.running.Load() {
		return ErrClosed
	}
	t.event.inbound.Enqueue(&inbound{cancel: t.op})
	return t.event.driver.Wake()
}

// CancelTokenFor builds a token addressing op on this loop. Useful when
// the submission itself happens later on the loop, from a spawned task
// step: a cancel that lands first is remembered and applied right after
// the slot insert.
func (event *EventLoop) CancelTokenFor(op *Operation) CancelToken {
	return CancelToken{event: event, op: op}
}

// Spawn schedules a task on the loop from any goroutine.
func (event *EventLoop) Spawn(fn func(tk *Task)) (*Task, error) {
	if !event.running.Load() {
		return nil, ErrClosed
	}
	tk := newTask(event, fn)
	event.inflight.Add(1)
	event.inbound.Enqueue(&inbound{tk: tk})
	if err := event.driver.Wake(); err != nil {
		return nil, err
	}
	return tk, nil
}

// Close stops the loop. In-flight operations complete with ErrClosed,
// runnable tasks get a final step, then the driver is torn down.
func (event *EventLoop) Close() error {
	if !event.running.CompareAndSwap(true, false) {
		return nil
	}
	_ = event.driver.Wake()
	event.wg.Wait()
	return event.err
}

// submitLocal is the loop goroutine submission path: slot insert, driver
// start, deadline arming.
func (event *EventLoop) submitLocal(op *Operation) (key Key, err error) {
	key, err = event.driver.Submit(op)
	if err != nil {
		return
	}
	op.key = key
	if op.flags&opCancelRequested != 0 {
		_ = event.driver.Cancel(key)
	}
	if !op.deadline.IsZero() {
		event.timers.add(op.deadline, key)
	}
	return
}

// cancelLocal routes a token's request to the driver. Runs on the loop
// goroutine. A cancel that lands before the submission is remembered on
// the operation and applied by submitLocal.
func (event *EventLoop) cancelLocal(op *Operation) {
	if op.status.Load() == opStatusCompleted {
		return
	}
	if op.key != 0 && event.driver.Registry().Get(op.key) == op {
		_ = event.driver.Cancel(op.key)
		return
	}
	op.flags |= opCancelRequested
}

// schedule puts tk on the ready ring. Loop goroutine only.
func (event *EventLoop) schedule(tk *Task) {
	event.ready.Add(tk)
}

// addSleep parks tk until when. Loop goroutine only.
func (event *EventLoop) addSleep(tk *Task, when time.Time) {
	event.sleeps.add(when, tk)
}

func (event *EventLoop) process() {
	defer event.wg.Done()

	entries := make([]Entry, 256)
	waitN, waitTimeout := event.tran.Match(1)

	for event.running.Load() {
		event.drainInbound()
		event.runReady()

		timeout := waitTimeout
		now := time.Now()
		if d := event.timers.next(now); d >= 0 && d < timeout {
			timeout = d
		}
		if d := event.sleeps.next(now); d >= 0 && d < timeout {
			timeout = d
		}
		if event.ready.Length() > 0 || event.inbound.Length() > 0 {
			timeout = 0
		}

		n, _ := event.driver.Wait(entries, timeout)
		now = time.Now()
		for i := 0; i < n; i++ {
			event.completeEntry(entries[i])
		}
		event.fireTimers(now)
		event.fireSleeps(now)

		if uint32(n) >= waitN {
			waitN, waitTimeout = event.tran.Up()
		} else if n == 0 {
			waitN, waitTimeout = event.tran.Down()
		}
	}

	event.shutdown()
}

func (event *EventLoop) drainInbound() {
	for {
		msg := event.inbound.Dequeue()
		if msg == nil {
			break
		}
		if msg.op != nil {
			if _, err := event.submitLocal(msg.op); err != nil {
				event.inflight.Add(-1)
				msg.op.failed(err)
			}
			continue
		}
		if msg.tk != nil {
			event.schedule(msg.tk)
			continue
		}
		if msg.cancel != nil {
			event.cancelLocal(msg.cancel)
		}
	}
}

func (event *EventLoop) runReady() {
	// bounded by the current backlog so completions keep flowing while
	// tasks resubmit
	for i, n := 0, event.ready.Length(); i < n; i++ {
		tk := event.ready.Remove().(*Task)
		tk.run()
		if tk.State() == TaskCompleted {
			event.inflight.Add(-1)
		}
	}
}

func (event *EventLoop) completeEntry(entry Entry) {
	op := event.driver.Registry().Retire(entry.Key)
	if !op.deadline.IsZero() {
		event.timers.remove(entry.Key)
	}
	if op.task == nil {
		event.inflight.Add(-1)
	}
	op.complete(Result{N: entry.N, Flags: entry.Flags, Err: entry.Err})
}

func (event *EventLoop) fireTimers(now time.Time) {
	for _, key := range event.timers.expired(now) {
		if event.driver.Registry().Get(key) != nil {
			_ = event.driver.Cancel(key)
		}
	}
}

func (event *EventLoop) fireSleeps(now time.Time) {
	for _, tk := range event.sleeps.expired(now) {
		tk.wake()
	}
}

func (event *EventLoop) shutdown() {
	// refuse what arrived after the stop flag flipped
	for {
		msg := event.inbound.Dequeue()
		if msg == nil {
			break
		}
		if msg.op != nil {
			event.inflight.Add(-1)
			msg.op.failed(ErrClosed)
		}
		if msg.tk != nil {
			msg.tk.err = ErrClosed
			msg.tk.state.Store(TaskCompleted)
			close(msg.tk.done)
		}
	}
	// give runnable tasks a final step, then close the driver: it fails
	// whatever is still in its slot table
	event.runReady()
	event.err = event.driver.Close()
}

// sleepHeap orders sleeping tasks by wake time. Loop goroutine only.
type sleepHeap struct {
	items []sleepItem
}

type sleepItem struct {
	when time.Time
	tk   *Task
}

func (h *sleepHeap) add(when time.Time, tk *Task) {
	h.items = append(h.items, sleepItem{when: when, tk: tk})
	for i := len(h.items) - 1; i > 0; {
		parent := (i - 1) / 2
		if !h.items[i].when.Before(h.items[parent].when) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *sleepHeap) next(now time.Time) time.Duration {
	if len(h.items) == 0 {
		return -1
	}
	d := h.items[0].when.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (h *sleepHeap) expired(now time.Time) (tasks []*Task) {
	for len(h.items) > 0 && !h.items[0].when.After(now) {
		tasks = append(tasks, h.items[0].tk)
		last := len(h.items) - 1
		h.items[0] = h.items[last]
		h.items = h.items[:last]
		h.siftDown(0)
	}
	return
}

func (h *sleepHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		least := left
		if right := left + 1; right < n && h.items[right].when.Before(h.items[left].when) {
			least = right
		}
		if !h.items[least].when.Before(h.items[i].when) {
			return
		}
		h.items[i], h.items[least] = h.items[least], h.items[i]
		i = least
	}
}
