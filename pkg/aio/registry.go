package aio

import (
	"fmt"
)

const defaultRegistryCapacity = 1024

type slot struct {
	op    *Operation
	gen   uint32
	inUse bool
	sys   sysSlot
}

// Registry is the slot table holding every in-flight operation of one
// driver. Insert moves an operation in and mints its Key, Retire moves it
// out and kills the key. Slots live at stable heap addresses for the whole
// registry lifetime, so backends may hand slot memory to the kernel.
//
// The registry is owned by a single event loop goroutine and is not safe
// for concurrent use.
type Registry struct {
	slots    []*slot
	free     []uint32
	inflight int
	gen      uint32
}

func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = defaultRegistryCapacity
	}
	r := &Registry{
		slots: make([]*slot, capacity),
		free:  make([]uint32, 0, capacity),
		gen:   1,
	}
	for i := capacity - 1; i >= 0; i-- {
		r.slots[i] = &slot{}
		r.free = append(r.free, uint32(i))
	}
	return r
}

// Insert stores op and returns a fresh key. ErrRegistryFull when no slot is
// free; the caller may retry after completions drain.
func (r *Registry) Insert(op *Operation) (key Key, err error) {
	if len(r.free) == 0 {
		err = ErrRegistryFull
		return
	}
	index := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]
	s := r.slots[index]
	s.op = op
	s.gen = r.nextGen()
	s.inUse = true
	r.inflight++
	key = makeKey(index, s.gen)
	return
}

// Get resolves key without retiring it. Nil when the key is stale or the
// slot was already retired.
func (r *Registry) Get(key Key) *Operation {
	s := r.lookup(key)
	if s == nil {
		return nil
	}
	return s.op
}

// Retire removes the operation key refers to and returns it. The key is
// dead afterwards. A stale or doubly retired key is a protocol violation
// and panics.
func (r *Registry) Retire(key Key) *Operation {
	s := r.lookup(key)
	if s == nil {
		panic(fmt.Sprintf("aio: retire of dead key %x", uint64(key)))
	}
	op := s.op
	s.op = nil
	s.inUse = false
	r.inflight--
	r.free = append(r.free, key.index())
	return op
}

// Inflight reports the number of occupied slots.
func (r *Registry) Inflight() int {
	return r.inflight
}

// Capacity reports the slot table size.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Range visits every occupied slot. Used at shutdown to fail what is still
// in flight. fn must not insert or retire.
func (r *Registry) Range(fn func(key Key, op *Operation)) {
	for i, s := range r.slots {
		if s.inUse {
			fn(makeKey(uint32(i), s.gen), s.op)
		}
	}
}

func (r *Registry) lookup(key Key) *slot {
	index := key.index()
	if int(index) >= len(r.slots) {
		return nil
	}
	s := r.slots[index]
	if !s.inUse || s.gen != key.generation() {
		return nil
	}
	return s
}

// nextGen never returns zero: reserved keys occupy generation zero, so a
// minted key can never collide with them.
func (r *Registry) nextGen() uint32 {
	gen := r.gen
	r.gen++
	if r.gen == 0 {
		r.gen = 1
	}
	return gen
}
