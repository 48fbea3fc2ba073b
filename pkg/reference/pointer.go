// Package reference holds a pinned, process-wide instance of a closable
// value. The last unpin closes the value.
package reference

import (
	"io"
	"sync/atomic"
)

func Make[E io.Closer](value E) *Pointer[E] {
	return &Pointer[E]{value: value}
}

type Pointer[E io.Closer] struct {
	value E
	pins  atomic.Int64
}

// Pin takes a reference and returns the value.
func (p *Pointer[E]) Pin() E {
	p.pins.Add(1)
	return p.value
}

// Value returns the value without taking a reference.
func (p *Pointer[E]) Value() E {
	return p.value
}

func (p *Pointer[E]) Pins() int64 {
	return p.pins.Load()
}

// Unpin drops one reference; the value is closed when the count reaches
// zero. Unpinning an unpinned pointer closes immediately.
func (p *Pointer[E]) Unpin() error {
	if n := p.pins.Add(-1); n <= 0 {
		return p.value.Close()
	}
	return nil
}
