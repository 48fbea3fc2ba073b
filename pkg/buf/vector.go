package buf

// Vector is an ordered list of buffers submitted as one vectored
// operation. Ownership of every member moves with the vector.
type Vector struct {
	bufs []IoBuf
}

func NewVector(bufs ...IoBuf) *Vector {
	return &Vector{bufs: bufs}
}

func (v *Vector) Append(b IoBuf) {
	v.bufs = append(v.bufs, b)
}

func (v *Vector) Buffers() []IoBuf {
	return v.bufs
}

// Cap returns the summed capacity of all members.
func (v *Vector) Cap() (n int) {
	for _, b := range v.bufs {
		n += b.Cap()
	}
	return
}

// Len returns the summed initialized length of all members.
func (v *Vector) Len() (n int) {
	for _, b := range v.bufs {
		n += b.Len()
	}
	return
}

// SetLen distributes n produced bytes over the members in order, marking
// each initialized up to its capacity until n is consumed. Panics when n
// exceeds the summed capacity.
func (v *Vector) SetLen(n int) {
	checkSetLen(n, v.Cap())
	for _, b := range v.bufs {
		if n <= 0 {
			b.SetLen(0)
			continue
		}
		c := b.Cap()
		if n < c {
			b.SetLen(n)
			n = 0
			continue
		}
		b.SetLen(c)
		n -= c
	}
}
