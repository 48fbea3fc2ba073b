package aio

// Key identifies one in-flight operation inside one driver instance. It is
// a back-reference only: it confers no ownership and is dead once the
// operation has been retired. Key values are index+generation encoded, so
// a value never repeats until the generation counter wraps.
type Key uint64

// Reserved keys mark driver-internal completions (wakeups, cancel
// requests issued for deadlines). Entries carrying reserved keys never
// leave the driver.
const (
	keyWake Key = iota
	keyCancel
	keyReservedLast
)

const (
	keyIndexBits = 32
	keyIndexMask = 1<<keyIndexBits - 1
)

func makeKey(index uint32, gen uint32) Key {
	return Key(uint64(gen)<<keyIndexBits | uint64(index))
}

func (key Key) index() uint32 {
	return uint32(uint64(key) & keyIndexMask)
}

func (key Key) generation() uint32 {
	return uint32(uint64(key) >> keyIndexBits)
}

// Entry is one completion record: the key of the finished operation plus
// its outcome. N is a byte count or a handle value depending on the kind.
// Flags carries backend-specific out-of-band metadata (ring CQE flags);
// zero elsewhere.
type Entry struct {
	Key   Key
	N     int
	Flags uint32
	Err   error
}

// Result is what a waiter receives: the outcome of its operation. The
// owned buffer travels back on the Operation itself, always, even when
// Err is set, so callers can inspect or reuse partially filled memory.
type Result struct {
	N     int
	Flags uint32
	Err   error
}
