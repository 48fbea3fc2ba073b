package aio

import (
	"runtime"
)

// Backend selects the completion backend of an event loop.
type Backend uint8

const (
	// BackendAuto picks the strongest backend the platform and kernel
	// carry: ring on capable linux kernels, iocp on windows, poll
	// elsewhere.
	BackendAuto Backend = iota
	BackendRing
	BackendIOCP
	BackendPoll
)

func (b Backend) String() string {
	switch b {
	case BackendRing:
		return "ring"
	case BackendIOCP:
		return "iocp"
	case BackendPoll:
		return "poll"
	default:
		return "auto"
	}
}

type Options struct {
	EventLoopCount      uint32
	Backend             Backend
	Entries             uint32
	RegistryCapacity    int
	CPUAffinityEnabled  bool
	LeastLoadDispatch   bool
	RegisteredBuffers   uint32
	RegisteredBufferCap uint32
	WaitTimeoutCurve    Curve
}

type Option func(*Options)

// WithEventLoopCount
// setup event loop count, default is runtime.NumCPU()
func WithEventLoopCount(count uint32) Option {
	return func(o *Options) {
		o.EventLoopCount = count
	}
}

// WithBackend
// setup the completion backend instead of auto-detecting one
func WithBackend(backend Backend) Option {
	return func(o *Options) {
		o.Backend = backend
	}
}

// WithEntries
// setup ring entries
func WithEntries(entries uint32) Option {
	return func(o *Options) {
		o.Entries = entries
	}
}

// WithRegistryCapacity
// setup slot table size per event loop
func WithRegistryCapacity(capacity int) Option {
	return func(o *Options) {
		o.RegistryCapacity = capacity
	}
}

// WithCPUAffinity
// setup pinning each event loop thread to one cpu
func WithCPUAffinity(enabled bool) Option {
	return func(o *Options) {
		o.CPUAffinityEnabled = enabled
	}
}

// WithLeastLoadDispatch
// setup dispatch to pick the loop with the fewest in-flight operations
// insteadof round robin
func WithLeastLoadDispatch(enabled bool) Option {
	return func(o *Options) {
		o.LeastLoadDispatch = enabled
	}
}

// WithRegisteredBuffers
// setup count fixed buffers of cap bytes registered with the ring
func WithRegisteredBuffers(count uint32, cap uint32) Option {
	return func(o *Options) {
		o.RegisteredBuffers = count
		o.RegisteredBufferCap = cap
	}
}

// WithWaitTimeoutCurve
// setup wait timeout curve
func WithWaitTimeoutCurve(curve Curve) Option {
	return func(o *Options) {
		o.WaitTimeoutCurve = curve
	}
}

func (o *Options) normalize() {
	if o.EventLoopCount == 0 {
		o.EventLoopCount = uint32(runtime.NumCPU())
	}
	if o.Entries == 0 {
		o.Entries = 1024
	}
	if o.RegistryCapacity < 1 {
		o.RegistryCapacity = defaultRegistryCapacity
	}
	if len(o.WaitTimeoutCurve) == 0 {
		o.WaitTimeoutCurve = defaultCurve
	}
}
