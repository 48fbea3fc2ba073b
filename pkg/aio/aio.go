// Package aio is a completion-based asynchronous I/O engine. Callers build
// an Operation around an owned buffer, submit it to an event loop's driver
// and await the buffer plus a result once the operating system reports the
// operation finished.
//
// One driver backend is active per event loop: an io_uring ring on linux
// kernels that carry it, a completion port on windows, and a readiness
// poller that emulates completion everywhere else (and for ring verbs the
// running kernel lacks). All backends produce the same Entry shape, so the
// event loop above them is backend-agnostic.
package aio
