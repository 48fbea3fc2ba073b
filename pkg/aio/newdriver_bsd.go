//go:build darwin || freebsd

package aio

func newDriver(options Options) (Driver, error) {
	switch options.Backend {
	case BackendAuto, BackendPoll:
		return newPollDriver(options)
	default:
		return nil, ErrUnsupported
	}
}
