//go:build windows

package aio

func newDriver(options Options) (Driver, error) {
	switch options.Backend {
	case BackendAuto, BackendIOCP:
		return newIOCPDriver(options)
	default:
		return nil, ErrUnsupported
	}
}
