package aio_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/stretchr/testify/require"
)

func TestCurveTransmission(t *testing.T) {
	tran := aio.NewCurveTransmission(aio.Curve{
		{1, 500 * time.Microsecond},
		{8, 2 * time.Millisecond},
		{16, 10 * time.Millisecond},
	})

	n, timeout := tran.Match(1)
	require.Equal(t, uint32(1), n)
	require.Equal(t, 500*time.Microsecond, timeout)

	n, timeout = tran.Up()
	require.Equal(t, uint32(8), n)
	require.Equal(t, 2*time.Millisecond, timeout)

	n, _ = tran.Up()
	require.Equal(t, uint32(16), n)

	// saturated at the tail
	n, _ = tran.Up()
	require.Equal(t, uint32(16), n)

	n, _ = tran.Down()
	require.Equal(t, uint32(8), n)

	n, _ = tran.Match(9)
	require.Equal(t, uint32(8), n)

	n, _ = tran.Match(100)
	require.Equal(t, uint32(16), n)
}

func TestCurveTransmissionDefaults(t *testing.T) {
	tran := aio.NewCurveTransmission(nil)
	n, timeout := tran.Match(0)
	require.Equal(t, uint32(1), n)
	require.Greater(t, timeout, time.Duration(0))
}

func TestCurveTransmissionSkipsInvalidSteps(t *testing.T) {
	tran := aio.NewCurveTransmission(aio.Curve{
		{0, time.Millisecond},
		{4, 0},
	})
	n, timeout := tran.Match(0)
	require.Equal(t, uint32(1), n)
	require.Equal(t, 500*time.Microsecond, timeout)
}
