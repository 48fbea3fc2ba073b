//go:build linux

package coio_test

import (
	"context"
	"testing"

	"github.com/brickingsoft/coio"
	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/brickingsoft/coio/pkg/buf"
	"github.com/brickingsoft/rxp/async"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDispatchCancel(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(64)
	defer buf.Release(b)
	op.PrepareRecv(fds[0], b)

	future, token := coio.Dispatch(context.Background(), op)
	require.NoError(t, token.Cancel())

	res, err := async.AwaitableFuture[aio.Result](future).Await()
	if err == nil {
		err = res.Err
	}
	require.True(t, aio.IsCanceled(err))
}
