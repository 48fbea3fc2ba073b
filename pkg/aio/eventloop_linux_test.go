//go:build linux

package aio_test

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/brickingsoft/coio/pkg/buf"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPollGroup(t *testing.T, loops uint32) *aio.EventLoopGroup {
	t.Helper()
	group, err := aio.NewEventLoopGroup(
		aio.WithEventLoopCount(loops),
		aio.WithBackend(aio.BackendPoll),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = group.Close()
	})
	return group
}

func TestEventLoopFileRead(t *testing.T) {
	group := newPollGroup(t, 1)

	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	require.NoError(t, err)
	defer unix.Close(fd)

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(4096)
	defer buf.Release(b)
	op.PrepareRead(fd, 0, b)

	_, err = group.Submit(op)
	require.NoError(t, err)
	n, _, err := op.Await()
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, 10, b.Len())
	require.Equal(t, []byte("0123456789"), b.Bytes())
}

func TestEventLoopFileWriteRoundTrip(t *testing.T) {
	group := newPollGroup(t, 1)

	path := filepath.Join(t.TempDir(), "out")
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o600)
	require.NoError(t, err)
	defer unix.Close(fd)

	wr := aio.AcquireOperation()
	wb := buf.Acquire(16)
	wb.Write([]byte("hello"))
	wr.PrepareWrite(fd, 0, wb)
	_, err = group.Submit(wr)
	require.NoError(t, err)
	n, _, err := wr.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	buf.Release(wb)
	aio.ReleaseOperation(wr)

	rd := aio.AcquireOperation()
	rb := buf.Acquire(16)
	rd.PrepareRead(fd, 0, rb)
	_, err = group.Submit(rd)
	require.NoError(t, err)
	n, _, err = rd.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), rb.Bytes())
	buf.Release(rb)
	aio.ReleaseOperation(rd)
}

func TestEventLoopDeadlineCancels(t *testing.T) {
	group := newPollGroup(t, 1)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(64)
	defer buf.Release(b)
	op.PrepareRecv(fds[0], b)
	op.WithDeadline(time.Now().Add(50 * time.Millisecond))

	start := time.Now()
	_, err = group.Submit(op)
	require.NoError(t, err)
	_, _, err = op.Await()
	require.True(t, aio.IsCanceled(err))
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestEventLoopSendRecv(t *testing.T) {
	group := newPollGroup(t, 1)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	recv := aio.AcquireOperation()
	rb := buf.Acquire(64)
	recv.PrepareRecv(fds[0], rb)
	_, err = group.Submit(recv)
	require.NoError(t, err)

	send := aio.AcquireOperation()
	sb := buf.Acquire(64)
	sb.Write([]byte("ping!"))
	send.PrepareSend(fds[1], sb)
	_, err = group.Submit(send)
	require.NoError(t, err)

	n, _, err := send.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, _, err = recv.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("ping!"), rb.Bytes())

	buf.Release(rb)
	buf.Release(sb)
	aio.ReleaseOperation(recv)
	aio.ReleaseOperation(send)
}

func TestEventLoopConcurrentAccepts(t *testing.T) {
	group := newPollGroup(t, 1)

	ls, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(ls)
	require.NoError(t, unix.Bind(ls, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}))
	require.NoError(t, unix.Listen(ls, 8))
	bound, err := unix.Getsockname(ls)
	require.NoError(t, err)
	port := bound.(*unix.SockaddrInet4).Port

	first := aio.AcquireOperation()
	first.PrepareAccept(ls)
	second := aio.AcquireOperation()
	second.PrepareAccept(ls)
	_, err = group.Submit(first)
	require.NoError(t, err)
	_, err = group.Submit(second)
	require.NoError(t, err)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	c1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c2.Close()

	n1, _, err := first.Await()
	require.NoError(t, err)
	require.Greater(t, n1, 0)
	n2, _, err := second.Await()
	require.NoError(t, err)
	require.Greater(t, n2, 0)
	require.NotEqual(t, n1, n2)

	_ = unix.Close(n1)
	_ = unix.Close(n2)
	aio.ReleaseOperation(first)
	aio.ReleaseOperation(second)
}

func TestGroupSubmitExactlyOnce(t *testing.T) {
	group := newPollGroup(t, 2)

	const submissions = 64
	results := make(chan error, submissions)
	wg := new(sync.WaitGroup)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := aio.AcquireOperation()
			defer aio.ReleaseOperation(op)
			op.PrepareNop()
			if _, err := group.Submit(op); err != nil {
				results <- err
				return
			}
			_, _, err := op.Await()
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	delivered := 0
	for err := range results {
		require.NoError(t, err)
		delivered++
	}
	require.Equal(t, submissions, delivered)
}

func TestTaskSubmitResume(t *testing.T) {
	group := newPollGroup(t, 1)

	var got aio.Result
	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	op.PrepareNop()

	tk, err := group.Spawn(func(tk *aio.Task) {
		tk.Submit(op, func(tk *aio.Task, res aio.Result) {
			got = res
		})
	})
	require.NoError(t, err)
	require.NoError(t, tk.Join())
	require.NoError(t, got.Err)
	require.Equal(t, 0, got.N)
	require.Equal(t, int64(aio.TaskCompleted), tk.State())
}

func TestTaskSubmitDeliversCompletion(t *testing.T) {
	group := newPollGroup(t, 1)

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	op.PrepareNop()

	done := make(chan aio.Result, 1)
	_, err := group.Spawn(func(tk *aio.Task) {
		tk.Submit(op, func(tk *aio.Task, res aio.Result) {
			done <- res
		})
	})
	require.NoError(t, err)
	select {
	case res := <-done:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("task continuation never ran")
	}
}

func TestSubmitCancelToken(t *testing.T) {
	group := newPollGroup(t, 1)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(64)
	defer buf.Release(b)
	op.PrepareRecv(fds[0], b)

	token, err := group.Submit(op)
	require.NoError(t, err)
	require.NoError(t, token.Cancel())

	_, _, err = op.Await()
	require.True(t, aio.IsCanceled(err))

	// the completion already arrived, a late cancel is a routed no-op
	require.NoError(t, token.Cancel())
	nop := aio.AcquireOperation()
	defer aio.ReleaseOperation(nop)
	nop.PrepareNop()
	_, err = group.Submit(nop)
	require.NoError(t, err)
	_, _, err = nop.Await()
	require.NoError(t, err)
}

func TestTaskSubmitCancelToken(t *testing.T) {
	group := newPollGroup(t, 1)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(64)
	defer buf.Release(b)
	op.PrepareRecv(fds[0], b)

	tokens := make(chan aio.CancelToken, 1)
	tk, err := group.Spawn(func(tk *aio.Task) {
		tokens <- tk.Submit(op, func(tk *aio.Task, res aio.Result) {
			if !aio.IsCanceled(res.Err) {
				tk.Fail(res.Err)
			}
		})
	})
	require.NoError(t, err)
	token := <-tokens
	require.NoError(t, token.Cancel())
	require.NoError(t, tk.Join())
}

func TestTaskChainsSubmissions(t *testing.T) {
	group := newPollGroup(t, 1)

	path := filepath.Join(t.TempDir(), "chain")
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o600)
	require.NoError(t, err)
	defer unix.Close(fd)

	wb := buf.Acquire(16)
	wb.Write([]byte("chained"))
	rb := buf.Acquire(16)
	var readBack []byte

	tk, err := group.Spawn(func(tk *aio.Task) {
		wr := aio.AcquireOperation()
		wr.PrepareWrite(fd, 0, wb)
		tk.Submit(wr, func(tk *aio.Task, res aio.Result) {
			aio.ReleaseOperation(wr)
			if res.Err != nil {
				tk.Fail(res.Err)
				return
			}
			rd := aio.AcquireOperation()
			rd.PrepareRead(fd, 0, rb)
			tk.Submit(rd, func(tk *aio.Task, res aio.Result) {
				aio.ReleaseOperation(rd)
				if res.Err != nil {
					tk.Fail(res.Err)
					return
				}
				readBack = append(readBack[:0], rb.Bytes()...)
			})
		})
	})
	require.NoError(t, err)
	require.NoError(t, tk.Join())
	require.Equal(t, []byte("chained"), readBack)

	buf.Release(wb)
	buf.Release(rb)
}

func TestTaskSleep(t *testing.T) {
	group := newPollGroup(t, 1)

	start := time.Now()
	var elapsed time.Duration
	tk, err := group.Spawn(func(tk *aio.Task) {
		tk.Sleep(50*time.Millisecond, func(tk *aio.Task, res aio.Result) {
			elapsed = time.Since(start)
		})
	})
	require.NoError(t, err)
	require.NoError(t, tk.Join())
	require.GreaterOrEqual(t, elapsed, 45*time.Millisecond)
}

func TestGroupClosedSubmitRefused(t *testing.T) {
	group, err := aio.NewEventLoopGroup(
		aio.WithEventLoopCount(1),
		aio.WithBackend(aio.BackendPoll),
	)
	require.NoError(t, err)
	require.NoError(t, group.Close())

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	op.PrepareNop()
	_, err = group.Submit(op)
	require.True(t, aio.IsClosed(err))
}

func TestRingBackendFileRead(t *testing.T) {
	group, err := aio.NewEventLoopGroup(
		aio.WithEventLoopCount(1),
		aio.WithBackend(aio.BackendRing),
		aio.WithRegisteredBuffers(4, 4096),
	)
	if err != nil {
		t.Skipf("ring backend unavailable: %v", err)
	}
	defer group.Close()

	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	require.NoError(t, err)
	defer unix.Close(fd)

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	b := buf.Acquire(4096)
	defer buf.Release(b)
	op.PrepareRead(fd, 0, b)

	_, err = group.Submit(op)
	require.NoError(t, err)
	n, _, err := op.Await()
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, []byte("0123456789"), b.Bytes())
}

func TestRingBackendFixedBuffers(t *testing.T) {
	group, err := aio.NewEventLoopGroup(
		aio.WithEventLoopCount(1),
		aio.WithBackend(aio.BackendRing),
		aio.WithRegisteredBuffers(2, 4096),
	)
	if err != nil {
		t.Skipf("ring backend unavailable: %v", err)
	}
	defer group.Close()
	event := group.Member(0)

	fx := event.AcquireFixed()
	require.NotNil(t, fx)
	defer event.ReleaseFixed(fx)

	path := filepath.Join(t.TempDir(), "fixed")
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o600)
	require.NoError(t, err)
	defer unix.Close(fd)

	fx.SetLen(5)
	copy(fx.Bytes(), "fixed")

	wr := aio.AcquireOperation()
	wr.PrepareWriteFixed(fd, 0, fx)
	_, err = event.Submit(wr)
	require.NoError(t, err)
	n, _, err := wr.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	aio.ReleaseOperation(wr)

	fx.Reset()
	rd := aio.AcquireOperation()
	rd.PrepareReadFixed(fd, 0, fx)
	_, err = event.Submit(rd)
	require.NoError(t, err)
	n, _, err = rd.Await()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("fixed"), fx.Bytes())
	aio.ReleaseOperation(rd)
}
