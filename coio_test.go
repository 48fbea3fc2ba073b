package coio_test

import (
	"context"
	"testing"

	"github.com/brickingsoft/coio"
	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/stretchr/testify/require"
)

func TestStartup(t *testing.T) {
	ctx := context.Background()
	err := coio.Startup()
	if err != nil {
		t.Fatal(err)
	}
	err = coio.Executors().Execute(ctx, func() {
		t.Log("do...")
	})
	if err != nil {
		t.Error(err)
	}
}

func TestDispatch(t *testing.T) {
	coio.Preset(aio.WithEventLoopCount(1))

	op := aio.AcquireOperation()
	defer aio.ReleaseOperation(op)
	op.PrepareNop()

	n, _, err := coio.DispatchAndWait(context.Background(), op)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSpawn(t *testing.T) {
	var stepped bool
	tk, err := coio.Spawn(func(tk *aio.Task) {
		stepped = true
	})
	require.NoError(t, err)
	require.NoError(t, tk.Join())
	require.True(t, stepped)
}

func TestPinUnpin(t *testing.T) {
	group, err := coio.Pin()
	require.NoError(t, err)
	require.Greater(t, group.Size(), 0)
	require.NoError(t, coio.Unpin())
}

// TestZZTeardown runs last and releases the process-wide state the other
// tests share.
func TestZZTeardown(t *testing.T) {
	require.NoError(t, coio.Close())
	require.NoError(t, coio.ShutdownGracefully())
}
