package aio_test

import (
	"testing"

	"github.com/brickingsoft/coio/pkg/aio"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertRetire(t *testing.T) {
	r := aio.NewRegistry(8)
	first := aio.NewOperation()
	second := aio.NewOperation()

	k1, err := r.Insert(first)
	require.NoError(t, err)
	k2, err := r.Insert(second)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
	require.Equal(t, 2, r.Inflight())

	require.Same(t, first, r.Get(k1))
	require.Same(t, second, r.Get(k2))

	require.Same(t, first, r.Retire(k1))
	require.Nil(t, r.Get(k1))
	require.Equal(t, 1, r.Inflight())
}

func TestRegistryDeadKeyPanics(t *testing.T) {
	r := aio.NewRegistry(8)
	key, err := r.Insert(aio.NewOperation())
	require.NoError(t, err)
	r.Retire(key)
	require.Panics(t, func() {
		r.Retire(key)
	})
}

func TestRegistryExhaustion(t *testing.T) {
	r := aio.NewRegistry(2)
	k1, err := r.Insert(aio.NewOperation())
	require.NoError(t, err)
	_, err = r.Insert(aio.NewOperation())
	require.NoError(t, err)

	_, err = r.Insert(aio.NewOperation())
	require.True(t, aio.IsRegistryFull(err))

	r.Retire(k1)
	_, err = r.Insert(aio.NewOperation())
	require.NoError(t, err)
}

func TestRegistrySlotReuseMintsFreshKey(t *testing.T) {
	r := aio.NewRegistry(1)
	op := aio.NewOperation()

	k1, err := r.Insert(op)
	require.NoError(t, err)
	r.Retire(k1)

	k2, err := r.Insert(op)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
	require.Nil(t, r.Get(k1))
	require.Same(t, op, r.Get(k2))
}

func TestRegistryRange(t *testing.T) {
	r := aio.NewRegistry(4)
	keys := make(map[aio.Key]bool)
	for i := 0; i < 3; i++ {
		key, err := r.Insert(aio.NewOperation())
		require.NoError(t, err)
		keys[key] = true
	}
	seen := 0
	r.Range(func(key aio.Key, op *aio.Operation) {
		require.True(t, keys[key])
		require.NotNil(t, op)
		seen++
	})
	require.Equal(t, 3, seen)
}
