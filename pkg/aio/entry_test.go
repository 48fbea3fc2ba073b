package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyEncoding(t *testing.T) {
	key := makeKey(42, 7)
	require.Equal(t, uint32(42), key.index())
	require.Equal(t, uint32(7), key.generation())
}

func TestMintedKeysNeverReserved(t *testing.T) {
	r := NewRegistry(4)
	for i := 0; i < 16; i++ {
		key, err := r.Insert(NewOperation())
		require.NoError(t, err)
		require.GreaterOrEqual(t, key, keyReservedLast)
		r.Retire(key)
	}
}
