package buf_test

import (
	"testing"

	"github.com/brickingsoft/coio/pkg/buf"
	"github.com/stretchr/testify/require"
)

func TestBlock(t *testing.T) {
	blk := buf.Acquire(64)
	defer buf.Release(blk)

	require.GreaterOrEqual(t, blk.Cap(), 64)
	require.Equal(t, 0, blk.Len())

	n := blk.Write([]byte("hello"))
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), blk.Bytes())
	require.Equal(t, []byte("hello"), buf.Initialized(blk))

	blk.SetLen(3)
	require.Equal(t, []byte("hel"), blk.Bytes())
}

func TestBlockSetLenBeyondCapacity(t *testing.T) {
	blk := buf.Acquire(16)
	defer buf.Release(blk)

	require.Panics(t, func() {
		blk.SetLen(blk.Cap() + 1)
	})
	require.Panics(t, func() {
		blk.SetLen(-1)
	})
}

func TestBlockWriteBounded(t *testing.T) {
	blk := buf.Acquire(8)
	defer buf.Release(blk)

	c := blk.Cap()
	p := make([]byte, c+32)
	n := blk.Write(p)
	require.Equal(t, c, n)
	require.Equal(t, 0, blk.Write([]byte{1}))
	require.Equal(t, c, blk.Len())
}

func TestWrap(t *testing.T) {
	p := make([]byte, 4, 16)
	s := buf.Wrap(p)
	require.Equal(t, 4, s.Len())
	require.Equal(t, 16, s.Cap())

	w := buf.Writable(s)
	require.Equal(t, 16, len(w))
	copy(w, "abcdefgh")
	s.SetLen(8)
	require.Equal(t, []byte("abcdefgh"), s.Bytes())
}

func TestFixed(t *testing.T) {
	backing := make([]byte, 32)
	f := buf.NewFixed(3, backing)
	require.Equal(t, 3, f.Index())
	require.Equal(t, 0, f.Len())
	require.Equal(t, 32, f.Cap())

	copy(buf.Writable(f), "xy")
	f.SetLen(2)
	require.Equal(t, []byte("xy"), f.Bytes())
	require.Panics(t, func() { f.SetLen(33) })
}

func TestVectorSetLen(t *testing.T) {
	a := buf.Wrap(make([]byte, 0, 4))
	b := buf.Wrap(make([]byte, 0, 4))
	v := buf.NewVector(a, b)

	require.Equal(t, 8, v.Cap())
	v.SetLen(6)
	require.Equal(t, 4, a.Len())
	require.Equal(t, 2, b.Len())
	require.Equal(t, 6, v.Len())

	require.Panics(t, func() { v.SetLen(9) })
}

func TestVectorIovecs(t *testing.T) {
	a := buf.Wrap([]byte("abc"))
	b := buf.Wrap(make([]byte, 0, 8))
	v := buf.NewVector(a, b)

	wr := v.InitializedIovecs()
	require.Len(t, wr, 1)
	require.Equal(t, uint64(3), wr[0].Len)

	rd := v.WritableIovecs()
	require.Len(t, rd, 2)
	require.Equal(t, uint64(3), rd[0].Len)
	require.Equal(t, uint64(8), rd[1].Len)
}
