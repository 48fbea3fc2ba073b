//go:build linux

package aio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRingDriverEmulatedIntake forces a verb onto the ring driver's
// synchronous fallback and checks the entry it produces has the same shape
// the native path yields.
func TestRingDriverEmulatedIntake(t *testing.T) {
	d, err := newRingDriver(Options{Entries: 8, RegistryCapacity: 8})
	if err != nil {
		t.Skipf("ring unavailable: %v", err)
	}
	defer d.Close()

	d.probed = true
	for kind := OpKind(0); kind < opLast; kind++ {
		d.caps[kind] = SupportNone
	}
	d.caps[OpStat] = SupportEmulated
	require.Equal(t, SupportEmulated, d.Supports(OpStat))

	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	stat := &Stat{}
	op := NewOperation()
	op.PrepareStat(path, stat)

	key, err := d.Submit(op)
	require.NoError(t, err)

	entries := make([]Entry, 4)
	n, err := d.Wait(entries, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, key, entries[0].Key)
	require.NoError(t, entries[0].Err)
	require.Equal(t, 0, entries[0].N)
	require.Equal(t, int64(10), stat.Size)

	require.Same(t, op, d.registry.Retire(key))
}

// TestRingDriverRefusesUnsupported covers the submit-time surfacing of a
// kind the kernel and the fallback both lack.
func TestRingDriverRefusesUnsupported(t *testing.T) {
	d, err := newRingDriver(Options{Entries: 8, RegistryCapacity: 8})
	if err != nil {
		t.Skipf("ring unavailable: %v", err)
	}
	defer d.Close()

	d.probed = true
	for kind := OpKind(0); kind < opLast; kind++ {
		d.caps[kind] = SupportNone
	}

	op := NewOperation()
	op.PrepareNop()
	_, err = d.Submit(op)
	require.True(t, IsUnsupported(err))
	require.Equal(t, 0, d.registry.Inflight())
}
