package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdering(t *testing.T) {
	h := &timerHeap{}
	now := time.Now()
	h.add(now.Add(30*time.Millisecond), Key(3))
	h.add(now.Add(10*time.Millisecond), Key(1))
	h.add(now.Add(20*time.Millisecond), Key(2))

	d := h.next(now)
	require.Greater(t, d, time.Duration(0))
	require.LessOrEqual(t, d, 10*time.Millisecond)

	require.Empty(t, h.expired(now))
	require.Equal(t, []Key{Key(1), Key(2)}, h.expired(now.Add(20*time.Millisecond)))

	h.remove(Key(3))
	require.Equal(t, time.Duration(-1), h.next(now))
}

func TestTimerHeapPastDeadline(t *testing.T) {
	h := &timerHeap{}
	now := time.Now()
	h.add(now.Add(-time.Millisecond), Key(9))
	require.Equal(t, time.Duration(0), h.next(now))
	require.Equal(t, []Key{Key(9)}, h.expired(now))
}

func TestSleepHeapOrdering(t *testing.T) {
	h := &sleepHeap{}
	now := time.Now()
	first := &Task{}
	second := &Task{}
	third := &Task{}
	h.add(now.Add(3*time.Millisecond), third)
	h.add(now.Add(time.Millisecond), first)
	h.add(now.Add(2*time.Millisecond), second)

	require.Empty(t, h.expired(now))
	woken := h.expired(now.Add(2 * time.Millisecond))
	require.Len(t, woken, 2)
	require.Same(t, first, woken[0])
	require.Same(t, second, woken[1])

	rest := h.expired(now.Add(time.Hour))
	require.Len(t, rest, 1)
	require.Same(t, third, rest[0])
	require.Equal(t, time.Duration(-1), h.next(now))
}
