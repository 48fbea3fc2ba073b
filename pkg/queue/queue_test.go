package queue_test

import (
	"sync"
	"testing"

	"github.com/brickingsoft/coio/pkg/queue"
	"github.com/stretchr/testify/require"
)

type entry struct {
	n int
}

func TestQueue(t *testing.T) {
	q := queue.New[entry]()
	require.Nil(t, q.Dequeue())

	for i := 0; i < 10; i++ {
		q.Enqueue(&entry{n: i})
	}
	require.Equal(t, int64(10), q.Length())

	for i := 0; i < 10; i++ {
		e := q.Dequeue()
		require.NotNil(t, e)
		require.Equal(t, i, e.n)
	}
	require.Nil(t, q.Dequeue())
	require.Equal(t, int64(0), q.Length())
}

func TestQueuePeekBatch(t *testing.T) {
	q := queue.New[entry]()
	for i := 0; i < 8; i++ {
		q.Enqueue(&entry{n: i})
	}

	batch := make([]*entry, 5)
	peeked := q.PeekBatch(batch)
	require.Equal(t, int64(5), peeked)
	for i := int64(0); i < peeked; i++ {
		require.Equal(t, int(i), batch[i].n)
	}
	require.Equal(t, int64(8), q.Length())

	q.Advance(peeked)
	require.Equal(t, int64(3), q.Length())
	e := q.Dequeue()
	require.Equal(t, 5, e.n)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := queue.New[entry]()
	producers := 8
	each := 1000

	wg := new(sync.WaitGroup)
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(&entry{n: p*each + i})
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool, producers*each)
	for {
		e := q.Dequeue()
		if e == nil {
			break
		}
		require.False(t, seen[e.n])
		seen[e.n] = true
	}
	require.Len(t, seen, producers*each)
}
