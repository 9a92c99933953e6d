package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionQueue_EnqueueDequeue(t *testing.T) {
	q := newTransitionQueue()

	ok := q.Enqueue(transition{next: StateSyncingProject})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, StateSyncingProject, got.next)
}

func TestTransitionQueue_FIFO(t *testing.T) {
	q := newTransitionQueue()

	want := []State{StateSyncingProject, StateSyncingCorpora, StateSyncingAlignments}
	for _, s := range want {
		q.Enqueue(transition{next: s})
	}

	for _, s := range want {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, s, got.next)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTransitionQueue_TryDequeue_Empty(t *testing.T) {
	q := newTransitionQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTransitionQueue_WaitSignalsAfterEnqueue(t *testing.T) {
	q := newTransitionQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(transition{next: StateSyncingProject})
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("Wait() never signaled")
	}
	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, StateSyncingProject, got.next)
}

func TestTransitionQueue_CloseRejectsEnqueue(t *testing.T) {
	q := newTransitionQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(transition{next: StateSyncingProject}))
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	select {
	case _, open := <-q.Wait():
		assert.False(t, open, "Wait() channel should be closed")
	default:
		t.Fatal("Wait() should not block after Close")
	}
}

func TestTransitionQueue_ConcurrentProducers(t *testing.T) {
	q := newTransitionQueue()
	const producers = 20

	var wg sync.WaitGroup
	wg.Add(producers)
	for range producers {
		go func() {
			defer wg.Done()
			q.Enqueue(transition{next: StateSyncingProject})
		}()
	}
	wg.Wait()

	n := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, producers, n)
}
