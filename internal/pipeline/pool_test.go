package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := NewPool(4)

	var count atomic.Int32
	for i := 0; i < 100; i++ {
		require.True(t, pool.Submit(func() { count.Add(1) }))
	}
	pool.Close()

	assert.Equal(t, int32(100), count.Load())
}

func TestPoolSingleWorkerSerializes(t *testing.T) {
	pool := NewPool(1)

	var running atomic.Int32
	var maxSeen atomic.Int32
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			now := running.Add(1)
			for {
				max := maxSeen.Load()
				if now <= max || maxSeen.CompareAndSwap(max, now) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		})
	}
	pool.Close()

	assert.Equal(t, int32(1), maxSeen.Load(), "single-worker pool must never run tasks concurrently")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(3)

	var running atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			now := running.Add(1)
			for {
				max := maxSeen.Load()
				if now <= max || maxSeen.CompareAndSwap(max, now) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	pool.Close()

	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestPoolSubmitNeverBlocksOnCapacity(t *testing.T) {
	pool := NewPool(1)

	release := make(chan struct{})
	pool.Submit(func() { <-release })

	// Worker is occupied; further submissions must queue and return at once.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			pool.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while the worker was busy")
	}

	close(release)
	pool.Close()
}

func TestPoolCloseDrainsQueuedTasks(t *testing.T) {
	pool := NewPool(1)

	release := make(chan struct{})
	pool.Submit(func() { <-release })

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func() { count.Add(1) })
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	pool.Close()

	assert.Equal(t, int32(10), count.Load(), "Close must run tasks that were still queued")
}

func TestPoolRejectsAfterClose(t *testing.T) {
	pool := NewPool(2)
	pool.Close()

	assert.False(t, pool.Submit(func() {
		t.Error("task submitted after Close must not run")
	}))
}

func TestPoolClampsWorkerCount(t *testing.T) {
	pool := NewPool(0)

	done := make(chan struct{})
	require.True(t, pool.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool with clamped worker count never ran the task")
	}
	pool.Close()
}
