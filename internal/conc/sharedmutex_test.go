package conc

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSharedMutexReadersShareWritersExclude(t *testing.T) {
	var m SharedMutex
	var concurrentReaders atomic.Int32
	var maxReaders atomic.Int32
	var inWriter atomic.Bool

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RLock()
				if inWriter.Load() {
					t.Error("reader admitted while writer active")
				}
				n := concurrentReaders.Add(1)
				for {
					old := maxReaders.Load()
					if n <= old || maxReaders.CompareAndSwap(old, n) {
						break
					}
				}
				concurrentReaders.Add(-1)
				m.RUnlock()
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Lock()
				if concurrentReaders.Load() != 0 {
					t.Error("writer admitted while readers active")
				}
				if !inWriter.CompareAndSwap(false, true) {
					t.Error("two writers active")
				}
				inWriter.Store(false)
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	if maxReaders.Load() < 2 {
		t.Log("readers never overlapped; scheduling-dependent, not a failure")
	}
}

// TestSharedMutexWriterPriority: a pending writer blocks new readers.
func TestSharedMutexWriterPriority(t *testing.T) {
	var m SharedMutex
	m.RLock() // hold a reader so the writer queues

	writerIn := make(chan struct{})
	go func() {
		m.Lock()
		close(writerIn)
		m.Unlock()
	}()

	// Give the writer time to register as waiting.
	time.Sleep(20 * time.Millisecond)

	readerIn := make(chan struct{})
	go func() {
		m.RLock()
		close(readerIn)
		m.RUnlock()
	}()

	// The new reader must not get in ahead of the queued writer.
	select {
	case <-readerIn:
		t.Fatal("reader overtook a pending writer")
	case <-time.After(20 * time.Millisecond):
	}

	m.RUnlock() // release the original reader

	select {
	case <-writerIn:
	case <-time.After(time.Second):
		t.Fatal("writer never admitted")
	}
	select {
	case <-readerIn:
	case <-time.After(time.Second):
		t.Fatal("reader never admitted after writer")
	}
}
