package conc

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) failed", i)
		}
	}
	for i := 1; i <= 5; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop = %d,%v, want %d", v, ok, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("TryPop on empty queue succeeded")
	}
}

func TestQueueWaitPopBlocks(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, ok := q.WaitPop()
		if ok {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("hello")

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("WaitPop = %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitPop did not wake")
	}
}

func TestQueueStopReleasesWaiters(t *testing.T) {
	q := NewQueue[int]()

	var wg sync.WaitGroup
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.WaitPop()
			results <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Stop()
	q.Stop() // idempotent
	wg.Wait()

	for i := 0; i < 3; i++ {
		if ok := <-results; ok {
			t.Error("stopped WaitPop returned an item")
		}
	}
	if q.Push(1) {
		t.Error("Push after Stop succeeded")
	}
}

func TestQueueEraseIf(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 10; i++ {
		q.Push(i)
	}
	removed := q.EraseIf(func(v int) bool { return v%2 == 0 })
	if removed != 5 {
		t.Errorf("EraseIf removed %d, want 5", removed)
	}
	if q.Len() != 5 {
		t.Errorf("Len = %d, want 5", q.Len())
	}
	for want := 1; want <= 9; want += 2 {
		v, _ := q.TryPop()
		if v != want {
			t.Errorf("TryPop = %d, want %d (order preserved)", v, want)
		}
	}
}
