package conc

import "sync"

// SharedMutex is a read/write mutex where a pending writer blocks new
// readers, so a steady stream of readers cannot starve structural
// updates.
type SharedMutex struct {
	mu             sync.Mutex
	readerCond     *sync.Cond
	writerCond     *sync.Cond
	readers        int
	writersWaiting int
	writerActive   bool
	initOnce       sync.Once
}

func (m *SharedMutex) init() {
	m.initOnce.Do(func() {
		m.readerCond = sync.NewCond(&m.mu)
		m.writerCond = sync.NewCond(&m.mu)
	})
}

// RLock acquires shared access. Blocks while a writer is active or
// waiting.
func (m *SharedMutex) RLock() {
	m.init()
	m.mu.Lock()
	for m.writerActive || m.writersWaiting > 0 {
		m.readerCond.Wait()
	}
	m.readers++
	m.mu.Unlock()
}

// RUnlock releases shared access.
func (m *SharedMutex) RUnlock() {
	m.init()
	m.mu.Lock()
	m.readers--
	if m.readers == 0 && m.writersWaiting > 0 {
		m.writerCond.Signal()
	}
	m.mu.Unlock()
}

// Lock acquires exclusive access, taking priority over readers that have
// not yet entered.
func (m *SharedMutex) Lock() {
	m.init()
	m.mu.Lock()
	m.writersWaiting++
	for m.writerActive || m.readers > 0 {
		m.writerCond.Wait()
	}
	m.writersWaiting--
	m.writerActive = true
	m.mu.Unlock()
}

// Unlock releases exclusive access, preferring a waiting writer over
// blocked readers.
func (m *SharedMutex) Unlock() {
	m.init()
	m.mu.Lock()
	m.writerActive = false
	if m.writersWaiting > 0 {
		m.writerCond.Signal()
	} else {
		m.readerCond.Broadcast()
	}
	m.mu.Unlock()
}
