// Package pipeline validates downloaded blocks on a bounded worker
// pool. Evaluation runs out of order; retirement is strictly in
// ascending height order starting at one.
package pipeline

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobysharp/hornet/internal/conc"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/pkg/block"
)

// DefaultDepth is the worker count used when none is configured.
const DefaultDepth = 8

// Pipeline errors.
var (
	ErrGenesisSubmit = errors.New("genesis block cannot be submitted")
	ErrStopped       = errors.New("pipeline is stopped")
)

// ValidateFunc runs the block rulesets for one candidate and returns
// its consensus result.
type ValidateFunc func(blk *block.Block, height int32) error

// CompleteFunc receives each block in strict height order with its
// validation result.
type CompleteFunc func(blk *block.Block, height int32, result error)

// ReadyFunc reports whether a block's prerequisites (previous outputs
// from lower blocks) are available yet.
type ReadyFunc func(blk *block.Block, height int32) bool

// Config wires a Pipeline.
type Config struct {
	// Depth is the worker count; DefaultDepth when zero.
	Depth int
	// Validate runs the rulesets. Required.
	Validate ValidateFunc
	// OnComplete retires results in height order. Required.
	OnComplete CompleteFunc
	// Ready gates evaluation; nil means always ready.
	Ready ReadyFunc
	// StartHeight is the first height to retire; defaults to 1.
	StartHeight int32
}

// job is one scheduled block.
type job struct {
	blk    *block.Block
	height int32
}

// completion is one evaluated block awaiting retirement.
type completion struct {
	blk    *block.Block
	height int32
	result error
}

// completionHeap is a min-heap on height.
type completionHeap []completion

func (h completionHeap) Len() int            { return len(h) }
func (h completionHeap) Less(i, j int) bool  { return h[i].height < h[j].height }
func (h completionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *completionHeap) Push(x any)         { *h = append(*h, x.(completion)) }
func (h *completionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Pipeline is the bounded validation pool.
type Pipeline struct {
	cfg   Config
	queue *conc.Queue[job]
	wg    sync.WaitGroup

	// retireMu guards the completion heap, the retirement cursor, and
	// the drainer flag. It is held only for heap and cursor updates,
	// never across the completion callback or any other lock.
	retireMu   sync.Mutex
	completed  completionHeap
	nextHeight int32
	retiring   bool

	// idleMu guards the in-flight count and the idle channel handed to
	// waiters.
	idleMu sync.Mutex
	active int
	idleCh chan struct{}

	logger zerolog.Logger
}

// New creates and starts a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.StartHeight <= 0 {
		cfg.StartHeight = 1
	}
	p := &Pipeline{
		cfg:        cfg,
		queue:      conc.NewQueue[job](),
		nextHeight: cfg.StartHeight,
		logger:     log.Pipeline,
	}
	for i := 0; i < cfg.Depth; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit schedules one block for validation. Height zero is the
// preloaded genesis and is rejected.
func (p *Pipeline) Submit(blk *block.Block, height int32) error {
	if height == 0 {
		return ErrGenesisSubmit
	}
	p.jobAdded()
	if !p.queue.Push(job{blk: blk, height: height}) {
		p.jobRetired()
		return ErrStopped
	}
	queueDepth.Inc()
	return nil
}

// Wait blocks until every submitted block has retired or the timeout
// expires. Returns true when the pipeline drained.
func (p *Pipeline) Wait(t conc.Timeout) bool {
	ch := p.idleWaitCh()
	if ch == nil {
		return true
	}
	if t.IsInfinite() {
		<-ch
		return true
	}
	remaining := t.Remaining()
	if remaining == 0 {
		return false
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// ActiveCount returns the number of submitted-but-unretired blocks.
func (p *Pipeline) ActiveCount() int {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	return p.active
}

// Close stops the queue and joins the workers. Jobs that have not been
// evaluated are dropped without their completion callback.
func (p *Pipeline) Close() {
	p.queue.Stop()
	p.wg.Wait()
}

// worker evaluates jobs until the queue stops.
func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		j, ok := p.queue.WaitPop()
		if !ok {
			return
		}
		queueDepth.Dec()

		// Cooperative deferral: when a block's prerequisites are not in
		// yet and there is other work, send it to the back of the line
		// rather than spinning on it.
		if p.cfg.Ready != nil && !p.cfg.Ready(j.blk, j.height) && !p.queue.Empty() {
			if p.queue.Push(j) {
				queueDepth.Inc()
				deferrals.Inc()
				continue
			}
			return
		}

		result := p.cfg.Validate(j.blk, j.height)
		if result != nil {
			validationFailures.Inc()
		}
		p.retire(completion{blk: j.blk, height: j.height, result: result})
	}
}

// retire publishes one completion and drains every eligible entry in
// height order. Only one worker drains at a time: a worker that finds
// the drainer active just leaves its completion on the heap and moves
// on, and the drainer picks it up on its next pass. The retire mutex is
// released around the completion callback, so the callback is free to
// take the timechain locks.
func (p *Pipeline) retire(c completion) {
	p.retireMu.Lock()
	heap.Push(&p.completed, c)
	if p.retiring {
		p.retireMu.Unlock()
		return
	}
	p.retiring = true
	for len(p.completed) > 0 && p.completed[0].height == p.nextHeight {
		top := heap.Pop(&p.completed).(completion)
		p.nextHeight++
		p.retireMu.Unlock()

		p.cfg.OnComplete(top.blk, top.height, top.result)
		blocksRetired.Inc()
		retireHeight.Set(float64(top.height))
		p.jobRetired()

		p.retireMu.Lock()
	}
	p.retiring = false
	p.retireMu.Unlock()
}

// jobAdded accounts one in-flight block.
func (p *Pipeline) jobAdded() {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	p.active++
	if p.idleCh == nil {
		p.idleCh = make(chan struct{})
	}
}

// jobRetired accounts one retired block and releases waiters at zero.
func (p *Pipeline) jobRetired() {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	p.active--
	if p.active == 0 && p.idleCh != nil {
		close(p.idleCh)
		p.idleCh = nil
	}
}

// idleWaitCh returns the channel closed at the next idle transition, or
// nil when already idle.
func (p *Pipeline) idleWaitCh() chan struct{} {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	if p.active == 0 {
		return nil
	}
	return p.idleCh
}
