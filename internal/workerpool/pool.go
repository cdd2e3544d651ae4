// Package workerpool runs handler work on a bounded number of goroutines.
// Work is submitted through lanes: tasks on one lane run one at a time in
// submission order, while different lanes run concurrently up to the pool
// size. Each lane holds at most laneQueue pending tasks; Submit blocks
// while the lane is full.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

const laneQueue = 64

// Pool bounds how many lane tasks execute at once.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool running at most size tasks concurrently. A size of
// zero or less uses GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Lane returns a new serial lane on the pool.
func (p *Pool) Lane() *Lane {
	return &Lane{pool: p, slots: make(chan struct{}, laneQueue)}
}

// Close stops the pool. Queued tasks that have not started are dropped;
// Close waits for running tasks to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) start(l *Lane) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	go l.drain()
	return true
}

// Lane executes its tasks serially, in submission order.
type Lane struct {
	pool  *Pool
	slots chan struct{}

	mu      sync.Mutex
	queue   []func()
	running bool
}

// Submit queues fn, blocking while the lane already holds laneQueue
// pending tasks. It reports false if the pool is closed before fn could be
// queued.
func (l *Lane) Submit(fn func()) bool {
	if l.pool.ctx.Err() != nil {
		return false
	}
	select {
	case l.slots <- struct{}{}:
	case <-l.pool.ctx.Done():
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool.ctx.Err() != nil {
		return false
	}
	l.queue = append(l.queue, fn)
	if l.running {
		return true
	}
	if !l.pool.start(l) {
		l.queue = nil
		return false
	}
	l.running = true
	return true
}

func (l *Lane) drain() {
	defer l.pool.wg.Done()
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		<-l.slots

		if err := l.pool.sem.Acquire(l.pool.ctx, 1); err != nil {
			l.mu.Lock()
			l.queue = nil
			l.running = false
			l.mu.Unlock()
			return
		}
		fn()
		l.pool.sem.Release(1)
	}
}
