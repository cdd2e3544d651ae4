package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLanePreservesSubmissionOrder(t *testing.T) {
	p := New(4)
	defer p.Close()

	lane := p.Lane()
	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := range 100 {
		wg.Add(1)
		lane.Submit(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	if len(got) != 100 {
		t.Fatalf("length mismatch: got %d, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 2
	p := New(size)
	defer p.Close()

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		lane := p.Lane()
		wg.Add(1)
		lane.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	if got := peak.Load(); got > size {
		t.Fatalf("peak concurrency = %d, want <= %d", got, size)
	}
}

func TestDefaultSizeUsesGOMAXPROCS(t *testing.T) {
	p := New(0)
	defer p.Close()
	if p.Size() < 1 {
		t.Fatalf("Size() = %d, want >= 1", p.Size())
	}
}

func TestSubmitAfterCloseIsRejected(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close()

	if p.Lane().Submit(func() { t.Error("task ran after Close") }) {
		t.Fatal("Submit after Close reported success")
	}
}

func TestCloseWaitsForRunningTask(t *testing.T) {
	p := New(1)
	started := make(chan struct{})
	var finished atomic.Bool
	p.Lane().Submit(func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	p.Close()

	if !finished.Load() {
		t.Fatal("Close returned before the running task finished")
	}
}

func TestSubmitBlocksWhenLaneIsFull(t *testing.T) {
	p := New(1)
	defer p.Close()

	lane := p.Lane()
	started := make(chan struct{})
	release := make(chan struct{})
	lane.Submit(func() {
		close(started)
		<-release
	})
	<-started

	for range laneQueue {
		if !lane.Submit(func() {}) {
			t.Fatal("Submit rejected while the lane had room")
		}
	}

	queued := make(chan bool, 1)
	go func() { queued <- lane.Submit(func() {}) }()

	select {
	case <-queued:
		t.Fatal("Submit returned while the lane was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case ok := <-queued:
		if !ok {
			t.Fatal("Submit reported false after the lane drained")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after the stuck task returned")
	}
}

func TestCloseUnblocksFullLane(t *testing.T) {
	p := New(1)
	lane := p.Lane()
	started := make(chan struct{})
	release := make(chan struct{})
	lane.Submit(func() {
		close(started)
		<-release
	})
	<-started
	for range laneQueue {
		lane.Submit(func() { t.Error("queued task ran after Close") })
	}

	queued := make(chan bool, 1)
	go func() { queued <- lane.Submit(func() {}) }()

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case ok := <-queued:
		if ok {
			t.Fatal("blocked Submit reported success after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after Close")
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the running task finished")
	}
}
