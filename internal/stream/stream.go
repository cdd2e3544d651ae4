// Package stream provides the push stream every stage of the watch pipeline
// hands data through: one or more producers send values, a single consumer
// ranges over C, and exactly one terminal signal (completion or error)
// closes it. Streams are not restartable.
package stream

import (
	"sync"
)

// Stream is a single-consumer push stream of T.
type Stream[T any] struct {
	items chan T
	quit  chan struct{}

	mu       sync.RWMutex
	finished bool
	err      error

	quitOnce   sync.Once
	finishOnce sync.Once
}

// New returns an open stream whose channel buffers up to buffer values.
func New[T any](buffer int) *Stream[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream[T]{
		items: make(chan T, buffer),
		quit:  make(chan struct{}),
	}
}

// C returns the receive side. It is closed after the terminal signal.
func (s *Stream[T]) C() <-chan T {
	return s.items
}

// Err returns the terminal error once C is closed. A nil error means the
// stream completed normally.
func (s *Stream[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Send delivers v to the consumer. It blocks until the consumer receives it
// or the stream is stopped or finished, and reports whether v was delivered.
// Send is safe to call concurrently with Finish.
func (s *Stream[T]) Send(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finished {
		return false
	}
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.items <- v:
		return true
	case <-s.quit:
		return false
	}
}

// Finish emits the terminal signal. Only the first call has an effect;
// values not yet delivered by blocked senders are dropped.
func (s *Stream[T]) Finish(err error) {
	s.finishOnce.Do(func() {
		s.stop()
		s.mu.Lock()
		s.finished = true
		s.err = err
		close(s.items)
		s.mu.Unlock()
	})
}

// Stop tells producers the consumer has gone away. Further sends fail and
// Done is closed. Stop does not finish the stream; the producer does that
// once it notices.
func (s *Stream[T]) Stop() {
	s.stop()
}

// Done is closed once the stream is stopped or finished.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.quit
}

// Finished reports whether the terminal signal has been emitted.
func (s *Stream[T]) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

func (s *Stream[T]) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Map feeds every value of src through fn into a new stream. fn returns
// the values to emit for one input, or an error that terminates the output.
// Stopping the output stops src.
func Map[In, Out any](src *Stream[In], buffer int, fn func(In) ([]Out, error)) *Stream[Out] {
	out := New[Out](buffer)
	go func() {
		defer src.Stop()
		for {
			select {
			case <-out.Done():
				out.Finish(nil)
				return
			case v, ok := <-src.C():
				if !ok {
					out.Finish(src.Err())
					return
				}
				emitted, err := fn(v)
				for _, e := range emitted {
					if !out.Send(e) {
						out.Finish(nil)
						return
					}
				}
				if err != nil {
					out.Finish(err)
					return
				}
			}
		}
	}()
	return out
}
