package stream

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func collect[T any](t *testing.T, s *Stream[T]) []T {
	t.Helper()
	var got []T
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-s.C():
			if !ok {
				return got
			}
			got = append(got, v)
		case <-timeout:
			t.Fatal("timed out waiting for stream to finish")
			return nil
		}
	}
}

func TestSendThenFinishDeliversInOrder(t *testing.T) {
	s := New[int](0)
	go func() {
		for i := range 5 {
			s.Send(i)
		}
		s.Finish(nil)
	}()

	got := collect(t, s)
	if len(got) != 5 {
		t.Fatalf("length mismatch: got %d, want 5", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestFinishOnlyOnce(t *testing.T) {
	s := New[string](1)
	first := errors.New("first")
	s.Finish(first)
	s.Finish(errors.New("second"))
	s.Finish(nil)

	collect(t, s)
	if !errors.Is(s.Err(), first) {
		t.Fatalf("Err() = %v, want %v", s.Err(), first)
	}
	if s.Send("late") {
		t.Fatal("Send after Finish reported delivery")
	}
}

func TestFinishUnblocksConcurrentSenders(t *testing.T) {
	s := New[int](0)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(i)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.Finish(nil)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("senders still blocked after Finish")
	}
}

func TestStopFailsSendAndClosesDone(t *testing.T) {
	s := New[int](0)
	s.Stop()

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if s.Send(1) {
		t.Fatal("Send after Stop reported delivery")
	}
	if s.Finished() {
		t.Fatal("Stop must not finish the stream")
	}
}

func TestMapPropagatesValuesAndTerminalError(t *testing.T) {
	src := New[string](0)
	boom := errors.New("boom")
	out := Map(src, 0, func(in string) ([]string, error) {
		return []string{strings.ToUpper(in)}, nil
	})

	go func() {
		src.Send("a")
		src.Send("b")
		src.Finish(boom)
	}()

	got := collect(t, out)
	if strings.Join(got, ",") != "A,B" {
		t.Fatalf("got %v, want [A B]", got)
	}
	if !errors.Is(out.Err(), boom) {
		t.Fatalf("Err() = %v, want %v", out.Err(), boom)
	}
}

func TestMapStopStopsSource(t *testing.T) {
	src := New[int](0)
	out := Map(src, 0, func(in int) ([]int, error) { return []int{in}, nil })

	out.Stop()
	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("source not stopped after output stopped")
	}
	collect(t, out)
}
