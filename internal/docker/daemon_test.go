package docker

import (
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/sockets"

	"dockwatch/internal/stream"
)

// listenUnix opens a unix socket listener inside the test's temp dir.
func listenUnix(t *testing.T) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker.sock")
	l, err := sockets.NewUnixSocketWithOpts(path, sockets.WithChmod(0o600))
	if err != nil {
		t.Fatalf("listen on %s: %v", path, err)
	}
	return l, path
}

// fakeDaemon serves h on a unix socket and returns a client for it.
func fakeDaemon(t *testing.T, h http.Handler) *Client {
	t.Helper()
	l, path := listenUnix(t)
	srv := &http.Server{Handler: h}
	go func() { _ = srv.Serve(l) }()

	c, err := NewClient(UnixEndpoint(path))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		_ = srv.Close()
	})
	return c
}

// rawDaemon accepts one connection and hands it to serve.
func rawDaemon(t *testing.T, serve func(net.Conn)) *Client {
	t.Helper()
	l, path := listenUnix(t)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()

	c, err := NewClient(UnixEndpoint(path))
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		_ = l.Close()
	})
	return c
}

func drain[T any](t *testing.T, s *stream.Stream[T]) []T {
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
			t.Fatalf("timed out after %d values", len(got))
			return nil
		}
	}
}

func next[T any](t *testing.T, s *stream.Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		if !ok {
			t.Fatalf("stream finished early: %v", s.Err())
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
