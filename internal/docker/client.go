package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"

	"dockwatch/internal/stream"
)

const (
	// DefaultAPIVersion is the Engine API version requested when none is
	// configured.
	DefaultAPIVersion = "v1.41"

	userAgent = "dockwatch/1.0 (docker-engine-api)"
)

// Client issues Engine API requests over a Connector and owns every
// long-lived stream it opens. Close releases them all.
type Client struct {
	connector  *Connector
	apiVersion string

	mu      sync.Mutex
	closed  bool
	streams map[*LiveStream]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion sets the API version path prefix, for example "v1.41".
// An empty version keeps the default.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		version = strings.TrimSpace(version)
		if version == "" {
			return
		}
		if !strings.HasPrefix(version, "v") {
			version = "v" + version
		}
		c.apiVersion = version
	}
}

// NewClient builds a client for endpoint. TLS material is loaded here.
func NewClient(endpoint Endpoint, opts ...Option) (*Client, error) {
	connector, err := NewConnector(endpoint)
	if err != nil {
		return nil, err
	}
	c := &Client{
		connector:  connector,
		apiVersion: DefaultAPIVersion,
		streams:    make(map[*LiveStream]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the daemon endpoint.
func (c *Client) Endpoint() Endpoint {
	return c.connector.Endpoint()
}

// APIVersion returns the version prefix used in request paths.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// Close stops accepting requests, closes every open stream and waits for
// all connection readers to exit. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := make([]*LiveStream, 0, len(c.streams))
	for s := range c.streams {
		open = append(open, s)
	}
	c.mu.Unlock()

	for _, s := range open {
		_ = s.Close()
	}
	c.connector.Wait()
	slog.Debug("Docker client closed.", "endpoint", c.connector.Endpoint().String(), "streams", len(open))
	return nil
}

func (c *Client) path(format string, args ...any) string {
	return "/" + c.apiVersion + fmt.Sprintf(format, args...)
}

func (c *Client) request(path string, query map[string]string) Request {
	return Request{
		Method:  http.MethodGet,
		Path:    path,
		Query:   query,
		Headers: map[string]string{"User-Agent": userAgent},
	}
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// get runs a one-shot request and returns the buffered response.
func (c *Client) get(ctx context.Context, req Request) (*Response, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	collector := newResponseCollector()
	conn, err := c.connector.Do(ctx, req, collector)
	if err != nil {
		return nil, err
	}
	resp, err := collector.wait(ctx, conn)
	_ = conn.Close()
	return resp, err
}

// open starts a long-lived request and returns once the head has arrived.
func (c *Client) open(ctx context.Context, req Request) (*LiveStream, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	s := &LiveStream{client: c}
	collector := newStreamCollector(s.release)
	s.collector = collector

	conn, err := c.connector.Do(ctx, req, collector)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = collector.close(conn)
		return nil, ErrClientClosed
	}
	c.streams[s] = struct{}{}
	if collector.ended.Load() {
		delete(c.streams, s)
	}
	c.mu.Unlock()

	head, err := collector.waitHead(ctx, conn)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.head = head
	return s, nil
}

func (c *Client) forget(s *LiveStream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

// OpenStreams reports how many long-lived streams are still registered.
func (c *Client) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// apiError converts a non-success response into an *APIError, using the
// daemon's JSON error message when present.
func apiError(resp *Response) error {
	e := &APIError{StatusCode: resp.Head.StatusCode}
	var body types.ErrorResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err == nil {
		e.Message = body.Message
	}
	return e
}

// LiveStream is an open long-lived response. The body is consumed through
// Lines; calling Lines again returns the same stream.
type LiveStream struct {
	client    *Client
	conn      net.Conn
	head      ResponseHead
	collector *streamCollector
	demux     bool

	linesOnce sync.Once
	lines     *stream.Stream[string]

	closeOnce   sync.Once
	releaseOnce sync.Once
}

// Head returns the response head.
func (s *LiveStream) Head() ResponseHead {
	return s.head
}

// Lines returns the body as a stream of lines.
func (s *LiveStream) Lines() *stream.Stream[string] {
	s.linesOnce.Do(func() {
		raw := s.collector.body
		if s.demux {
			raw = Demultiplex(raw)
		}
		s.lines = SplitLines(DecodeText(raw))
	})
	return s.lines
}

// Active reports whether the stream is neither closed nor ended.
func (s *LiveStream) Active() bool {
	return !s.collector.closing.Load() && !s.collector.ended.Load()
}

// Close releases the connection. The subscriber observes completion.
func (s *LiveStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.collector.close(s.conn)
		s.release()
	})
	return err
}

func (s *LiveStream) release() {
	s.releaseOnce.Do(func() { s.client.forget(s) })
}

// EventStream is the daemon's lifecycle event feed.
type EventStream struct {
	live       *LiveStream
	eventsOnce sync.Once
	events     *stream.Stream[Event]
}

// Events returns the decoded event stream. Calling it again returns the
// same stream.
func (s *EventStream) Events() *stream.Stream[Event] {
	s.eventsOnce.Do(func() {
		s.events = DecodeEvents(s.live.Lines())
	})
	return s.events
}

// Active reports whether the underlying connection is still open.
func (s *EventStream) Active() bool {
	return s.live.Active()
}

// Close releases the connection.
func (s *EventStream) Close() error {
	return s.live.Close()
}
