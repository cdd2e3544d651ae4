package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"dockwatch/internal/stream"
)

var errStreamStopped = errors.New("stream consumer stopped")

// Response is a fully buffered one-shot response.
type Response struct {
	Head ResponseHead
	Body string
}

type responseResult struct {
	resp *Response
	err  error
}

// responseCollector buffers one response and completes exactly once.
type responseCollector struct {
	head   *ResponseHead
	body   bytes.Buffer
	once   sync.Once
	result chan responseResult
}

func newResponseCollector() *responseCollector {
	return &responseCollector{result: make(chan responseResult, 1)}
}

func (c *responseCollector) OnHead(head ResponseHead) error {
	if c.head != nil {
		return fmt.Errorf("%w: second response head", ErrProtocolViolation)
	}
	c.head = &head
	return nil
}

func (c *responseCollector) OnBody(chunk []byte) error {
	if c.head == nil {
		return fmt.Errorf("%w: body chunk before response head", ErrProtocolViolation)
	}
	c.body.Write(chunk)
	return nil
}

func (c *responseCollector) OnEnd() {
	if c.head == nil {
		c.complete(responseResult{err: fmt.Errorf("%w: response ended without head", ErrProtocolViolation)})
		return
	}
	if !utf8.Valid(c.body.Bytes()) {
		c.complete(responseResult{err: fmt.Errorf("%w: response body is not valid UTF-8", ErrDecode)})
		return
	}
	c.complete(responseResult{resp: &Response{Head: *c.head, Body: c.body.String()}})
}

func (c *responseCollector) OnError(err error) {
	c.complete(responseResult{err: err})
}

func (c *responseCollector) complete(r responseResult) {
	c.once.Do(func() { c.result <- r })
}

// wait blocks for the single result. Cancelling ctx closes conn.
func (c *responseCollector) wait(ctx context.Context, conn net.Conn) (*Response, error) {
	select {
	case r := <-c.result:
		return r.resp, r.err
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	}
}

type headResult struct {
	head ResponseHead
	err  error
}

// streamCollector surfaces the head as soon as it arrives and then pushes
// raw body chunks until the body ends, the peer closes, or it is closed.
type streamCollector struct {
	head     chan headResult
	headOnce sync.Once
	gotHead  bool

	body    *stream.Stream[[]byte]
	closing atomic.Bool
	ended   atomic.Bool
	onDone  func()
}

func newStreamCollector(onDone func()) *streamCollector {
	return &streamCollector{
		head:   make(chan headResult, 1),
		body:   stream.New[[]byte](0),
		onDone: onDone,
	}
}

func (c *streamCollector) OnHead(head ResponseHead) error {
	if c.gotHead {
		return fmt.Errorf("%w: second response head", ErrProtocolViolation)
	}
	c.gotHead = true
	c.headOnce.Do(func() { c.head <- headResult{head: head} })
	return nil
}

func (c *streamCollector) OnBody(chunk []byte) error {
	if !c.gotHead {
		return fmt.Errorf("%w: body chunk before response head", ErrProtocolViolation)
	}
	if !c.body.Send(chunk) {
		return errStreamStopped
	}
	return nil
}

func (c *streamCollector) OnEnd() {
	if !c.gotHead {
		c.OnError(fmt.Errorf("%w: response ended without head", ErrProtocolViolation))
		return
	}
	c.finish(nil)
}

func (c *streamCollector) OnError(err error) {
	c.headOnce.Do(func() { c.head <- headResult{err: err} })
	if c.closing.Load() || errors.Is(err, errStreamStopped) {
		err = nil
	}
	c.finish(err)
}

func (c *streamCollector) finish(err error) {
	if c.ended.Swap(true) {
		return
	}
	c.body.Finish(err)
	if c.onDone != nil {
		c.onDone()
	}
}

// close marks the shutdown as intentional so the subscriber observes
// completion rather than the resulting read error.
func (c *streamCollector) close(conn net.Conn) error {
	c.closing.Store(true)
	c.body.Stop()
	return conn.Close()
}

func (c *streamCollector) waitHead(ctx context.Context, conn net.Conn) (ResponseHead, error) {
	select {
	case r := <-c.head:
		return r.head, r.err
	case <-ctx.Done():
		_ = c.close(conn)
		return ResponseHead{}, ctx.Err()
	}
}

// textDecoder turns raw chunks into text, carrying an incomplete trailing
// UTF-8 sequence over to the next chunk.
type textDecoder struct {
	pending []byte
}

func (d *textDecoder) decode(chunk []byte) ([]string, error) {
	data := chunk
	if len(d.pending) > 0 {
		data = append(d.pending, chunk...)
		d.pending = nil
	}

	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if !utf8.Valid(data[:cut]) {
		return nil, fmt.Errorf("%w: body chunk is not valid UTF-8", ErrDecode)
	}
	if cut < len(data) {
		d.pending = append([]byte(nil), data[cut:]...)
	}
	if cut == 0 {
		return nil, nil
	}
	return []string{string(data[:cut])}, nil
}

// DecodeText converts a raw chunk stream into a text chunk stream. A chunk
// that is not valid UTF-8 terminates it with ErrDecode.
func DecodeText(src *stream.Stream[[]byte]) *stream.Stream[string] {
	var d textDecoder
	return stream.Map(src, 0, d.decode)
}
