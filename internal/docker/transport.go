package docker

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/docker/go-connections/tlsconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "dockwatch/internal/docker"

	// readChunkSize is the largest body fragment handed to a handler at once.
	readChunkSize = 32 * 1024
)

// Request is one HTTP/1.1 request. Query parameters are encoded in key
// order so the wire form is stable.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
}

func (r Request) uri() *url.URL {
	u := &url.URL{Path: r.Path}
	if len(r.Query) > 0 {
		q := make(url.Values, len(r.Query))
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u
}

// ResponseHead is the status line and headers of a response.
type ResponseHead struct {
	StatusCode int
	Header     http.Header
}

// ResponseHandler receives the parts of one response in order: OnHead,
// zero or more OnBody, then exactly one of OnEnd or OnError. All calls come
// from a single reader goroutine. Returning an error from OnHead or OnBody
// aborts the connection and is reported back through OnError.
type ResponseHandler interface {
	OnHead(head ResponseHead) error
	OnBody(chunk []byte) error
	OnEnd()
	OnError(err error)
}

// Connector opens one connection per request to a fixed endpoint.
type Connector struct {
	endpoint Endpoint
	tls      *tls.Config
	tracer   trace.Tracer
	dialer   net.Dialer
	readers  sync.WaitGroup
}

// NewConnector validates the endpoint and loads TLS material. Missing or
// unreadable certificate files fail here, before any request is made.
func NewConnector(endpoint Endpoint) (*Connector, error) {
	c := &Connector{
		endpoint: endpoint,
		tracer:   otel.Tracer(tracerName),
	}
	if endpoint.IsUnix() {
		return c, nil
	}
	if endpoint.Host == "" || endpoint.Port <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHostURL, endpoint)
	}

	files := endpoint.TLS
	for _, f := range []struct {
		path    string
		missing error
	}{
		{files.CertFile, ErrClientCertMissing},
		{files.KeyFile, ErrClientKeyMissing},
		{files.CAFile, ErrCACertMissing},
	} {
		if f.path == "" {
			return nil, f.missing
		}
		if _, err := os.Stat(f.path); err != nil {
			return nil, fmt.Errorf("%w: %s", f.missing, f.path)
		}
	}

	cfg, err := tlsconfig.Client(tlsconfig.Options{
		CAFile:             files.CAFile,
		CertFile:           files.CertFile,
		KeyFile:            files.KeyFile,
		ExclusiveRootPools: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTLSMaterial, err)
	}
	cfg.ServerName = endpoint.Host
	c.tls = cfg
	return c, nil
}

// Endpoint returns the endpoint the connector dials.
func (c *Connector) Endpoint() Endpoint {
	return c.endpoint
}

// Do dials a fresh connection, writes req with Connection: close, and
// starts a reader goroutine that feeds the response to h. The returned
// connection belongs to the caller, who closes it to abort the exchange.
// Dial and write failures are returned directly and h is never called.
func (c *Connector) Do(ctx context.Context, req Request, h ResponseHandler) (net.Conn, error) {
	ctx, span := c.tracer.Start(ctx, "docker.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("server.address", c.endpoint.String()),
		))

	conn, err := c.dial(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	httpReq := c.buildRequest(req)
	if err := writeRequest(conn, httpReq); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("%w: write request %s: %v", ErrTransport, req.Path, err)
		endSpan(span, err)
		return nil, err
	}

	c.readers.Add(1)
	go func() {
		defer c.readers.Done()
		err := c.read(conn, httpReq, h, span)
		endSpan(span, err)
	}()
	return conn, nil
}

// Wait blocks until every reader goroutine started by Do has returned.
func (c *Connector) Wait() {
	c.readers.Wait()
}

func (c *Connector) dial(ctx context.Context) (net.Conn, error) {
	if c.endpoint.IsUnix() {
		conn, err := c.dialer.DialContext(ctx, "unix", c.endpoint.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, c.endpoint, err)
		}
		return conn, nil
	}

	d := tls.Dialer{NetDialer: &c.dialer, Config: c.tls}
	conn, err := d.DialContext(ctx, "tcp", c.endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, c.endpoint, err)
	}
	return conn, nil
}

func (c *Connector) buildRequest(req Request) *http.Request {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	header := make(http.Header, len(req.Headers))
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	// Written from Close below; a caller value must not duplicate it.
	header.Del("Connection")

	return &http.Request{
		Method:     method,
		URL:        req.uri(),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Host:       c.endpoint.HostHeader(),
		Close:      true,
	}
}

func writeRequest(conn net.Conn, req *http.Request) error {
	bw := bufio.NewWriter(conn)
	if err := req.Write(bw); err != nil {
		return err
	}
	return bw.Flush()
}

func (c *Connector) read(conn net.Conn, req *http.Request, h ResponseHandler, span trace.Span) error {
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		_ = conn.Close()
		err = fmt.Errorf("%w: read response head: %v", ErrTransport, err)
		h.OnError(err)
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	head := ResponseHead{StatusCode: resp.StatusCode, Header: resp.Header}
	if err := h.OnHead(head); err != nil {
		_ = conn.Close()
		h.OnError(err)
		return err
	}

	buf := make([]byte, readChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := h.OnBody(chunk); err != nil {
				_ = conn.Close()
				h.OnError(err)
				return err
			}
		}
		if rerr == nil {
			continue
		}
		_ = conn.Close()
		if errors.Is(rerr, io.EOF) {
			h.OnEnd()
			return nil
		}
		err := fmt.Errorf("%w: read body: %v", ErrTransport, rerr)
		slog.Debug("Docker response body ended with error.", "path", req.URL.Path, "err", rerr)
		h.OnError(err)
		return err
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
