package docker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks connection-level failures: dial, TLS handshake,
	// read or write errors.
	ErrTransport = errors.New("transport failure")
	// ErrProtocolViolation marks a response that does not follow
	// head-then-body order.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrDecode marks a body chunk, line or event that cannot be decoded.
	ErrDecode = errors.New("decode failure")
	// ErrConfiguration marks an endpoint that cannot be used as configured.
	ErrConfiguration = errors.New("configuration error")
	// ErrClientClosed is returned for requests issued after Client.Close.
	ErrClientClosed = errors.New("docker client closed")
)

var (
	ErrClientCertMissing  = fmt.Errorf("client certificate not found: %w", ErrConfiguration)
	ErrClientKeyMissing   = fmt.Errorf("client key not found: %w", ErrConfiguration)
	ErrCACertMissing      = fmt.Errorf("CA certificate not found: %w", ErrConfiguration)
	ErrTLSMaterial        = fmt.Errorf("load TLS material: %w", ErrConfiguration)
	ErrInvalidHostURL     = fmt.Errorf("invalid docker host URL: %w", ErrConfiguration)
	ErrInvalidEnvironment = fmt.Errorf("no usable docker endpoint in environment: %w", ErrConfiguration)
)

// APIError is a non-success status returned by the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("docker api: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("docker api: status %d: %s", e.StatusCode, e.Message)
}
