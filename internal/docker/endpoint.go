package docker

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/docker/client"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "key.pem"
	caFileName   = "ca.pem"
)

// TLSFiles locates the PEM material for a mutually authenticated endpoint.
type TLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Endpoint is where the daemon listens: a TCP host and port secured with
// TLS, or a local unix socket.
type Endpoint struct {
	Host       string
	Port       int
	TLS        TLSFiles
	SocketPath string
}

// TCPEndpoint returns a TLS-over-TCP endpoint.
func TCPEndpoint(host string, port int, files TLSFiles) Endpoint {
	return Endpoint{Host: host, Port: port, TLS: files}
}

// UnixEndpoint returns a unix socket endpoint.
func UnixEndpoint(path string) Endpoint {
	return Endpoint{SocketPath: path}
}

// IsUnix reports whether the endpoint is a unix socket.
func (e Endpoint) IsUnix() bool {
	return e.SocketPath != ""
}

// Address returns the dial address.
func (e Endpoint) Address() string {
	if e.IsUnix() {
		return e.SocketPath
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// HostHeader returns the value written in the Host request header.
func (e Endpoint) HostHeader() string {
	if e.IsUnix() || e.Host == "" {
		return "localhost"
	}
	return e.Host
}

func (e Endpoint) String() string {
	if e.IsUnix() {
		return "unix://" + e.SocketPath
	}
	return "tcp://" + e.Address()
}

// CertificatesFrom returns the conventional file names inside a
// DOCKER_CERT_PATH directory.
func CertificatesFrom(dir string) TLSFiles {
	return TLSFiles{
		CertFile: filepath.Join(dir, certFileName),
		KeyFile:  filepath.Join(dir, keyFileName),
		CAFile:   filepath.Join(dir, caFileName),
	}
}

// DefaultSocketPath is the daemon socket used when the environment names
// no endpoint.
var DefaultSocketPath = defaultSocketPath()

func defaultSocketPath() string {
	u, err := client.ParseHostURL(client.DefaultDockerHost)
	if err != nil || u.Scheme != "unix" {
		return "/var/run/docker.sock"
	}
	return u.Host
}

// EndpointFromEnv selects an endpoint the way the docker CLI does:
// DOCKER_TLS_VERIFY with DOCKER_HOST and DOCKER_CERT_PATH selects TLS over
// TCP, a unix:// DOCKER_HOST selects that socket, and otherwise the default
// socket is used if it exists. lookup is usually os.LookupEnv.
func EndpointFromEnv(lookup func(string) (string, bool)) (Endpoint, error) {
	host, _ := lookup(client.EnvOverrideHost)
	host = strings.TrimSpace(host)
	_, tlsVerify := lookup(client.EnvTLSVerify)
	certPath, _ := lookup(client.EnvOverrideCertPath)

	if tlsVerify && host != "" && certPath != "" {
		return ParseEndpoint(host, CertificatesFrom(certPath))
	}
	if host != "" {
		if strings.HasPrefix(host, "unix://") {
			return ParseEndpoint(host, TLSFiles{})
		}
		return Endpoint{}, fmt.Errorf("%w: %s requires %s and %s", ErrInvalidEnvironment,
			host, client.EnvTLSVerify, client.EnvOverrideCertPath)
	}

	if _, err := os.Stat(DefaultSocketPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Endpoint{}, fmt.Errorf("%w: %s does not exist", ErrInvalidEnvironment, DefaultSocketPath)
		}
		return Endpoint{}, fmt.Errorf("%w: stat %s: %v", ErrInvalidEnvironment, DefaultSocketPath, err)
	}
	return UnixEndpoint(DefaultSocketPath), nil
}

// ParseEndpoint parses a docker host URL (tcp://host:port or
// unix:///path). files is used for tcp hosts.
func ParseEndpoint(host string, files TLSFiles) (Endpoint, error) {
	u, err := client.ParseHostURL(host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidHostURL, err)
	}

	switch u.Scheme {
	case "unix":
		return UnixEndpoint(u.Host), nil
	case "tcp":
		hostname, portText, err := net.SplitHostPort(u.Host)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %s: %v", ErrInvalidHostURL, host, err)
		}
		port, err := strconv.Atoi(portText)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: %s: invalid port %q", ErrInvalidHostURL, host, portText)
		}
		if hostname == "" {
			return Endpoint{}, fmt.Errorf("%w: %s: empty host", ErrInvalidHostURL, host)
		}
		return TCPEndpoint(hostname, port, files), nil
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidHostURL, u.Scheme)
	}
}
