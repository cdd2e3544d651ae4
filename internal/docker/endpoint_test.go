package docker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestEndpointFromEnv(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "docker.sock")
	if err := os.WriteFile(socket, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	prev := DefaultSocketPath
	DefaultSocketPath = socket
	t.Cleanup(func() { DefaultSocketPath = prev })

	testCases := []struct {
		name    string
		env     map[string]string
		want    Endpoint
		wantErr error
	}{
		{
			name: "tls over tcp",
			env: map[string]string{
				"DOCKER_TLS_VERIFY": "1",
				"DOCKER_HOST":       "tcp://192.168.99.100:2376",
				"DOCKER_CERT_PATH":  "/certs",
			},
			want: TCPEndpoint("192.168.99.100", 2376, TLSFiles{
				CertFile: "/certs/cert.pem",
				KeyFile:  "/certs/key.pem",
				CAFile:   "/certs/ca.pem",
			}),
		},
		{
			name: "unix host",
			env:  map[string]string{"DOCKER_HOST": "unix:///run/user/1000/docker.sock"},
			want: UnixEndpoint("/run/user/1000/docker.sock"),
		},
		{
			name: "default socket",
			env:  map[string]string{},
			want: UnixEndpoint(socket),
		},
		{
			name:    "tcp without tls settings",
			env:     map[string]string{"DOCKER_HOST": "tcp://10.0.0.1:2375"},
			wantErr: ErrInvalidEnvironment,
		},
		{
			name: "tcp without port",
			env: map[string]string{
				"DOCKER_TLS_VERIFY": "1",
				"DOCKER_HOST":       "tcp://10.0.0.1",
				"DOCKER_CERT_PATH":  "/certs",
			},
			wantErr: ErrInvalidHostURL,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EndpointFromEnv(lookupFrom(tc.env))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("EndpointFromEnv() error = %v, want %v", err, tc.wantErr)
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("EndpointFromEnv() error = %v, want it to be a configuration error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EndpointFromEnv() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("EndpointFromEnv() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEndpointFromEnvWithoutSocket(t *testing.T) {
	prev := DefaultSocketPath
	DefaultSocketPath = filepath.Join(t.TempDir(), "missing.sock")
	t.Cleanup(func() { DefaultSocketPath = prev })

	if _, err := EndpointFromEnv(lookupFrom(nil)); !errors.Is(err, ErrInvalidEnvironment) {
		t.Fatalf("EndpointFromEnv() error = %v, want ErrInvalidEnvironment", err)
	}
}

func TestEndpointHostHeader(t *testing.T) {
	if got := UnixEndpoint("/var/run/docker.sock").HostHeader(); got != "localhost" {
		t.Fatalf("unix HostHeader() = %q, want localhost", got)
	}
	if got := TCPEndpoint("docker.example", 2376, TLSFiles{}).HostHeader(); got != "docker.example" {
		t.Fatalf("tcp HostHeader() = %q, want docker.example", got)
	}
	if got := TCPEndpoint("::1", 2376, TLSFiles{}).Address(); got != "[::1]:2376" {
		t.Fatalf("Address() = %q, want [::1]:2376", got)
	}
}
