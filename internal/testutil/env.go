// Package testutil holds helpers for spinning up test servers.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

// ServerConfig returns configuration values for creating a test server.
// This avoids importing the server package directly.
type ServerConfig struct {
	Host       string
	Port       int
	DataPath   string
	ConfigFile string
	Logger     *slog.Logger
}

// NewServerConfig creates configuration for a test server with a unique port.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tempDir := t.TempDir()

	httpPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}

	return ServerConfig{
		Host:       "127.0.0.1",
		Port:       httpPort,
		DataPath:   tempDir + "/data",
		ConfigFile: tempDir + "/config.yaml",
		Logger:     logger,
	}
}

// URL returns the server URL for the given config.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// WaitForServer polls the /health endpoint until the server responds.
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}

// HTTPClient returns an HTTP client for making requests.
func HTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// FindFreePort finds an available TCP port.
func FindFreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StartServer is a helper type for managing server lifecycle in tests.
type StartServer struct {
	Cancel context.CancelFunc
	Done   <-chan error
}

// Stop cancels the server context and waits for shutdown.
func (s *StartServer) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
	if s.Done != nil {
		<-s.Done
	}
}
