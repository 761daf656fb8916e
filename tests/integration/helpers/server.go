//go:build integration
// +build integration

package helpers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapters/mock"
	"github.com/piwi3910/camweave/internal/config"
	"github.com/piwi3910/camweave/internal/handlers"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/server"
	"github.com/piwi3910/camweave/internal/storage"
)

// TestServer wraps an HTTP test server running the full gateway router
// against the mock core.
type TestServer struct {
	Server *httptest.Server
	Store  storage.Store
	Cores  *registry.Registry
	Config *config.Config
}

// NewTestServer creates a gateway test server backed by the given store.
// The mock core is registered as the default core under the name "mock".
func NewTestServer(t *testing.T, store storage.Store, publisher handlers.Publisher) *TestServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Server.GinMode = "test"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Cores = map[string]config.CoreConfig{
		"mock": {Type: config.CoreTypeMock, Default: true},
	}
	cfg.Network.HomeMcc = "001"
	cfg.Network.HomeMnc = "06"
	cfg.SimSwap.MonitoredDays = 120
	cfg.Security.SecurityHeadersEnabled = true
	cfg.Validation.Enabled = false

	logger := zap.NewNop()

	cores := registry.NewRegistry(logger, nil)
	if err := cores.Register(context.Background(), "mock", mock.New(true), true); err != nil {
		t.Fatalf("failed to register mock core: %v", err)
	}

	srv, err := server.New(cfg, &server.Dependencies{
		Store:     store,
		Cores:     cores,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		ts.Close()
		if err := cores.Close(); err != nil {
			t.Logf("failed to close core registry: %v", err)
		}
	})

	return &TestServer{
		Server: ts,
		Store:  store,
		Cores:  cores,
		Config: cfg,
	}
}

// URL returns the base URL of the test server.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}
