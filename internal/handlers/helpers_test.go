package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapters/mock"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv bundles the collaborators every handler needs.
type testEnv struct {
	store     *storage.MemoryStore
	cores     *registry.Registry
	mock      *mock.Adapter
	publisher *capturePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	mockCore := mock.New(true)

	cores := registry.NewRegistry(zap.NewNop(), nil)
	require.NoError(t, cores.Register(context.Background(), "mock", mockCore, true))
	t.Cleanup(func() { _ = cores.Close() })

	return &testEnv{
		store:     store,
		cores:     cores,
		mock:      mockCore,
		publisher: &capturePublisher{},
	}
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []*events.QueuedEvent
}

func (p *capturePublisher) Publish(_ context.Context, event *events.QueuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published() []*events.QueuedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*events.QueuedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// doJSON performs a request against the router and returns the recorder.
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeJSON unmarshals a recorder body into out.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// decodeError unmarshals a wire error body.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) camara.Error {
	t.Helper()
	var ce camara.Error
	decodeJSON(t, w, &ce)
	return ce
}

// knownDevice is a subscriber the mock core resolves.
func knownDevice() *camara.Device {
	return &camara.Device{PhoneNumber: "+33600000001"}
}
