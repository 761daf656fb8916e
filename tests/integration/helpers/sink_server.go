//go:build integration
// +build integration

package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// ReceivedEvent is a CloudEvents envelope captured by the sink server.
type ReceivedEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	SpecVersion string          `json:"specversion"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`

	// ReceivedAt is set by the server on arrival
	ReceivedAt time.Time `json:"-"`
}

// SinkServer is a test HTTP server that plays the role of a notification
// sink and captures every CloudEvent the gateway delivers to it.
type SinkServer struct {
	server     *httptest.Server
	events     []ReceivedEvent
	mu         sync.RWMutex
	notifyChan chan ReceivedEvent
	t          *testing.T
}

// NewSinkServer creates a sink capture server.
func NewSinkServer(t *testing.T) *SinkServer {
	t.Helper()

	ss := &SinkServer{
		events:     make([]ReceivedEvent, 0),
		notifyChan: make(chan ReceivedEvent, 100),
		t:          t,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", ss.handleNotification)

	ss.server = httptest.NewServer(mux)
	t.Cleanup(ss.Close)

	return ss
}

func (ss *SinkServer) handleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event ReceivedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		ss.t.Logf("failed to decode notification: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	event.ReceivedAt = time.Now()

	ss.mu.Lock()
	ss.events = append(ss.events, event)
	ss.mu.Unlock()

	select {
	case ss.notifyChan <- event:
	default:
		ss.t.Logf("notification channel full, dropping event %s", event.ID)
	}

	ss.t.Logf("received notification: type=%s id=%s", event.Type, event.ID)
	w.WriteHeader(http.StatusNoContent)
}

// URL returns the sink endpoint URL.
func (ss *SinkServer) URL() string {
	return ss.server.URL + "/notifications"
}

// Events returns a copy of all captured events.
func (ss *SinkServer) Events() []ReceivedEvent {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	result := make([]ReceivedEvent, len(ss.events))
	copy(result, ss.events)
	return result
}

// WaitForEvent waits for the next event within the timeout.
// Returns nil on timeout.
func (ss *SinkServer) WaitForEvent(timeout time.Duration) *ReceivedEvent {
	select {
	case event := <-ss.notifyChan:
		return &event
	case <-time.After(timeout):
		ss.t.Logf("timeout waiting for notification after %v", timeout)
		return nil
	}
}

// Clear drops all captured events.
func (ss *SinkServer) Clear() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.events = ss.events[:0]

	for {
		select {
		case <-ss.notifyChan:
		default:
			return
		}
	}
}

// Close closes the sink server.
func (ss *SinkServer) Close() {
	if ss.server != nil {
		ss.server.Close()
	}
}
