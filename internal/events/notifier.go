package events

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxRetries  = 3

	// Exponential backoff bounds between attempts.
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second

	// CloudEvents structured mode, as CAMARA event subscriptions expect.
	cloudEventsContentType = "application/cloudevents+json"
)

// NotifierConfig configures webhook delivery.
type NotifierConfig struct {
	HTTPTimeout time.Duration
	MaxRetries  int

	// EnableMTLS presents a client certificate to consumer sinks.
	EnableMTLS     bool
	ClientCertFile string
	ClientKeyFile  string

	// CACertFile adds a CA for verifying sink certificates.
	CACertFile string

	// InsecureSkipVerify disables certificate verification. Test use only.
	InsecureSkipVerify bool
}

// DefaultNotifierConfig returns the production defaults.
func DefaultNotifierConfig() *NotifierConfig {
	return &NotifierConfig{
		HTTPTimeout: defaultHTTPTimeout,
		MaxRetries:  defaultMaxRetries,
	}
}

// WebhookNotifier delivers CloudEvents to consumer sinks over HTTP.
// Each sink gets its own circuit breaker so one dead consumer does not
// burn retry budget for the others.
type WebhookNotifier struct {
	config     *NotifierConfig
	httpClient *http.Client
	logger     *zap.Logger
	tracker    DeliveryTracker

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewWebhookNotifier creates a notifier. The tracker may be nil, in
// which case delivery records are not persisted.
func NewWebhookNotifier(config *NotifierConfig, tracker DeliveryTracker, logger *zap.Logger) (*WebhookNotifier, error) {
	if config == nil {
		config = DefaultNotifierConfig()
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if config.InsecureSkipVerify {
		logger.Warn("TLS verification disabled for webhook delivery, do not run this in production",
			zap.Bool("insecure_skip_verify", true))
	}

	httpClient, err := newHTTPClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &WebhookNotifier{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		tracker:    tracker,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

func newHTTPClient(config *NotifierConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: config.InsecureSkipVerify,
	}

	if config.EnableMTLS && config.ClientCertFile != "" && config.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.ClientCertFile, config.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if config.CACertFile != "" {
		pem, err := os.ReadFile(config.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: config.HTTPTimeout,
	}, nil
}

// Notify posts the event to the target's sink once, no retries.
func (n *WebhookNotifier) Notify(ctx context.Context, event *Event, target Target) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if target.Sink == "" {
		return errors.New("target sink cannot be empty")
	}
	return n.post(ctx, target.Sink, event)
}

// NotifyWithRetry delivers with exponential backoff and records every
// attempt with the tracker. The returned delivery describes the final
// state whether or not an error is returned.
func (n *WebhookNotifier) NotifyWithRetry(ctx context.Context, event *Event, target Target) (*NotificationDelivery, error) {
	if event == nil {
		return nil, errors.New("event cannot be nil")
	}
	if target.Sink == "" {
		return nil, errors.New("target sink cannot be empty")
	}

	delivery := &NotificationDelivery{
		ID:             uuid.New().String(),
		EventID:        event.ID,
		SubscriptionID: target.SubscriptionID,
		SinkURL:        target.Sink,
		Status:         DeliveryStatusPending,
		MaxAttempts:    n.config.MaxRetries,
		CreatedAt:      time.Now().UTC(),
	}

	breaker := n.breakerFor(target.Sink)
	eventType := string(event.Type)
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		delivery.Attempts = attempt
		delivery.LastAttemptAt = time.Now().UTC()
		delivery.Status = DeliveryStatusDelivering
		n.track(ctx, delivery)

		start := time.Now()
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, n.post(ctx, target.Sink, event)
		})
		delivery.ResponseTime = time.Since(start).Milliseconds()
		RecordSinkResponseTime(eventType, strconv.Itoa(delivery.HTTPStatusCode), float64(delivery.ResponseTime))

		if err == nil {
			delivery.Status = DeliveryStatusDelivered
			delivery.HTTPStatusCode = http.StatusOK
			delivery.CompletedAt = time.Now().UTC()
			n.track(ctx, delivery)
			RecordNotificationDelivered("success", eventType, time.Since(delivery.CreatedAt).Seconds(), attempt)

			n.logger.Info("notification delivered",
				zap.String("delivery_id", delivery.ID),
				zap.String("subscription_id", target.SubscriptionID),
				zap.String("sink", target.Sink),
				zap.Int("attempts", attempt),
				zap.Int64("response_time_ms", delivery.ResponseTime),
			)
			return delivery, nil
		}

		delivery.LastError = err.Error()

		if attempt >= n.config.MaxRetries {
			delivery.Status = DeliveryStatusFailed
			delivery.CompletedAt = time.Now().UTC()
			n.track(ctx, delivery)
			RecordNotificationDelivered("failed", eventType, time.Since(delivery.CreatedAt).Seconds(), attempt)

			n.logger.Error("notification delivery exhausted retries",
				zap.String("delivery_id", delivery.ID),
				zap.String("subscription_id", target.SubscriptionID),
				zap.String("sink", target.Sink),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return delivery, fmt.Errorf("delivery failed after %d attempts: %w", attempt, err)
		}

		delivery.Status = DeliveryStatusRetrying
		delivery.NextAttemptAt = time.Now().Add(backoff)
		n.track(ctx, delivery)

		n.logger.Warn("notification attempt failed, will retry",
			zap.String("delivery_id", delivery.ID),
			zap.String("sink", target.Sink),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", n.config.MaxRetries),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			delivery.Status = DeliveryStatusFailed
			delivery.CompletedAt = time.Now().UTC()
			n.track(ctx, delivery)
			return delivery, fmt.Errorf("notification delivery canceled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// track persists the delivery record when a tracker is configured.
// Tracking failures are logged, never propagated: the delivery itself
// matters more than its audit trail.
func (n *WebhookNotifier) track(ctx context.Context, delivery *NotificationDelivery) {
	if n.tracker == nil {
		return
	}
	if err := n.tracker.Track(ctx, delivery); err != nil {
		n.logger.Warn("failed to track delivery",
			zap.String("delivery_id", delivery.ID),
			zap.Error(err),
		)
	}
}

// post sends the CloudEvents envelope to the sink.
func (n *WebhookNotifier) post(ctx context.Context, sinkURL string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sinkURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", cloudEventsContentType)
	req.Header.Set("User-Agent", "camweave/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// breakerFor returns the sink's circuit breaker, creating it on first use.
func (n *WebhookNotifier) breakerFor(sinkURL string) *gobreaker.CircuitBreaker {
	n.mu.Lock()
	defer n.mu.Unlock()

	if cb, ok := n.breakers[sinkURL]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sinkURL,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.logger.Info("sink circuit breaker state changed",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			RecordCircuitBreakerState(name, breakerStateValue(to))
		},
	})
	n.breakers[sinkURL] = cb
	return cb
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Close releases idle connections.
func (n *WebhookNotifier) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}
