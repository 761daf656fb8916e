// Package workers provides background workers for the gateway. The expiry
// worker sweeps stored QoD sessions and device-status subscriptions past
// their expiry time, flips them to their terminal state, and publishes the
// corresponding lifecycle events to the notification pipeline.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/observability"
	"github.com/piwi3910/camweave/internal/storage"
)

const (
	// DefaultScanInterval is the default time between expiry sweeps.
	DefaultScanInterval = 30 * time.Second
)

// Publisher delivers queued events to the notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, event *events.QueuedEvent) error
}

// ExpiryWorker periodically scans the store for expired records.
type ExpiryWorker struct {
	// store is the session and subscription registry.
	store storage.Store

	// publisher feeds lifecycle events into the notification pipeline.
	publisher Publisher

	// logger provides structured logging.
	logger *zap.Logger

	// metrics records scan outcomes. May be nil.
	metrics *observability.Metrics

	// interval is the time between sweeps.
	interval time.Duration

	// stopCh is used to signal worker shutdown.
	stopCh chan struct{}

	// wg tracks the scan goroutine.
	wg sync.WaitGroup
}

// ExpiryConfig holds configuration for creating an ExpiryWorker.
type ExpiryConfig struct {
	// Store is the session and subscription registry.
	Store storage.Store

	// Publisher feeds lifecycle events into the notification pipeline.
	Publisher Publisher

	// Logger is the logger to use.
	Logger *zap.Logger

	// Metrics records scan outcomes. Optional.
	Metrics *observability.Metrics

	// Interval is the time between sweeps (default: 30s).
	Interval time.Duration
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(cfg *ExpiryConfig) (*ExpiryWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultScanInterval
	}

	return &ExpiryWorker{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called. A sweep runs immediately on start, then on every interval tick.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.logger.Info("starting expiry worker",
		zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the expiry worker and waits for the sweep loop to finish.
func (w *ExpiryWorker) Stop() error {
	w.logger.Info("stopping expiry worker")

	close(w.stopCh)
	w.wg.Wait()

	w.logger.Info("expiry worker stopped")
	return nil
}

func (w *ExpiryWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one full expiry pass over sessions and subscriptions.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	now := time.Now()
	w.sweepSessions(ctx, now)
	w.sweepSubscriptions(ctx, now, storage.SubscriptionReachability)
	w.sweepSubscriptions(ctx, now, storage.SubscriptionRoaming)
	w.sweepInfluenceGauge(ctx)
}

// sweepSessions flips sessions past their expiry to UNAVAILABLE with
// DURATION_EXPIRED and publishes a qos-status-changed event to the sink.
func (w *ExpiryWorker) sweepSessions(ctx context.Context, now time.Time) {
	start := time.Now()

	sessions, err := w.store.ListSessions(ctx)
	if err != nil {
		w.logger.Error("failed to list sessions for expiry scan",
			zap.Error(err))
		if w.metrics != nil {
			w.metrics.RecordExpiryScan("qod_session", time.Since(start), 0, err)
		}
		return
	}

	expired := 0
	active := 0
	for _, rec := range sessions {
		if rec.Terminal() {
			continue
		}
		if rec.ExpiresAt.After(now) {
			active++
			continue
		}

		rec.QosStatus = camara.QosStatusUnavailable
		rec.StatusInfo = camara.StatusInfoDurationExpired
		if err := w.store.UpdateSession(ctx, rec); err != nil {
			w.logger.Error("failed to expire session",
				zap.String("session_id", rec.SessionID),
				zap.Error(err))
			continue
		}
		expired++

		w.logger.Info("session expired",
			zap.String("session_id", rec.SessionID),
			zap.Time("expires_at", rec.ExpiresAt))

		if rec.Sink == "" {
			continue
		}
		if err := w.publisher.Publish(ctx, events.NewQosStatusChanged(rec)); err != nil {
			w.logger.Error("failed to publish qos status change",
				zap.String("session_id", rec.SessionID),
				zap.Error(err))
		}
	}

	if w.metrics != nil {
		w.metrics.RecordExpiryScan("qod_session", time.Since(start), expired, nil)
		w.metrics.SetQoDSessionCount(active)
	}
}

// sweepSubscriptions removes subscriptions past their expiry and publishes
// a subscription-ends event with reason SUBSCRIPTION_EXPIRED.
func (w *ExpiryWorker) sweepSubscriptions(ctx context.Context, now time.Time, kind storage.SubscriptionKind) {
	start := time.Now()

	subs, err := w.store.ListSubscriptions(ctx, kind)
	if err != nil {
		w.logger.Error("failed to list subscriptions for expiry scan",
			zap.String("kind", string(kind)),
			zap.Error(err))
		if w.metrics != nil {
			w.metrics.RecordExpiryScan("device_status_subscription", time.Since(start), 0, err)
		}
		return
	}

	expired := 0
	for _, sub := range subs {
		if sub.ExpiresAt.After(now) {
			continue
		}

		// Publish before deleting so the sink is still known to be the
		// subscription's own.
		if err := w.publisher.Publish(ctx, events.NewSubscriptionEnds(sub, events.TerminationReasonExpired)); err != nil {
			w.logger.Error("failed to publish subscription-ends event",
				zap.String("subscription_id", sub.SubscriptionID),
				zap.Error(err))
		}

		if err := w.store.DeleteSubscription(ctx, kind, sub.SubscriptionID); err != nil {
			w.logger.Error("failed to delete expired subscription",
				zap.String("subscription_id", sub.SubscriptionID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		expired++

		w.logger.Info("subscription expired",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.String("kind", string(kind)),
			zap.Time("expires_at", sub.ExpiresAt))
	}

	if w.metrics != nil {
		w.metrics.RecordExpiryScan("device_status_subscription", time.Since(start), expired, nil)
	}
}

// sweepInfluenceGauge refreshes the active traffic influence gauge. Traffic
// influence resources carry no expiry, so this pass only counts them.
func (w *ExpiryWorker) sweepInfluenceGauge(ctx context.Context) {
	if w.metrics == nil {
		return
	}

	influences, err := w.store.ListInfluences(ctx)
	if err != nil {
		w.logger.Error("failed to list traffic influences",
			zap.Error(err))
		return
	}

	active := 0
	for _, rec := range influences {
		if !rec.Terminal() {
			active++
		}
	}
	w.metrics.SetTrafficInfluenceCount(active)
}
