package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Processor orchestrates the notification flow. It consumes queued events,
// resolves their delivery targets (a direct sink or the set of matching
// device-status subscriptions), and delivers notifications with retry.
type Processor struct {
	queue           Queue
	filter          Filter
	notifier        Notifier
	deliveryTracker DeliveryTracker
	logger          *zap.Logger
	workers         int
	wg              sync.WaitGroup
	stopChannel     chan struct{}
}

// ProcessorConfig holds configuration for the event processor.
type ProcessorConfig struct {
	// Workers is the number of concurrent notification delivery workers
	Workers int
}

// DefaultProcessorConfig returns a ProcessorConfig with sensible defaults.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		Workers: 5,
	}
}

// NewProcessor creates a new event processor.
func NewProcessor(
	queue Queue,
	filter Filter,
	notifier Notifier,
	deliveryTracker DeliveryTracker,
	logger *zap.Logger,
	config *ProcessorConfig,
) *Processor {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if filter == nil {
		panic("filter cannot be nil")
	}
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if config == nil {
		config = DefaultProcessorConfig()
	}

	return &Processor{
		queue:           queue,
		filter:          filter,
		notifier:        notifier,
		deliveryTracker: deliveryTracker,
		logger:          logger,
		workers:         config.Workers,
		stopChannel:     make(chan struct{}),
	}
}

// Publish queues an event for asynchronous delivery.
func (p *Processor) Publish(ctx context.Context, event *QueuedEvent) error {
	return p.queue.Publish(ctx, event)
}

// Start starts the event processor.
// It launches the queue consumers and notification workers.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("starting event processor",
		zap.Int("workers", p.workers),
	)

	// Start notification workers
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.notificationWorker(ctx, i)
	}

	// Record active workers
	RecordNotificationWorkersActive(p.workers)

	return nil
}

// Stop gracefully stops the event processor.
// It waits for in-flight notifications to complete.
func (p *Processor) Stop() error {
	p.logger.Info("stopping event processor")

	// Signal shutdown
	close(p.stopChannel)

	// Wait for workers to finish
	p.wg.Wait()

	// Close components
	if err := p.queue.Close(); err != nil {
		p.logger.Error("failed to close queue", zap.Error(err))
	}
	if err := p.notifier.Close(); err != nil {
		p.logger.Error("failed to close notifier", zap.Error(err))
	}

	RecordNotificationWorkersActive(0)

	p.logger.Info("event processor stopped")
	return nil
}

// notificationWorker processes events from the queue and delivers notifications.
func (p *Processor) notificationWorker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Info("starting notification worker",
		zap.Int("worker_id", workerID),
	)

	// Subscribe to event queue
	eventCh, err := p.queue.Subscribe(ctx, "notifiers", fmt.Sprintf("worker-%d", workerID))
	if err != nil {
		p.logger.Error("failed to subscribe to event queue",
			zap.Error(err),
			zap.Int("worker_id", workerID),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopped by context",
				zap.Int("worker_id", workerID),
			)
			return
		case <-p.stopChannel:
			p.logger.Info("notification worker stopped",
				zap.Int("worker_id", workerID),
			)
			return
		case event, ok := <-eventCh:
			if !ok {
				p.logger.Info("event channel closed",
					zap.Int("worker_id", workerID),
				)
				return
			}

			// Process event
			if err := p.processEvent(ctx, event); err != nil {
				p.logger.Error("failed to process event",
					zap.Error(err),
					zap.String("event_id", event.Event.ID),
					zap.Int("worker_id", workerID),
				)
			}
		}
	}
}

// processEvent resolves delivery targets for a single event and delivers
// notifications to each.
func (p *Processor) processEvent(ctx context.Context, event *QueuedEvent) error {
	targets, err := p.resolveTargets(ctx, event)
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		p.logger.Debug("no delivery targets for event",
			zap.String("event_id", event.Event.ID),
		)
		return nil
	}

	p.logger.Info("processing event notifications",
		zap.String("event_id", event.Event.ID),
		zap.String("event_type", string(event.Event.Type)),
		zap.Int("target_count", len(targets)),
	)

	for _, target := range targets {
		delivery, err := p.notifier.NotifyWithRetry(ctx, event.Event, target)
		if err != nil {
			p.logger.Error("notification delivery failed",
				zap.Error(err),
				zap.String("event_id", event.Event.ID),
				zap.String("subscription_id", target.SubscriptionID),
			)
			continue
		}

		p.logger.Info("notification delivered",
			zap.String("delivery_id", delivery.ID),
			zap.String("event_id", event.Event.ID),
			zap.String("subscription_id", target.SubscriptionID),
			zap.String("status", string(delivery.Status)),
			zap.Int("attempts", delivery.Attempts),
		)
	}

	return nil
}

// resolveTargets turns the event's routing metadata into delivery targets.
// A direct sink takes precedence; otherwise the subscription filter decides.
func (p *Processor) resolveTargets(ctx context.Context, event *QueuedEvent) ([]Target, error) {
	if event.Sink != "" {
		return []Target{{SubscriptionID: event.TargetID, Sink: event.Sink}}, nil
	}

	subscriptions, err := p.filter.MatchSubscriptions(ctx, event)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.Sink == "" {
			continue
		}
		targets = append(targets, Target{
			SubscriptionID: sub.SubscriptionID,
			Sink:           sub.Sink,
		})
	}

	return targets, nil
}
