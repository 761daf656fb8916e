package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const defaultMemoryQueueSize = 1024

// MemoryQueue is a channel-backed Queue for single-instance deployments
// without Redis. Events are lost on restart; consumer groups are not
// supported and every subscriber sees every event.
type MemoryQueue struct {
	logger *zap.Logger

	mu     sync.Mutex
	ch     chan *QueuedEvent
	closed bool
}

// NewMemoryQueue creates an in-process event queue with a bounded buffer.
func NewMemoryQueue(logger *zap.Logger) *MemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		logger: logger,
		ch:     make(chan *QueuedEvent, defaultMemoryQueueSize),
	}
}

// Publish adds an event to the queue. It fails when the buffer is full
// rather than blocking the request path.
func (q *MemoryQueue) Publish(ctx context.Context, event *QueuedEvent) error {
	if event == nil || event.Event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue is full")
	}
}

// Subscribe returns the event channel. The consumer group and consumer
// name are accepted for interface compatibility and ignored.
func (q *MemoryQueue) Subscribe(ctx context.Context, consumerGroup, consumerName string) (<-chan *QueuedEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, fmt.Errorf("queue is closed")
	}

	q.logger.Debug("memory queue subscriber attached",
		zap.String("consumer_group", consumerGroup),
		zap.String("consumer_name", consumerName))

	return q.ch, nil
}

// Acknowledge is a no-op: channel delivery is at-most-once.
func (q *MemoryQueue) Acknowledge(ctx context.Context, consumerGroup, streamID string) error {
	return nil
}

// Close closes the queue. Pending events still in the buffer are
// drained by subscribers until the channel empties.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}
