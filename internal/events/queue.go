package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// eventStreamKey is the single stream carrying all CAMARA events:
	// QoD status changes, device status and SIM swap notifications,
	// traffic influence updates.
	eventStreamKey = "events:stream"

	// readBatchSize is how many entries one XREADGROUP may return and
	// the buffer of the channel handed to the consumer.
	readBatchSize = 10

	// readBlock is the XREADGROUP block interval. Short enough that a
	// cancelled consumer exits promptly.
	readBlock = 5 * time.Second
)

// RedisQueue is the Queue implementation on Redis Streams. Consumer
// groups give at-least-once delivery across gateway replicas: an event
// is handed to one worker and redelivered if never acknowledged.
type RedisQueue struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisQueue creates a queue on the given client.
func NewRedisQueue(client redis.UniversalClient, logger *zap.Logger) *RedisQueue {
	if client == nil {
		panic("Redis client cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &RedisQueue{client: client, logger: logger}
}

// Publish appends an event to the stream.
func (q *RedisQueue) Publish(ctx context.Context, event *QueuedEvent) error {
	if event == nil || event.Event == nil {
		return errors.New("event cannot be nil")
	}
	if event.Event.ID == "" {
		return errors.New("event ID cannot be empty")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	streamID, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStreamKey,
		Values: map[string]interface{}{"event": string(payload)},
	}).Result()
	if err != nil {
		RecordEventQueued("error")
		return fmt.Errorf("failed to add event to stream: %w", err)
	}
	RecordEventQueued("success")

	q.logger.Debug("event published",
		zap.String("event_id", event.Event.ID),
		zap.String("event_type", string(event.Event.Type)),
		zap.String("stream_id", streamID),
	)
	return nil
}

// Subscribe joins the consumer group and returns a channel fed from the
// stream. The channel closes when ctx is cancelled.
func (q *RedisQueue) Subscribe(ctx context.Context, consumerGroup, consumerName string) (<-chan *QueuedEvent, error) {
	if consumerGroup == "" {
		return nil, errors.New("consumer group cannot be empty")
	}
	if consumerName == "" {
		return nil, errors.New("consumer name cannot be empty")
	}

	err := q.client.XGroupCreateMkStream(ctx, eventStreamKey, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	events := make(chan *QueuedEvent, readBatchSize)
	go q.consume(ctx, consumerGroup, consumerName, events)
	return events, nil
}

// consume reads the stream until ctx is cancelled.
func (q *RedisQueue) consume(ctx context.Context, group, consumer string, events chan<- *QueuedEvent) {
	defer close(events)

	log := q.logger.With(
		zap.String("consumer_group", group),
		zap.String("consumer_name", consumer),
	)
	log.Info("stream consumer started")
	defer log.Info("stream consumer stopped")

	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{eventStreamKey, ">"},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()

		switch {
		case errors.Is(err, redis.Nil):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			log.Error("failed to read from stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			if !q.deliver(ctx, group, stream.Messages, events) {
				return
			}
		}
	}
}

// deliver decodes a batch and hands it to the consumer channel. It
// returns false when ctx was cancelled mid-batch.
func (q *RedisQueue) deliver(ctx context.Context, group string, messages []redis.XMessage, events chan<- *QueuedEvent) bool {
	for _, message := range messages {
		event, err := decodeStreamEvent(message)
		if err != nil {
			q.logger.Error("discarding undecodable stream entry",
				zap.Error(err),
				zap.String("stream_id", message.ID),
			)
			// Acked so the poison entry is not redelivered forever.
			_ = q.Acknowledge(ctx, group, message.ID)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func decodeStreamEvent(message redis.XMessage) (*QueuedEvent, error) {
	raw, ok := message.Values["event"].(string)
	if !ok {
		return nil, errors.New("stream entry has no event field")
	}

	var event QueuedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Event == nil {
		return nil, errors.New("queued event carries no envelope")
	}
	return &event, nil
}

// Acknowledge marks a stream entry processed for the group.
func (q *RedisQueue) Acknowledge(ctx context.Context, consumerGroup, streamID string) error {
	if consumerGroup == "" {
		return errors.New("consumer group cannot be empty")
	}
	if streamID == "" {
		return errors.New("stream ID cannot be empty")
	}

	if err := q.client.XAck(ctx, eventStreamKey, consumerGroup, streamID).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

// Close is a no-op: the Redis client is shared with the store and rate
// limiter and owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}
