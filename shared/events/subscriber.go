package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("pkg", "events").Logger()

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	retryAfter    time.Duration
	maxDeliveries int64
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// RetryAfter is how long a failed message stays pending before it is
	// claimed again. MaxDeliveries bounds the attempts; then it is dropped.
	RetryAfter    time.Duration
	MaxDeliveries int64
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.RetryAfter == 0 {
		config.RetryAfter = 30 * time.Second
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 5
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		retryAfter:    config.RetryAfter,
		maxDeliveries: config.MaxDeliveries,
	}
}

// Start blocks until ctx is cancelled. Messages whose handler fails stay
// pending and are claimed again after RetryAfter.
func (s *Subscriber) Start(ctx context.Context) error {
	// "$" skips history so a fresh group only sees new notifications.
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info().Str("stream", s.stream).Str("group", s.group).Str("consumer", s.consumer).Msg("subscriber started")

	var lastRetry time.Time
	for {
		if ctx.Err() != nil {
			logger.Info().Str("stream", s.stream).Msg("subscriber stopping")
			return ctx.Err()
		}
		if time.Since(lastRetry) >= s.retryAfter {
			if err := s.retryPending(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("stream", s.stream).Msg("error retrying pending messages")
			}
			lastRetry = time.Now()
		}
		if err := s.readMessages(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Str("stream", s.stream).Msg("error reading messages")
			time.Sleep(time.Second)
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleBatch(ctx, stream.Messages)
	}
	return nil
}

// retryPending claims this consumer's idle pending messages and runs them
// again. Messages delivered MaxDeliveries times are acknowledged and dropped.
func (s *Subscriber) retryPending(ctx context.Context) error {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   s.stream,
		Group:    s.group,
		Idle:     s.retryAfter,
		Start:    "-",
		End:      "+",
		Count:    s.batchSize,
		Consumer: s.consumer,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to list pending messages: %w", err)
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		if p.RetryCount >= s.maxDeliveries {
			logger.Warn().Str("message", p.ID).Int64("deliveries", p.RetryCount).Msg("dropping message after repeated failures")
			s.ack(ctx, p.ID)
			continue
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.retryAfter,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}
	s.handleBatch(ctx, messages)
	return nil
}

func (s *Subscriber) handleBatch(ctx context.Context, messages []redis.XMessage) {
	for _, message := range messages {
		if err := s.processMessage(ctx, message); err != nil {
			logger.Error().Err(err).Str("message", message.ID).Msg("failed to process message")
			continue
		}
		s.ack(ctx, message.ID)
	}
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		logger.Error().Err(err).Str("message", id).Msg("failed to ack message")
	}
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	event, err := DecodeMessage(message)
	if err != nil {
		return err
	}
	return s.handler(ctx, event)
}

// DecodeMessage extracts the JSON event stored under the "event" field.
func DecodeMessage(message redis.XMessage) (Event, error) {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return Event{}, fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// DecodeData re-encodes the generic event payload into out.
func DecodeData(event Event, out any) error {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := json.Unmarshal(dataBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", event.Type, err)
	}
	return nil
}
