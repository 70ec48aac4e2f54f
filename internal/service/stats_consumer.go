package service

import (
	"context"

	"mediahub-be/internal/dto"
	"mediahub-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// StatsInvalidator drops cached statistics for a user. Implemented by
// stats.Aggregator.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, user string) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type statsConsumer struct {
	subscriber  message.Subscriber
	topicName   string
	invalidator StatsInvalidator
	logger      logger.ILogger
}

func NewStatsConsumer(subscriber message.Subscriber, topicName string, invalidator StatsInvalidator, log logger.ILogger) IConsumerService {
	return &statsConsumer{
		subscriber:  subscriber,
		topicName:   topicName,
		invalidator: invalidator,
		logger:      log,
	}
}

func (cs *statsConsumer) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *statsConsumer) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PlayRecordedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("StatsConsumer", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		// Redelivery cannot fix a bad payload.
		msg.Ack()
		return
	}

	if err := cs.invalidator.Invalidate(ctx, payload.Username); err != nil {
		cs.logger.Warn("StatsConsumer", "Failed to invalidate stats cache", map[string]interface{}{
			"user":  payload.Username,
			"error": err.Error(),
		})
	}
	// Failures are not redelivered; the cache TTL bounds staleness.
	msg.Ack()
}
