package websocket

import (
	"context"
	"time"

	"mediahub-be/internal/metrics"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/pkg/events"
)

const publishTimeout = 2 * time.Second

// EventPublisher receives presence transitions for consumers outside this process.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Presence struct {
	registry  *Registry
	publisher EventPublisher
	logger    logger.ILogger
}

// NewPresence builds the broadcaster; publisher may be nil.
func NewPresence(registry *Registry, publisher EventPublisher, log logger.ILogger) *Presence {
	return &Presence{registry: registry, publisher: publisher, logger: log}
}

// Announce sends user_status for user to every other registered session and
// publishes the matching domain event.
func (p *Presence) Announce(ctx context.Context, user string, online bool) {
	status := StatusOffline
	if online {
		status = StatusOnline
	}

	encoded, err := NewFrame(TypeUserStatus, UserStatusData{UserID: user, Status: status}).encode()
	if err == nil {
		for _, s := range p.registry.Snapshot() {
			if s.User() == user {
				continue
			}
			if !s.enqueue(encoded) {
				metrics.RealtimeRelaysDropped.WithLabelValues(TypeUserStatus).Inc()
			}
		}
	}

	if p.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.publisher.Publish(pubCtx, events.NewPresenceEvent(online, user, time.Now())); err != nil {
		p.logger.Warn("Presence", "Failed to publish presence event", map[string]interface{}{
			"user": user, "status": status, "error": err.Error(),
		})
	}
}
