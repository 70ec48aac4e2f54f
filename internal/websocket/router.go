package websocket

import (
	"context"
	"time"

	"mediahub-be/internal/metrics"
	"mediahub-be/internal/pkg/logger"
)

const labelUnknown = "unknown"

// Router dispatches inbound frames. Relays are best-effort: a recipient that
// is not in the registry simply does not get the frame.
type Router struct {
	registry *Registry
	logger   logger.ILogger
}

func NewRouter(registry *Registry, log logger.ILogger) *Router {
	return &Router{registry: registry, logger: log}
}

func (r *Router) Route(ctx context.Context, from *Session, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		metrics.RealtimeFrames.WithLabelValues("malformed").Inc()
		from.Send(errorFrame("malformed frame"))
		return
	}

	switch f.Type {
	case TypePing:
		metrics.RealtimeFrames.WithLabelValues(f.Type).Inc()
		from.Send(NewFrame(TypePong, nil))
	case TypeMessage, TypeTyping, TypeFriendRequest, TypeFriendAccepted:
		metrics.RealtimeFrames.WithLabelValues(f.Type).Inc()
		r.relay(from, f)
	default:
		metrics.RealtimeFrames.WithLabelValues(labelUnknown).Inc()
		from.Send(errorFrame("unknown frame type: " + f.Type))
	}
}

func (r *Router) relay(from *Session, f Frame) {
	data, fields, err := stampSender(f.Data, from.User())
	if err != nil {
		from.Send(errorFrame("frame data must be an object"))
		return
	}

	recipients := recipientsFor(f.Type, fields, from.User())
	if len(recipients) == 0 {
		from.Send(errorFrame(f.Type + " frame has no recipient"))
		return
	}

	out := Frame{Type: f.Type, Data: data, Timestamp: f.Timestamp}
	if out.Timestamp == 0 {
		out.Timestamp = time.Now().UnixMilli()
	}
	encoded, err := out.encode()
	if err != nil {
		from.Send(errorFrame("failed to encode frame"))
		return
	}

	for _, user := range recipients {
		s, ok := r.registry.Get(user)
		if !ok || !s.enqueue(encoded) {
			metrics.RealtimeRelaysDropped.WithLabelValues(f.Type).Inc()
			r.logger.Debug("Router", "Recipient unreachable, frame dropped", map[string]interface{}{
				"type": f.Type, "from": from.User(), "to": user,
			})
		}
	}
}

// recipientsFor resolves who a relayed frame goes to. The sender is never a recipient.
func recipientsFor(frameType string, fields map[string]interface{}, sender string) []string {
	var targets []string
	switch frameType {
	case TypeMessage:
		targets = stringSliceField(fields, "participants")
		if len(targets) == 0 {
			targets = []string{stringField(fields, "receiverId")}
		}
	case TypeTyping:
		targets = []string{stringField(fields, "receiverId")}
	case TypeFriendRequest:
		targets = []string{stringField(fields, "toUser")}
	case TypeFriendAccepted:
		targets = []string{stringField(fields, "fromUser")}
	}

	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || t == sender {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
