// Package metrics holds the prometheus collectors for the realtime core and the storage layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RealtimeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediahub",
		Subsystem: "realtime",
		Name:      "sessions",
		Help:      "Number of users currently present in the session registry.",
	})

	RealtimeFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Subsystem: "realtime",
		Name:      "frames_total",
		Help:      "Inbound frames handled, by frame type.",
	}, []string{"type"})

	RealtimeRelaysDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Subsystem: "realtime",
		Name:      "relays_dropped_total",
		Help:      "Relayed frames dropped because the recipient was offline or its queue was full.",
	}, []string{"type"})

	RealtimeHeartbeatEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediahub",
		Subsystem: "realtime",
		Name:      "heartbeat_evictions_total",
		Help:      "Sessions terminated for missing a heartbeat cycle.",
	})

	KVRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Subsystem: "kv",
		Name:      "retries_total",
		Help:      "Key-value operations retried after a transient error, by operation.",
	}, []string{"op"})

	KVFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Subsystem: "kv",
		Name:      "failures_total",
		Help:      "Key-value operations that failed after exhausting retries or on a permanent error.",
	}, []string{"op"})
)
