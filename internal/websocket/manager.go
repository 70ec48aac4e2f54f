// Package websocket owns the live sockets: authentication at upgrade time,
// the session registry, heartbeat liveness, frame routing and presence.
package websocket

import (
	"context"
	"time"

	"mediahub-be/internal/metrics"
	"mediahub-be/internal/pkg/logger"

	"golang.org/x/time/rate"
)

const moduleManager = "WSManager"

type Options struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
	MaxMessageSize    int64
	WriteWait         time.Duration
	RateLimit         rate.Limit // inbound frames per second, <= 0 disables
	RateBurst         int
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return o
}

type Manager struct {
	registry *Registry
	router   *Router
	presence *Presence
	opts     Options
	logger   logger.ILogger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewManager builds a manager with its own registry; publisher may be nil.
func NewManager(opts Options, publisher EventPublisher, log logger.ILogger) *Manager {
	registry := NewRegistry()
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry:   registry,
		router:     NewRouter(registry, log),
		presence:   NewPresence(registry, publisher, log),
		opts:       opts.withDefaults(),
		logger:     log,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Context is the base context for connections served by this manager. It is
// cancelled when Run returns.
func (m *Manager) Context() context.Context {
	return m.baseCtx
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) IsOnline(user string) bool {
	_, ok := m.registry.Get(user)
	return ok
}

func (m *Manager) OnlineUsers() []string {
	return m.registry.Online()
}

// SendTo queues f for user's current session. It reports false when the user
// is offline or the frame was dropped.
func (m *Manager) SendTo(user string, f Frame) bool {
	s, ok := m.registry.Get(user)
	if !ok {
		return false
	}
	return s.Send(f)
}

// Serve runs one authenticated connection until it closes. It registers the
// session, sends the confirmation and roster, announces the user to everyone
// else, then reads frames until the socket fails or is terminated.
func (m *Manager) Serve(ctx context.Context, conn Conn, user string) {
	s := newSession(user, conn, m.opts, m.logger)
	conn.SetReadLimit(m.opts.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		s.markAlive()
		return nil
	})
	go s.writeLoop()

	prev := m.registry.Register(s)
	defer m.cleanup(ctx, s)

	m.logger.Info(moduleManager, "Session connected", map[string]interface{}{"user": user, "displaced": prev != nil})

	s.Send(NewFrame(TypeConnectionConfirmed, ConnectionConfirmedData{UserID: user}))
	s.Send(NewFrame(TypeOnlineUsers, OnlineUsersData{Users: m.registry.Online()}))
	if prev == nil {
		m.presence.Announce(ctx, user, true)
	}

	m.readLoop(ctx, s)
}

func (m *Manager) readLoop(ctx context.Context, s *Session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			m.logger.Debug(moduleManager, "Read loop ended", map[string]interface{}{"user": s.user, "error": err.Error()})
			return
		}
		if !s.limiter.Allow() {
			s.Send(errorFrame("rate limit exceeded"))
			continue
		}
		m.router.Route(ctx, s, data)
	}
}

// cleanup closes s and, if it was still the registered session, announces
// the user offline. Repeated calls are no-ops.
func (m *Manager) cleanup(ctx context.Context, s *Session) {
	s.Close()
	if m.registry.Unregister(s) {
		m.logger.Info(moduleManager, "Session closed", map[string]interface{}{"user": s.user})
		m.presence.Announce(ctx, s.user, false)
	}
}

// Run drives the heartbeat until ctx is cancelled, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.cancelBase()
			m.closeAll()
			return
		case <-ticker.C:
			m.heartbeatTick(ctx)
		}
	}
}

// heartbeatTick terminates sessions that did not answer the previous ping and
// pings the rest.
func (m *Manager) heartbeatTick(ctx context.Context) {
	for _, s := range m.registry.Snapshot() {
		if !s.alive.Load() {
			metrics.RealtimeHeartbeatEvictions.Inc()
			m.logger.Warn(moduleManager, "Heartbeat missed, terminating session", map[string]interface{}{"user": s.user})
			m.cleanup(ctx, s)
			continue
		}
		s.alive.Store(false)
		if err := s.ping(); err != nil {
			m.logger.Debug(moduleManager, "Ping failed, terminating session", map[string]interface{}{"user": s.user, "error": err.Error()})
			m.cleanup(ctx, s)
		}
	}
}

func (m *Manager) closeAll() {
	for _, s := range m.registry.Snapshot() {
		s.Close()
	}
}
