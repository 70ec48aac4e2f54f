package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediahub-be/internal/pkg/logger"
	"mediahub-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func newTestManager(opts Options, pub EventPublisher) *Manager {
	return NewManager(opts, pub, logger.NewNopLogger())
}

// connect serves a fake socket for user and consumes the two handshake frames.
// The ping round trip returns only once Serve has reached its read loop, that
// is after the online announcement went out.
func connect(t *testing.T, m *Manager, user string, autoPong bool) *fakeConn {
	t.Helper()
	c := newFakeConn(autoPong)
	go m.Serve(context.Background(), c, user)

	confirmed := nextFrame(t, c)
	require.Equal(t, TypeConnectionConfirmed, confirmed.Type)
	assert.Equal(t, user, decodeData(t, confirmed)["userId"])

	roster := nextFrame(t, c)
	require.Equal(t, TypeOnlineUsers, roster.Type)

	c.push(t, map[string]interface{}{"type": "ping"})
	require.Equal(t, TypePong, nextFrame(t, c).Type)
	return c
}

func expectStatus(t *testing.T, c *fakeConn, user, status string) {
	t.Helper()
	f := nextFrame(t, c)
	require.Equal(t, TypeUserStatus, f.Type)
	data := decodeData(t, f)
	assert.Equal(t, user, data["userId"])
	assert.Equal(t, status, data["status"])
}

func TestHandshakeNeverAnnouncesSelf(t *testing.T) {
	m := newTestManager(Options{}, nil)

	alice := connect(t, m, "alice", true)
	expectNoFrame(t, alice)

	bob := newFakeConn(true)
	go m.Serve(context.Background(), bob, "bob")

	assert.Equal(t, TypeConnectionConfirmed, nextFrame(t, bob).Type)
	roster := nextFrame(t, bob)
	require.Equal(t, TypeOnlineUsers, roster.Type)
	assert.Equal(t, []interface{}{"alice", "bob"}, decodeData(t, roster)["users"])
	expectNoFrame(t, bob)

	expectStatus(t, alice, "bob", StatusOnline)
}

func TestPresenceOfflineReachesEveryoneElseOnce(t *testing.T) {
	pub := &recordingPublisher{}
	m := newTestManager(Options{}, pub)

	alice := connect(t, m, "alice", true)
	bob := connect(t, m, "bob", true)
	expectStatus(t, alice, "bob", StatusOnline)
	carol := connect(t, m, "carol", true)
	expectStatus(t, alice, "carol", StatusOnline)
	expectStatus(t, bob, "carol", StatusOnline)

	require.NoError(t, carol.Close())

	expectStatus(t, alice, "carol", StatusOffline)
	expectStatus(t, bob, "carol", StatusOffline)
	expectNoFrame(t, alice)
	expectNoFrame(t, bob)

	require.Eventually(t, func() bool { return !m.IsOnline("carol") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob"}, m.OnlineUsers())
	assert.Equal(t, []string{
		events.TypeUserOnline, events.TypeUserOnline, events.TypeUserOnline, events.TypeUserOffline,
	}, pub.types())
}

func TestReconnectIsLastWriteWins(t *testing.T) {
	m := newTestManager(Options{}, nil)

	first := connect(t, m, "alice", true)
	bob := connect(t, m, "bob", true)
	expectStatus(t, first, "bob", StatusOnline)

	second := connect(t, m, "alice", true)
	assert.Equal(t, 2, m.Registry().Count())
	s, ok := m.Registry().Get("alice")
	require.True(t, ok)
	assert.Same(t, second, s.conn.(*fakeConn))
	expectNoFrame(t, bob)

	require.NoError(t, first.Close())
	expectNoFrame(t, bob)
	s, ok = m.Registry().Get("alice")
	require.True(t, ok)
	assert.Same(t, second, s.conn.(*fakeConn))
}

func TestHeartbeatEvictsUnresponsiveSession(t *testing.T) {
	m := newTestManager(Options{}, nil)

	silent := connect(t, m, "alice", false)
	bob := connect(t, m, "bob", true)
	expectStatus(t, silent, "bob", StatusOnline)

	m.heartbeatTick(context.Background())
	assert.True(t, m.IsOnline("alice"))
	assert.Equal(t, int32(1), silent.pings.Load())

	m.heartbeatTick(context.Background())
	assert.False(t, m.IsOnline("alice"))
	assert.True(t, m.IsOnline("bob"))
	expectStatus(t, bob, "alice", StatusOffline)

	select {
	case <-silent.closed:
	default:
		t.Fatal("evicted socket was not closed")
	}

	m.heartbeatTick(context.Background())
	assert.True(t, m.IsOnline("bob"))
	assert.Equal(t, int32(3), bob.pings.Load())
	s, _ := m.Registry().Get("bob")
	assert.False(t, s.LastPong().IsZero())
}

func TestRouterDispatch(t *testing.T) {
	m := newTestManager(Options{}, nil)
	alice := connect(t, m, "alice", true)
	bob := connect(t, m, "bob", true)
	expectStatus(t, alice, "bob", StatusOnline)
	carol := connect(t, m, "carol", true)
	expectStatus(t, alice, "carol", StatusOnline)
	expectStatus(t, bob, "carol", StatusOnline)

	t.Run("ping replies pong to sender only", func(t *testing.T) {
		alice.push(t, map[string]interface{}{"type": "ping"})
		assert.Equal(t, TypePong, nextFrame(t, alice).Type)
		expectNoFrame(t, bob)
	})

	t.Run("message fans out to participants except sender", func(t *testing.T) {
		alice.push(t, map[string]interface{}{
			"type":      "message",
			"data":      map[string]interface{}{"participants": []string{"alice", "bob", "carol", "dave"}, "content": "hi"},
			"timestamp": 42,
		})
		for _, c := range []*fakeConn{bob, carol} {
			f := nextFrame(t, c)
			require.Equal(t, TypeMessage, f.Type)
			assert.Equal(t, int64(42), f.Timestamp)
			data := decodeData(t, f)
			assert.Equal(t, "alice", data["senderId"])
			assert.Equal(t, "hi", data["content"])
		}
		expectNoFrame(t, alice)
	})

	t.Run("message falls back to receiverId", func(t *testing.T) {
		bob.push(t, map[string]interface{}{"type": "message", "data": map[string]interface{}{"receiverId": "carol"}})
		f := nextFrame(t, carol)
		assert.Equal(t, "bob", decodeData(t, f)["senderId"])
		expectNoFrame(t, alice)
	})

	t.Run("typing to offline receiver is dropped silently", func(t *testing.T) {
		alice.push(t, map[string]interface{}{"type": "typing", "data": map[string]interface{}{"receiverId": "zed"}})
		expectNoFrame(t, alice)
	})

	t.Run("friend request goes to toUser", func(t *testing.T) {
		alice.push(t, map[string]interface{}{"type": "friend_request", "data": map[string]interface{}{"toUser": "bob"}})
		f := nextFrame(t, bob)
		assert.Equal(t, TypeFriendRequest, f.Type)
		expectNoFrame(t, carol)
	})

	t.Run("friend accepted goes to fromUser", func(t *testing.T) {
		bob.push(t, map[string]interface{}{"type": "friend_accepted", "data": map[string]interface{}{"fromUser": "alice"}})
		f := nextFrame(t, alice)
		assert.Equal(t, TypeFriendAccepted, f.Type)
		assert.Equal(t, "bob", decodeData(t, f)["senderId"])
	})

	t.Run("malformed and unknown frames get an error reply", func(t *testing.T) {
		alice.in <- []byte("{not json")
		assert.Equal(t, TypeError, nextFrame(t, alice).Type)

		alice.push(t, map[string]interface{}{"type": "teleport"})
		f := nextFrame(t, alice)
		require.Equal(t, TypeError, f.Type)
		assert.Contains(t, decodeData(t, f)["message"], "teleport")

		alice.push(t, map[string]interface{}{"type": "message", "data": []string{"x"}})
		assert.Equal(t, TypeError, nextFrame(t, alice).Type)

		alice.push(t, map[string]interface{}{"type": "typing", "data": map[string]interface{}{}})
		assert.Equal(t, TypeError, nextFrame(t, alice).Type)
		assert.True(t, m.IsOnline("alice"))
	})
}

func TestSendTo(t *testing.T) {
	m := newTestManager(Options{}, nil)
	alice := connect(t, m, "alice", true)

	assert.True(t, m.SendTo("alice", NewFrame(TypeMessage, map[string]string{"content": "x"})))
	assert.Equal(t, TypeMessage, nextFrame(t, alice).Type)
	assert.False(t, m.SendTo("nobody", NewFrame(TypeMessage, nil)))
}

func TestInboundRateLimit(t *testing.T) {
	m := newTestManager(Options{RateLimit: rate.Limit(0.001), RateBurst: 1}, nil)
	// connect spends the only token on its ping.
	alice := connect(t, m, "alice", true)

	alice.push(t, map[string]interface{}{"type": "ping"})
	f := nextFrame(t, alice)
	require.Equal(t, TypeError, f.Type)
	assert.Equal(t, "rate limit exceeded", decodeData(t, f)["message"])
}

func TestRunClosesSessionsOnShutdown(t *testing.T) {
	m := newTestManager(Options{HeartbeatInterval: time.Hour}, nil)
	alice := connect(t, m, "alice", true)
	require.NoError(t, m.Context().Err())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	select {
	case <-alice.closed:
	case <-time.After(time.Second):
		t.Fatal("session not closed on shutdown")
	}
	require.Eventually(t, func() bool { return m.Registry().Count() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}
