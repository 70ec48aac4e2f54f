package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake conn closed")

// fakeConn is an in-memory Conn. Frames written by the server land on out;
// frames pushed on in are read by the server.
type fakeConn struct {
	in        chan []byte
	out       chan Frame
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	pongHandler func(string) error
	autoPong    bool
	pings       atomic.Int32
}

func newFakeConn(autoPong bool) *fakeConn {
	return &fakeConn{
		in:       make(chan []byte, 16),
		out:      make(chan Frame, 64),
		closed:   make(chan struct{}),
		autoPong: autoPong,
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.out <- f
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	c.pings.Add(1)
	if c.autoPong {
		c.mu.Lock()
		h := c.pongHandler
		c.mu.Unlock()
		if h != nil {
			return h("")
		}
	}
	return nil
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	c.pongHandler = h
	c.mu.Unlock()
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	c.in <- data
}

func nextFrame(t *testing.T, c *fakeConn) Frame {
	t.Helper()
	select {
	case f := <-c.out:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func expectNoFrame(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case f := <-c.out:
		t.Fatalf("unexpected frame %s: %s", f.Type, string(f.Data))
	case <-time.After(50 * time.Millisecond):
	}
}

func decodeData(t *testing.T, f Frame) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}
