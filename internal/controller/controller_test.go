package controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediahub-be/internal/auth"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/pkg/serverutils"
	"mediahub-be/internal/service"
	"mediahub-be/internal/stats"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/kv"
	"mediahub-be/internal/storage/kvstore"
	"mediahub-be/internal/websocket"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, payload []byte) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app   *fiber.App
	store storage.IStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	client, err := kv.NewBadgerClient("")
	require.NoError(t, err)
	store := kvstore.New(client, logger.NewNopLogger())
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		require.NoError(t, store.RegisterUser(ctx, u, "pw"))
	}

	manager := websocket.NewManager(websocket.Options{}, nil, logger.NewNopLogger())
	authMiddleware := serverutils.AuthMiddleware(auth.NewVerifier(""))

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewChatController(service.NewChatService(store, manager, logger.NewNopLogger())).RegisterRoutes(api, authMiddleware)
	NewPlayRecordController(service.NewPlayRecordService(store, noopPublisher{}, logger.NewNopLogger())).RegisterRoutes(api, authMiddleware)
	NewStatsController(stats.NewAggregator(store, time.Minute, logger.NewNopLogger())).RegisterRoutes(api, authMiddleware)

	return &testServer{app: app, store: store}
}

func (s *testServer) do(t *testing.T, user, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(serverutils.AuthHeader, `{"username":"`+user+`"}`)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestChatRoutes(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "", http.MethodGet, "/api/chat/conversations", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, env := s.do(t, "alice", http.MethodPost, "/api/chat/conversations", map[string]interface{}{"participants": []string{}})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = s.do(t, "alice", http.MethodPost, "/api/chat/conversations", map[string]interface{}{"participants": []string{"bob"}})
	require.Equal(t, fiber.StatusCreated, code)
	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	code, _ = s.do(t, "bob", http.MethodPost, "/api/chat/conversations/"+conv.ID+"/messages", map[string]string{"content": "yo"})
	require.Equal(t, fiber.StatusCreated, code)

	code, env = s.do(t, "alice", http.MethodGet, "/api/chat/conversations/"+conv.ID+"/messages?limit=10", nil)
	require.Equal(t, fiber.StatusOK, code)
	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "yo", msgs[0]["content"])

	require.NoError(t, s.store.RegisterUser(context.Background(), "eve", "pw"))
	code, _ = s.do(t, "eve", http.MethodGet, "/api/chat/conversations/"+conv.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = s.do(t, "alice", http.MethodGet, "/api/chat/conversations/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestFriendRoutes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, "alice", http.MethodPost, "/api/chat/friend-requests", map[string]string{"to_user": "bob"})
	require.Equal(t, fiber.StatusCreated, code)
	var fr struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fr))

	code, _ = s.do(t, "bob", http.MethodPost, "/api/chat/friend-requests/"+fr.ID+"/respond", map[string]bool{"accept": true})
	require.Equal(t, fiber.StatusOK, code)

	code, _ = s.do(t, "bob", http.MethodPost, "/api/chat/friend-requests/"+fr.ID+"/respond", map[string]bool{"accept": true})
	assert.Equal(t, fiber.StatusConflict, code)

	code, env = s.do(t, "alice", http.MethodGet, "/api/chat/friends", nil)
	require.Equal(t, fiber.StatusOK, code)
	var friends []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0]["username"])
	assert.Equal(t, "offline", friends[0]["status"])

	code, env = s.do(t, "alice", http.MethodGet, "/api/chat/users/search?q=o", nil)
	require.Equal(t, fiber.StatusOK, code)
	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0]["username"])
}

func TestPlayRecordAndStatsRoutes(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "alice", http.MethodPost, "/api/playrecords", map[string]interface{}{"source": "src", "id": "1"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = s.do(t, "alice", http.MethodPost, "/api/playrecords", map[string]interface{}{
		"source": "src", "id": "1", "title": "Show", "play_time": 120,
	})
	require.Equal(t, fiber.StatusOK, code)

	code, env := s.do(t, "alice", http.MethodGet, "/api/playrecords", nil)
	require.Equal(t, fiber.StatusOK, code)
	var records map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Contains(t, records, "src+1")

	code, env = s.do(t, "alice", http.MethodGet, "/api/stats/me", nil)
	require.Equal(t, fiber.StatusOK, code)
	var mine map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Equal(t, float64(120), mine["total_watch_time"])

	code, env = s.do(t, "bob", http.MethodGet, "/api/stats", nil)
	require.Equal(t, fiber.StatusOK, code)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, float64(2), summary["total_users"])

	code, _ = s.do(t, "alice", http.MethodDelete, "/api/playrecords/src/1", nil)
	require.Equal(t, fiber.StatusOK, code)
}
