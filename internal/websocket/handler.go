package websocket

import (
	"mediahub-be/internal/auth"
	"mediahub-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localUsername = "ws_username"

// Handler authenticates upgrade requests and hands the upgraded socket to the manager.
type Handler struct {
	manager  *Manager
	verifier *auth.Verifier
	logger   logger.ILogger
}

func NewHandler(manager *Manager, verifier *auth.Verifier, log logger.ILogger) *Handler {
	return &Handler{manager: manager, verifier: verifier, logger: log}
}

// Register mounts the upgrade endpoint on path only.
func (h *Handler) Register(r fiber.Router, path string) {
	r.Get(path, h.Upgrade)
}

// Upgrade rejects the request with 401 before any upgrade when the auth query
// parameter is missing or invalid; no session exists for such a peer.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	payload, err := h.verifier.Verify(c.Query("auth"))
	if err != nil {
		h.logger.Warn("WSHandler", "Rejected handshake", map[string]interface{}{
			"ip":    c.IP(),
			"error": err.Error(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized", "error": err.Error()})
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	c.Locals(localUsername, payload.Username)
	return websocket.New(func(conn *websocket.Conn) {
		user, _ := conn.Locals(localUsername).(string)
		h.manager.Serve(h.manager.Context(), conn, user)
	})(c)
}
