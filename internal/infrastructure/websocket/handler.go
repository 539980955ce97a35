package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nbcore/notebookcore/internal/coordinator"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades GET /notebooks/{id}/ws to a WebSocket connection.
// Auth and ownership are enforced the same way as the REST handlers:
// the bearer token is validated by rest.AuthMiddleware.OptionalAuth
// upstream (WebSocket handshakes can't always set an Authorization
// header, hence OptionalAuth rather than RequireAuth), and ownership is
// re-checked by the Coordinator on every command.
type Handler struct {
	registry *coordinator.Registry
	log      *logger.Logger
}

func NewHandler(registry *coordinator.Registry, log *logger.Logger) *Handler {
	return &Handler{registry: registry, log: log}
}

// ServeWS handles GET /notebooks/{id}/ws.
func (h *Handler) ServeWS(c *gin.Context, userID string) {
	notebookID := c.Param("id")

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		http.Error(c.Writer, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err, "remote_addr", c.Request.RemoteAddr)
		return
	}

	h.log.Info("websocket client connected", "user_id", userID, "notebook_id", notebookID)
	client := NewClient(conn, co, userID, h.log)
	client.Run()
}
