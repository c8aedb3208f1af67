package handler

import (
	"log"
	"net/http"
	"net/url"

	"projecthub/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin allows the configured origins, or any origin when none are set.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades the request and registers the connection with the hub.
// When an auth secret is configured the token must verify first.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	var userID string
	if len(h.AuthSecret) > 0 {
		id, err := h.validateToken(tokenFromRequest(c))
		if err != nil {
			log.Printf("[ws] rejected connection from %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		userID = id
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, uuid.New().String(), userID, h.SendBuffer)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
	}
}
