package handler

import (
	"net/http"

	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP surface of the realtime hub.
type Handler struct {
	Hub            *chathub.ManagerService
	AuthSecret     []byte
	AllowedOrigins []string
	SendBuffer     int
}

func NewHandler(hub *chathub.ManagerService, cfg *config.Config) *Handler {
	h := &Handler{Hub: hub, SendBuffer: config.DefaultSendBuffer}
	if cfg != nil {
		if cfg.AuthSecret != "" {
			h.AuthSecret = []byte(cfg.AuthSecret)
		}
		h.AllowedOrigins = cfg.AllowedOrigins
		if cfg.SendBuffer > 0 {
			h.SendBuffer = cfg.SendBuffer
		}
	}
	return h
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.GET("/presence", h.Presence)
}

// Health reports liveness and the number of open connections.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.Hub.ClientCount()})
}

// Presence returns the current presence snapshot.
func (h *Handler) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.Hub.Presence.Snapshot()})
}
