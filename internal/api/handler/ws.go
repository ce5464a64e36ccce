package handler

import (
	"net/http"

	"github.com/danikhandev/serve-u/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down behind the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and hands the connection to the
// hub. The request must carry a valid bearer token; browsers that
// cannot set headers on the upgrade may pass it as ?token= instead.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity, err := h.identityFromRequest(c)
	if err != nil {
		if q := c.Query("token"); q != "" {
			identity, err = h.validateToken(q)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, identity, h.Log)
	h.Hub.RegisterCh <- client
	client.Run()
}
