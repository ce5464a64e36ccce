package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/danikhandev/serve-u/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	identityID string
	conn       *websocket.Conn
	hub        *Hub
	send       chan models.Envelope
	log        *zap.Logger

	// typingLimiter bounds typing-indicator floods per connection.
	typingLimiter *rate.Limiter

	closeOnce sync.Once
}

func NewWebSocketClient(hub *Hub, conn *websocket.Conn, identityID string, log *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		identityID:    identityID,
		conn:          conn,
		hub:           hub,
		send:          make(chan models.Envelope, sendBuffer),
		log:           log,
		typingLimiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
	}
}

func (c *WebSocketClient) IdentityID() string             { return c.identityID }
func (c *WebSocketClient) SendCh() chan<- models.Envelope { return c.send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close ends the write pump. The read pump ends when the connection is
// closed in its defer.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.UnregisterCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("ws: read error", zap.String("identity", c.identityID), zap.Error(err))
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("ws: malformed frame", zap.String("identity", c.identityID), zap.Error(err))
			continue
		}

		if env.Event == models.EventTyping && !c.typingLimiter.Allow() {
			continue
		}

		c.hub.InboundCh <- Inbound{Client: c, Env: env}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
