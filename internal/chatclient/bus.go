package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/danikhandev/serve-u/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	dialTimeout      = 10 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	outboundBuffer   = 64
	typingThrottleMs = 250

	busWriteWait = 10 * time.Second
	busPongWait  = 60 * time.Second
)

// Handlers receives the four server-pushed event kinds. Nil fields are
// skipped.
type Handlers struct {
	OnNewMessage   func(models.Message)
	OnUserTyping   func(models.UserTypingPayload)
	OnMessagesRead func(models.MessagesReadPayload)
	OnUserStatus   func(models.UserStatusPayload)
}

// Subscription is a live interest in one conversation's room. The bus
// re-joins every open subscription after a reconnect, so a holder never
// has to track connection state itself. Close leaves the room.
type Subscription struct {
	ConversationID string

	bus  *Bus
	once sync.Once
}

// Close leaves the conversation room and drops the subscription from
// the rejoin set.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Bus is the client side of the socket protocol. It owns one websocket
// connection, reconnects with exponential backoff when it drops, and
// replays room joins so subscribers keep receiving events.
type Bus struct {
	url      string
	token    string
	handlers Handlers
	log      *zap.Logger

	// pongWait bounds how long a silent connection is trusted; a missed
	// pong trips the read deadline and forces a reconnect. pingPeriod
	// stays under pongWait so a healthy server always answers in time.
	pongWait   time.Duration
	pingPeriod time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[*Subscription]struct{}
	sendCh  chan models.Envelope
	closed  bool
	closeCh chan struct{}

	lastTyping map[string]time.Time
}

// NewBus prepares a bus for the given socket URL. Connect must be
// called before any traffic flows.
func NewBus(url, token string, handlers Handlers, log *zap.Logger) *Bus {
	return &Bus{
		url:        url,
		token:      token,
		handlers:   handlers,
		log:        log,
		pongWait:   busPongWait,
		pingPeriod: (busPongWait * 9) / 10,
		subs:       make(map[*Subscription]struct{}),
		sendCh:     make(chan models.Envelope, outboundBuffer),
		closeCh:    make(chan struct{}),
		lastTyping: make(map[string]time.Time),
	}
}

// SetKeepalive overrides the pong deadline; the ping interval follows
// at nine tenths of it. Must be called before Connect. Test hook.
func (b *Bus) SetKeepalive(pongWait time.Duration) {
	b.pongWait = pongWait
	b.pingPeriod = (pongWait * 9) / 10
}

// Connect dials the server and starts the read and write loops. It
// keeps reconnecting until ctx is cancelled or Close is called.
func (b *Bus) Connect(ctx context.Context) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}
	b.setConn(conn)
	go b.writeLoop(ctx)
	go b.readLoop(ctx, conn)
	return nil
}

// Close tears the connection down and stops the reconnect loop.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.closeCh)
	if b.conn != nil {
		b.conn.Close()
	}
}

// Subscribe joins the conversation's room and registers it for rejoin
// after reconnects.
func (b *Bus) Subscribe(conversationID string) *Subscription {
	sub := &Subscription{ConversationID: conversationID, bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	b.send(models.NewEnvelope(models.EventJoinConversation, models.RoomPayload{ConversationID: conversationID}))
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	b.send(models.NewEnvelope(models.EventLeaveConversation, models.RoomPayload{ConversationID: sub.ConversationID}))
}

// SendMessage pushes a message to the room. The message carries the
// caller's optimistic ClientID so the server echo can be reconciled.
func (b *Bus) SendMessage(conversationID string, msg models.Message) {
	b.send(models.NewEnvelope(models.EventSendMessage, models.SendMessagePayload{
		ConversationID: conversationID,
		Message:        msg,
	}))
}

// SendTyping emits a typing indicator, throttled per conversation so a
// keypress storm does not flood the socket.
func (b *Bus) SendTyping(conversationID string, isTyping bool) {
	b.mu.Lock()
	last := b.lastTyping[conversationID]
	now := time.Now()
	if isTyping && now.Sub(last) < typingThrottleMs*time.Millisecond {
		b.mu.Unlock()
		return
	}
	b.lastTyping[conversationID] = now
	b.mu.Unlock()

	b.send(models.NewEnvelope(models.EventTyping, models.TypingPayload{
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}))
}

// MarkRead reports the batch of message ids the viewer has seen.
func (b *Bus) MarkRead(conversationID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	b.send(models.NewEnvelope(models.EventMarkRead, models.MarkReadPayload{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	}))
}

func (b *Bus) send(env models.Envelope) {
	select {
	case b.sendCh <- env:
	default:
		b.log.Warn("bus: outbound buffer full, dropping frame", zap.String("event", env.Event))
	}
}

func (b *Bus) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	if b.token != "" {
		header.Set("Authorization", "Bearer "+b.token)
	}
	conn, _, err := dialer.DialContext(ctx, b.url, header)
	if err != nil {
		return nil, &ChatError{Kind: ErrConnection, Op: "dial", Err: err}
	}
	return conn, nil
}

func (b *Bus) setConn(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(b.pongWait))
		return nil
	})
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
}

func (b *Bus) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(b.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-b.sendCh:
			conn := b.currentConn()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(busWriteWait))
			if err := conn.WriteJSON(env); err != nil {
				b.log.Warn("bus: write failed", zap.Error(err))
			}
		case <-ticker.C:
			conn := b.currentConn()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(busWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.log.Warn("bus: ping failed", zap.Error(err))
			}
		case <-b.closeCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) currentConn() *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bus) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.log.Warn("bus: connection lost", zap.Error(err))
			b.reconnect(ctx)
			return
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			b.log.Warn("bus: malformed frame", zap.Error(err))
			continue
		}
		b.dispatch(env)
	}
}

// reconnect retries with exponential backoff, then replays every open
// subscription's room join before normal traffic resumes.
func (b *Bus) reconnect(ctx context.Context) {
	backoff := initialBackoff
	for {
		select {
		case <-b.closeCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := b.dial(ctx)
		if err != nil {
			b.log.Info("bus: reconnect failed, backing off",
				zap.Duration("backoff", backoff), zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		b.setConn(conn)
		b.rejoinAll()
		go b.readLoop(ctx, conn)
		b.log.Info("bus: reconnected")
		return
	}
}

func (b *Bus) rejoinAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.subs))
	for sub := range b.subs {
		ids = append(ids, sub.ConversationID)
	}
	b.mu.Unlock()
	for _, id := range ids {
		b.send(models.NewEnvelope(models.EventJoinConversation, models.RoomPayload{ConversationID: id}))
	}
}

func (b *Bus) dispatch(env models.Envelope) {
	switch env.Event {
	case models.EventNewMessage:
		if b.handlers.OnNewMessage == nil {
			return
		}
		var msg models.Message
		if json.Unmarshal(env.Data, &msg) == nil {
			b.handlers.OnNewMessage(msg)
		}
	case models.EventUserTyping:
		if b.handlers.OnUserTyping == nil {
			return
		}
		var p models.UserTypingPayload
		if json.Unmarshal(env.Data, &p) == nil {
			b.handlers.OnUserTyping(p)
		}
	case models.EventMessagesRead:
		if b.handlers.OnMessagesRead == nil {
			return
		}
		var p models.MessagesReadPayload
		if json.Unmarshal(env.Data, &p) == nil {
			b.handlers.OnMessagesRead(p)
		}
	case models.EventUserStatus:
		if b.handlers.OnUserStatus == nil {
			return
		}
		var p models.UserStatusPayload
		if json.Unmarshal(env.Data, &p) == nil {
			b.handlers.OnUserStatus(p)
		}
	default:
		b.log.Debug("bus: unhandled event", zap.String("event", env.Event))
	}
}
