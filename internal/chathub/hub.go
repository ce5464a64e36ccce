package chathub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danikhandev/serve-u/internal/metrics"
	"github.com/danikhandev/serve-u/internal/models"
	"github.com/danikhandev/serve-u/internal/storage"
	"github.com/danikhandev/serve-u/internal/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// relayFrame is the cross-instance form of a relayed envelope. Origin
// lets an instance skip frames it published itself.
type relayFrame struct {
	Origin         string          `json:"origin"`
	ConversationID string          `json:"conversationId"`
	Env            models.Envelope `json:"env"`
}

// Hub owns every live connection, the room router and the presence
// registry. All mutable state is touched only inside Run's goroutine;
// the channels are the API.
type Hub struct {
	RegisterCh   chan Client
	UnregisterCh chan Client
	InboundCh    chan Inbound

	conns    map[Client]struct{}
	rooms    *RoomSet
	presence *PresenceRegistry

	store      storage.Store
	events     stream.Publisher
	relayCh    chan relayFrame
	instanceID string

	log *zap.Logger
}

// NewHub wires a hub. store and events may be nil in tests; relay and
// async persistence are then disabled.
func NewHub(store storage.Store, events stream.Publisher, log *zap.Logger) *Hub {
	return &Hub{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		InboundCh:    make(chan Inbound),
		conns:        make(map[Client]struct{}),
		rooms:        NewRoomSet(),
		presence:     NewPresenceRegistry(),
		store:        store,
		events:       events,
		relayCh:      make(chan relayFrame, 64),
		instanceID:   uuid.New().String(),
		log:          log,
	}
}

// Presence exposes the registry for read-only use by HTTP handlers.
func (h *Hub) Presence() *PresenceRegistry { return h.presence }

// Run is the hub's dispatcher goroutine.
func (h *Hub) Run() {
	h.startRelayListener()

	for {
		select {
		case c := <-h.RegisterCh:
			h.handleRegister(c)
		case c := <-h.UnregisterCh:
			h.handleUnregister(c)
		case in := <-h.InboundCh:
			h.handleInbound(in)
		case frame := <-h.relayCh:
			h.handleRelay(frame)
		}
	}
}

// startRelayListener subscribes to the Redis relay channel so events
// published by other instances reach this instance's room members.
func (h *Hub) startRelayListener() {
	if h.store == nil {
		return
	}
	pubsub := h.store.SubscribeRelay()
	go func() {
		defer pubsub.Close()
		for msg := range pubsub.Channel() {
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.log.Warn("hub: malformed relay frame", zap.Error(err))
				continue
			}
			if frame.Origin == h.instanceID {
				continue
			}
			h.relayCh <- frame
		}
	}()
}

func (h *Hub) handleRegister(c Client) {
	h.conns[c] = struct{}{}
	metrics.Connections.Inc()

	// The newcomer learns about everyone already online, one event per
	// identity, before its own status is announced.
	for _, id := range h.presence.Online() {
		h.trySend(c, models.NewEnvelope(models.EventUserStatus, models.UserStatusPayload{
			UserID: id,
			Status: models.StatusOnline,
		}))
	}

	if h.presence.Add(c.IdentityID()) {
		metrics.OnlineIdentities.Inc()
		h.broadcastAll(models.NewEnvelope(models.EventUserStatus, models.UserStatusPayload{
			UserID: c.IdentityID(),
			Status: models.StatusOnline,
		}))
	}
	h.log.Info("hub: connection registered", zap.String("identity", c.IdentityID()))
}

func (h *Hub) handleUnregister(c Client) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	h.rooms.RemoveClient(c)
	metrics.Connections.Dec()

	if h.presence.Remove(c.IdentityID()) {
		metrics.OnlineIdentities.Dec()
		h.broadcastAll(models.NewEnvelope(models.EventUserStatus, models.UserStatusPayload{
			UserID: c.IdentityID(),
			Status: models.StatusOffline,
		}))
	}
	c.Close()
	h.log.Info("hub: connection unregistered", zap.String("identity", c.IdentityID()))
}

func (h *Hub) handleInbound(in Inbound) {
	switch in.Env.Event {
	case models.EventJoinConversation:
		var p models.RoomPayload
		if !h.decode(in.Env, &p) {
			return
		}
		h.rooms.Join(p.ConversationID, in.Client)
	case models.EventLeaveConversation:
		var p models.RoomPayload
		if !h.decode(in.Env, &p) {
			return
		}
		h.rooms.Leave(p.ConversationID, in.Client)
	case models.EventSendMessage:
		h.handleSendMessage(in)
	case models.EventTyping:
		h.handleTyping(in)
	case models.EventMarkRead:
		h.handleMarkRead(in)
	default:
		h.log.Warn("hub: unknown event", zap.String("event", in.Env.Event))
	}
}

// handleSendMessage relays a message to every other member of the room,
// stamps delivery, and queues the delivery mark for async persistence.
// The sending connection never receives its own relayed copy; it
// already holds the message from its optimistic insert.
func (h *Hub) handleSendMessage(in Inbound) {
	var p models.SendMessagePayload
	if !h.decode(in.Env, &p) {
		return
	}
	msg := p.Message
	msg.ConversationID = p.ConversationID
	msg.SenderID = in.Client.IdentityID()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.DeliveredAt = &now

	out := models.NewEnvelope(models.EventNewMessage, msg)
	h.relayToRoom(p.ConversationID, out, in.Client)
	h.publishRelay(p.ConversationID, out)
	h.publishEvent(stream.Event{
		Kind:           stream.EventMessagesDelivered,
		ConversationID: p.ConversationID,
		MessageIDs:     []string{msg.ID},
		At:             now,
	})
	metrics.MessagesRelayed.Inc()
}

func (h *Hub) handleTyping(in Inbound) {
	var p models.TypingPayload
	if !h.decode(in.Env, &p) {
		return
	}
	// Fire-and-forget: no acknowledgement, nothing persisted.
	out := models.NewEnvelope(models.EventUserTyping, models.UserTypingPayload{
		UserID:   in.Client.IdentityID(),
		IsTyping: p.IsTyping,
	})
	h.relayToRoom(p.ConversationID, out, in.Client)
	h.publishRelay(p.ConversationID, out)
}

// handleMarkRead relays the batch now and persists the read timestamps
// asynchronously through the event stream.
func (h *Hub) handleMarkRead(in Inbound) {
	var p models.MarkReadPayload
	if !h.decode(in.Env, &p) {
		return
	}
	out := models.NewEnvelope(models.EventMessagesRead, models.MessagesReadPayload{
		MessageIDs:     p.MessageIDs,
		ReadBy:         in.Client.IdentityID(),
		ConversationID: p.ConversationID,
	})
	h.relayToRoom(p.ConversationID, out, in.Client)
	h.publishRelay(p.ConversationID, out)
	h.publishEvent(stream.Event{
		Kind:           stream.EventMessagesRead,
		ConversationID: p.ConversationID,
		MessageIDs:     p.MessageIDs,
		ReadBy:         in.Client.IdentityID(),
		At:             time.Now(),
	})
}

func (h *Hub) handleRelay(frame relayFrame) {
	for _, c := range h.rooms.Members(frame.ConversationID) {
		h.trySend(c, frame.Env)
	}
}

// relayToRoom delivers env to every room member except the source
// connection. Relay order is the per-room total order: members all see
// events in the order this loop runs.
func (h *Hub) relayToRoom(conversationID string, env models.Envelope, source Client) {
	for _, c := range h.rooms.Members(conversationID) {
		if c == source {
			continue
		}
		h.trySend(c, env)
	}
}

func (h *Hub) broadcastAll(env models.Envelope) {
	for c := range h.conns {
		h.trySend(c, env)
	}
}

// trySend never blocks the dispatcher. A connection whose buffer is
// full is dropped; its read pump will unregister it.
func (h *Hub) trySend(c Client, env models.Envelope) {
	select {
	case c.SendCh() <- env:
	default:
		metrics.EventsDropped.Inc()
		h.log.Warn("hub: slow client, dropping connection", zap.String("identity", c.IdentityID()))
		h.handleUnregister(c)
	}
}

func (h *Hub) publishRelay(conversationID string, env models.Envelope) {
	if h.store == nil {
		return
	}
	payload, err := json.Marshal(relayFrame{
		Origin:         h.instanceID,
		ConversationID: conversationID,
		Env:            env,
	})
	if err != nil {
		return
	}
	if err := h.store.PublishRelay(payload); err != nil {
		h.log.Error("hub: relay publish failed", zap.Error(err))
	}
}

func (h *Hub) publishEvent(ev stream.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(context.Background(), ev); err != nil {
		h.log.Error("hub: event publish failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

func (h *Hub) decode(env models.Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.log.Warn("hub: malformed payload", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	return true
}
