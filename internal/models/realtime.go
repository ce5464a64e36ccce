package models

import "encoding/json"

// Event names carried over the bus. The client-to-server and
// server-to-client vocabularies are distinct on purpose: a connection
// never receives the relayed copy of an event it emitted.
const (
	// client → server
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventTyping            = "typing"
	EventMarkRead          = "mark-read"

	// server → client
	EventNewMessage   = "new-message"
	EventUserTyping   = "user-typing"
	EventMessagesRead = "messages-read"
	EventUserStatus   = "user-status"
)

// Presence statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope is the wire frame for every bus event, both directions.
// Data holds the event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an Envelope. Payload types here are
// all plain structs; marshalling them cannot fail.
func NewEnvelope(event string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Event: event, Data: data}
}

// RoomPayload is the payload of join-conversation and leave-conversation.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload is the payload of send-message.
type SendMessagePayload struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// TypingPayload is the payload of the client-side typing event.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// UserTypingPayload is the payload of the relayed user-typing event.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// MarkReadPayload is the payload of mark-read.
type MarkReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

// MessagesReadPayload is the payload of the relayed messages-read event.
type MessagesReadPayload struct {
	MessageIDs     []string `json:"messageIds"`
	ReadBy         string   `json:"readBy"`
	ConversationID string   `json:"conversationId"`
}

// UserStatusPayload is the payload of user-status. Presence is global:
// these are broadcast to every connection, not just room members.
type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}
