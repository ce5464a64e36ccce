package models

import "time"

// Conversation is a 1-on-1 thread between one consumer and one worker.
// It is created the first time the pair exchange messages and is never
// merged or split afterwards.
type Conversation struct {
	// ID is the unique identifier for the conversation (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// ConsumerID is the identity acting as consumer for this conversation.
	ConsumerID string `gorm:"type:text;not null;index:idx_conversation_pair" json:"consumerId"`
	// WorkerID is the identity acting as worker for this conversation.
	WorkerID string `gorm:"type:text;not null;index:idx_conversation_pair" json:"workerId"`

	// LastMessageText and LastMessageAt form the sidebar preview.
	LastMessageText string     `gorm:"type:text" json:"lastMessageText"`
	LastMessageAt   *time.Time `json:"lastMessageAt"`

	// Per-participant unread counters. Each counter is zeroed only when
	// its owning participant opens the conversation.
	ConsumerUnread int `gorm:"default:0" json:"consumerUnreadCount"`
	WorkerUnread   int `gorm:"default:0" json:"workerUnreadCount"`

	CreatedAt time.Time `json:"createdAt"`
}

// ParticipantRole reports the role identityID acts under in this
// conversation, or an empty role when it is not a participant.
func (c Conversation) ParticipantRole(identityID string) Role {
	switch identityID {
	case c.ConsumerID:
		return RoleConsumer
	case c.WorkerID:
		return RoleWorker
	}
	return ""
}

// CounterpartID returns the other participant's identity id.
func (c Conversation) CounterpartID(identityID string) string {
	if identityID == c.ConsumerID {
		return c.WorkerID
	}
	return c.ConsumerID
}

// UnreadFor returns the unread counter owned by identityID.
func (c Conversation) UnreadFor(identityID string) int {
	if identityID == c.ConsumerID {
		return c.ConsumerUnread
	}
	return c.WorkerUnread
}
