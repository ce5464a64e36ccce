package models

import "time"

// MessageKind describes what a message carries. Audio arrives as a
// DOCUMENT-style attachment message whose attachment classifies as audio.
type MessageKind string

const (
	KindText     MessageKind = "TEXT"
	KindImage    MessageKind = "IMAGE"
	KindDocument MessageKind = "DOCUMENT"
)

// Message belongs to exactly one conversation. Messages are immutable
// once created except for DeliveredAt and ReadAt, which transition from
// nil to a value at most once.
type Message struct {
	ID             string      `gorm:"primaryKey" json:"id"`
	ConversationID string      `gorm:"type:text;not null;index:idx_message_timeline" json:"conversationId"`
	SenderID       string      `gorm:"type:text;not null" json:"senderId"`
	SenderRole     Role        `gorm:"type:text;not null" json:"senderRole"`
	Kind           MessageKind `gorm:"type:text;not null" json:"messageType"`
	Content        string      `gorm:"type:text" json:"content"`

	CreatedAt   time.Time  `gorm:"index:idx_message_timeline" json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`

	// ClientID is the sender-generated provisional id used for optimistic
	// rendering. The timeline reducer replaces the provisional entry in
	// place once the durable ID is assigned. Never persisted.
	ClientID string `gorm:"-" json:"clientId,omitempty"`
}

// Attachment is the single canonical attachment shape. It is write-once;
// any legacy field spellings are adapted at the persistence boundary,
// not in rendering code.
type Attachment struct {
	ID        string `gorm:"primaryKey" json:"id"`
	MessageID string `gorm:"type:text;index" json:"messageId"`
	// FileName is the original name, used for extension fallback
	// classification and for save-as downloads.
	FileName string `gorm:"type:text;not null" json:"fileName"`
	// FileType is the MIME-ish type string reported at upload time.
	FileType string `gorm:"type:text" json:"fileType"`
	FileSize int64  `gorm:"not null" json:"fileSize"`
	FileURL  string `gorm:"type:text;not null" json:"fileUrl"`
	// ThumbnailURL is set for images once the media store has produced one.
	ThumbnailURL string `gorm:"type:text" json:"thumbnailUrl,omitempty"`
}
