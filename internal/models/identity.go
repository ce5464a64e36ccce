package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Role is the perspective an identity acts under within a conversation.
// One account may act as a consumer in one conversation and as a worker
// in another, but never as both within the same conversation.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleWorker   Role = "worker"
)

// Identity represents an actor in the marketplace. The chat core only
// reads identities; profile editing lives elsewhere.
type Identity struct {
	ID        string `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"type:text" json:"firstName"`
	LastName  string `gorm:"type:text" json:"lastName"`
	Email     string `gorm:"uniqueIndex" json:"email"`
	AvatarURL string `gorm:"type:text" json:"avatarUrl"`
	// Skills is populated for identities that also offer services.
	Skills pq.StringArray `gorm:"type:text[]" json:"skills,omitempty"`
}

// BeforeCreate is a GORM hook that assigns a UUID when none is set.
func (i *Identity) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return
}

// DisplayName returns the name shown in the conversation directory.
func (i Identity) DisplayName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}
