package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danikhandev/serve-u/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// relayChannel is the Redis Pub/Sub channel carrying relayed bus events
// between server instances.
const relayChannel = "chat:relay"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence collaborator of the chat core. Conversation
// and Message records are owned here; the hub and clients treat them as
// values they read, append to and optimistically mirror.
type Store interface {
	GetIdentity(id string) (*models.Identity, error)
	GetIdentities(ids []string) (map[string]models.Identity, error)

	EnsureConversation(consumerID, workerID string) (*models.Conversation, error)
	GetConversation(id string) (*models.Conversation, error)
	ConversationsFor(identityID string) ([]models.Conversation, error)

	History(conversationID string) ([]models.Message, error)
	AppendMessage(msg *models.Message) error
	MarkDelivered(messageIDs []string, at time.Time) error
	MarkRead(messageIDs []string, readBy string, at time.Time) error
	ResetUnread(conversationID, identityID string) error

	PublishRelay(payload []byte) error
	SubscribeRelay() *redis.PubSub
}

// Service implements Store over PostgreSQL and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb, Ctx: context.Background()}
}

func (s *Service) GetIdentity(id string) (*models.Identity, error) {
	var ident models.Identity
	err := s.DB.First(&ident, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (s *Service) GetIdentities(ids []string) (map[string]models.Identity, error) {
	var idents []models.Identity
	if err := s.DB.Where("id IN ?", ids).Find(&idents).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.Identity, len(idents))
	for _, ident := range idents {
		out[ident.ID] = ident
	}
	return out, nil
}

// EnsureConversation returns the existing conversation between the pair
// or creates it. A conversation exists once a consumer and worker begin
// exchanging messages and is never merged or split afterwards.
func (s *Service) EnsureConversation(consumerID, workerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("consumer_id = ? AND worker_id = ?", consumerID, workerID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		ID:         uuid.New().String(),
		ConsumerID: consumerID,
		WorkerID:   workerID,
		CreatedAt:  time.Now(),
	}
	if err := s.DB.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

func (s *Service) GetConversation(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Service) ConversationsFor(identityID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.
		Where("consumer_id = ? OR worker_id = ?", identityID, identityID).
		Order("last_message_at DESC NULLS LAST").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// History loads the full message timeline of a conversation, oldest
// first. Creation-timestamp ties keep insertion order via the id sort.
func (s *Service) History(conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.
		Preload("Attachments").
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendMessage persists a message with its attachments and updates the
// conversation preview plus the recipient's unread counter in one
// transaction.
func (s *Service) AppendMessage(msg *models.Message) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}

		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return err
		}

		unreadColumn := "worker_unread"
		if msg.SenderID == conv.WorkerID {
			unreadColumn = "consumer_unread"
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_text": previewText(msg),
				"last_message_at":   msg.CreatedAt,
				unreadColumn:        gorm.Expr(unreadColumn + " + 1"),
			}).Error
	})
}

func (s *Service) MarkDelivered(messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return s.DB.Model(&models.Message{}).
		Where("id IN ? AND delivered_at IS NULL", messageIDs).
		Update("delivered_at", at).Error
}

// MarkRead stamps the read timestamp on messages the reader did not
// send. ReadAt only ever transitions from NULL to a value.
func (s *Service) MarkRead(messageIDs []string, readBy string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return s.DB.Model(&models.Message{}).
		Where("id IN ? AND sender_id <> ? AND read_at IS NULL", messageIDs, readBy).
		Update("read_at", at).Error
}

// ResetUnread zeroes the unread counter owned by identityID. The
// counterpart's counter is untouched.
func (s *Service) ResetUnread(conversationID, identityID string) error {
	conv, err := s.GetConversation(conversationID)
	if err != nil {
		return err
	}
	column := ""
	switch identityID {
	case conv.ConsumerID:
		column = "consumer_unread"
	case conv.WorkerID:
		column = "worker_unread"
	default:
		return fmt.Errorf("identity %s is not a participant of %s", identityID, conversationID)
	}
	return s.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update(column, 0).Error
}

// PublishRelay forwards a relayed envelope to the other server
// instances through Redis Pub/Sub.
func (s *Service) PublishRelay(payload []byte) error {
	return s.Redis.Publish(s.Ctx, relayChannel, payload).Err()
}

func (s *Service) SubscribeRelay() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, relayChannel)
}

func previewText(msg *models.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.Attachments) > 0 {
		return msg.Attachments[0].FileName
	}
	return ""
}
