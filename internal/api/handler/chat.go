package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/danikhandev/serve-u/internal/media"
	"github.com/danikhandev/serve-u/internal/models"
	"github.com/danikhandev/serve-u/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// conversationRow is one entry of the directory feed.
type conversationRow struct {
	models.Conversation
	Counterpart models.Identity `json:"counterpart"`
	Online      bool            `json:"online"`
}

// ListConversations returns the viewer's directory feed with resolved
// counterpart identities and live presence flags.
func (h *Handler) ListConversations(c *gin.Context) {
	viewer := identityID(c)

	convs, err := h.Store.ConversationsFor(viewer)
	if err != nil {
		h.Log.Error("chat: list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	counterpartIDs := make([]string, 0, len(convs))
	for _, conv := range convs {
		counterpartIDs = append(counterpartIDs, conv.CounterpartID(viewer))
	}
	identities, err := h.Store.GetIdentities(counterpartIDs)
	if err != nil {
		h.Log.Error("chat: resolve counterparts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	rows := make([]conversationRow, 0, len(convs))
	for _, conv := range convs {
		counterpart := identities[conv.CounterpartID(viewer)]
		rows = append(rows, conversationRow{
			Conversation: conv,
			Counterpart:  counterpart,
			Online:       h.Hub.Presence().IsOnline(counterpart.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}

type startConversationRequest struct {
	WorkerID   string `json:"workerId"`
	ConsumerID string `json:"consumerId"`
}

// StartConversation finds or creates the thread between the viewer and
// the named counterpart. Idempotent: the same pair always maps to the
// same conversation.
func (h *Handler) StartConversation(c *gin.Context) {
	viewer := identityID(c)

	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	consumerID, workerID := viewer, req.WorkerID
	if req.ConsumerID != "" {
		consumerID, workerID = req.ConsumerID, viewer
	}
	if consumerID == "" || workerID == "" || consumerID == workerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a consumer and a distinct worker are required"})
		return
	}

	conv, err := h.Store.EnsureConversation(consumerID, workerID)
	if err != nil {
		h.Log.Error("chat: ensure conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// GetHistory returns the conversation's messages oldest first and
// zeroes the viewer's unread counter, since opening the thread is what
// consumes the badge.
func (h *Handler) GetHistory(c *gin.Context) {
	viewer := identityID(c)
	conversationID := c.Param("id")

	conv, ok := h.participantConversation(c, conversationID, viewer)
	if !ok {
		return
	}

	msgs, err := h.Store.History(conv.ID)
	if err != nil {
		h.Log.Error("chat: load history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	if err := h.Store.ResetUnread(conv.ID, viewer); err != nil {
		h.Log.Warn("chat: reset unread", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type postMessageRequest struct {
	ClientID    string              `json:"clientId"`
	Kind        models.MessageKind  `json:"kind"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
}

// PostMessage persists a message and returns the durable record. The
// response echoes the caller's clientId so the optimistic entry can be
// reconciled in place.
func (h *Handler) PostMessage(c *gin.Context) {
	viewer := identityID(c)
	conversationID := c.Param("id")

	conv, ok := h.participantConversation(c, conversationID, viewer)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a message needs text or attachments"})
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindText
		if len(req.Attachments) > 0 {
			kind = media.KindToMessageKind(media.Classify(req.Attachments[0]))
		}
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       viewer,
		SenderRole:     conv.ParticipantRole(viewer),
		Kind:           kind,
		Content:        req.Content,
		CreatedAt:      time.Now(),
		Attachments:    req.Attachments,
		ClientID:       req.ClientID,
	}
	for i := range msg.Attachments {
		if msg.Attachments[i].ID == "" {
			msg.Attachments[i].ID = uuid.New().String()
		}
		msg.Attachments[i].MessageID = msg.ID
	}

	if err := h.Store.AppendMessage(msg); err != nil {
		h.Log.Error("chat: append message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// MarkRead persists read receipts synchronously and zeroes the viewer's
// unread counter. The socket path is the fast lane; this route is the
// durable one.
func (h *Handler) MarkRead(c *gin.Context) {
	viewer := identityID(c)
	conversationID := c.Param("id")

	conv, ok := h.participantConversation(c, conversationID, viewer)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.MessageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageIds required"})
		return
	}

	if err := h.Store.MarkRead(req.MessageIDs, viewer, time.Now()); err != nil {
		h.Log.Error("chat: mark read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	if err := h.Store.ResetUnread(conv.ID, viewer); err != nil {
		h.Log.Warn("chat: reset unread", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// participantConversation loads the conversation and enforces that the
// viewer is one of its two participants.
func (h *Handler) participantConversation(c *gin.Context, conversationID, viewer string) (*models.Conversation, bool) {
	conv, err := h.Store.GetConversation(conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return nil, false
	}
	if err != nil {
		h.Log.Error("chat: load conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return nil, false
	}
	if conv.ParticipantRole(viewer) == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return nil, false
	}
	return conv, true
}
