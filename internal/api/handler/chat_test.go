package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danikhandev/serve-u/internal/api/handler"
	"github.com/danikhandev/serve-u/internal/chathub"
	"github.com/danikhandev/serve-u/internal/config"
	"github.com/danikhandev/serve-u/internal/models"
	"github.com/danikhandev/serve-u/internal/storage"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// MockStore implements storage.Store for handler tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetIdentity(id string) (*models.Identity, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockStore) GetIdentities(ids []string) (map[string]models.Identity, error) {
	args := m.Called(ids)
	return args.Get(0).(map[string]models.Identity), args.Error(1)
}

func (m *MockStore) EnsureConversation(consumerID, workerID string) (*models.Conversation, error) {
	args := m.Called(consumerID, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStore) GetConversation(id string) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStore) ConversationsFor(identityID string) ([]models.Conversation, error) {
	args := m.Called(identityID)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockStore) History(conversationID string) ([]models.Message, error) {
	args := m.Called(conversationID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) AppendMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStore) MarkDelivered(messageIDs []string, at time.Time) error {
	args := m.Called(messageIDs, at)
	return args.Error(0)
}

func (m *MockStore) MarkRead(messageIDs []string, readBy string, at time.Time) error {
	args := m.Called(messageIDs, readBy, at)
	return args.Error(0)
}

func (m *MockStore) ResetUnread(conversationID, identityID string) error {
	args := m.Called(conversationID, identityID)
	return args.Error(0)
}

func (m *MockStore) PublishRelay(payload []byte) error {
	args := m.Called(payload)
	return args.Error(0)
}

func (m *MockStore) SubscribeRelay() *redis.PubSub {
	m.Called()
	return nil
}

var _ storage.Store = (*MockStore)(nil)

func testToken(t *testing.T, identityID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identityID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestRouter(store storage.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWTSecret:        testSecret,
		MaxImageMB:       5,
		MaxDocumentMB:    10,
		MaxUploadMB:      25,
		VoiceMaxDuration: 600 * time.Second,
	}
	hub := chathub.NewHub(nil, nil, zap.NewNop())
	h := handler.NewHandler(hub, store, nil, cfg, zap.NewNop())

	r := gin.New()
	api := r.Group("/api", h.AuthMiddleware())
	api.GET("/limits", h.Limits)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id/messages", h.GetHistory)
	api.POST("/conversations/:id/messages", h.PostMessage)
	api.POST("/conversations/:id/read", h.MarkRead)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingOrBadTokenRejected(t *testing.T) {
	r := newTestRouter(new(MockStore))

	w := doRequest(t, r, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListConversations_ResolvesCounterparts(t *testing.T) {
	store := new(MockStore)
	store.On("ConversationsFor", "c1").Return([]models.Conversation{
		{ID: "v1", ConsumerID: "c1", WorkerID: "w1", ConsumerUnread: 2},
	}, nil)
	store.On("GetIdentities", []string{"w1"}).Return(map[string]models.Identity{
		"w1": {ID: "w1", FirstName: "Ada", LastName: "Nguyen"},
	}, nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodGet, "/api/conversations", testToken(t, "c1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversations []struct {
			ID          string          `json:"id"`
			Counterpart models.Identity `json:"counterpart"`
			Online      bool            `json:"online"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "w1", resp.Conversations[0].Counterpart.ID)
	assert.False(t, resp.Conversations[0].Online)
	store.AssertExpectations(t)
}

func TestGetHistory_ResetsViewerUnread(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)
	store.On("History", "v1").Return([]models.Message{{ID: "m1", Content: "hi"}}, nil)
	store.On("ResetUnread", "v1", "c1").Return(nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodGet, "/api/conversations/v1/messages", testToken(t, "c1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	store.AssertCalled(t, "ResetUnread", "v1", "c1")
}

func TestGetHistory_NonParticipantForbidden(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodGet, "/api/conversations/v1/messages", testToken(t, "intruder"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetHistory_UnknownConversation(t *testing.T) {
	store := new(MockStore)
	store.On("GetConversation", "nope").Return(nil, storage.ErrNotFound)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodGet, "/api/conversations/nope/messages", testToken(t, "c1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessage_EchoesClientIDWithDurableID(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)
	store.On("AppendMessage", mock.AnythingOfType("*models.Message")).Return(nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodPost, "/api/conversations/v1/messages", testToken(t, "c1"),
		gin.H{"clientId": "tmp-42", "content": "on my way"})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg.ID, "server assigns the durable id")
	assert.Equal(t, "tmp-42", msg.ClientID, "response echoes the optimistic id")
	assert.Equal(t, "c1", msg.SenderID)
	assert.Equal(t, models.RoleConsumer, msg.SenderRole)
	assert.Equal(t, models.KindText, msg.Kind)
}

func TestPostMessage_AttachmentKindInferred(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)
	store.On("AppendMessage", mock.AnythingOfType("*models.Message")).Return(nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodPost, "/api/conversations/v1/messages", testToken(t, "c1"),
		gin.H{"attachments": []gin.H{{"fileName": "site.jpg", "fileType": "image/jpeg", "fileSize": 1024}}})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, models.KindImage, msg.Kind)
	require.Len(t, msg.Attachments, 1)
	assert.NotEmpty(t, msg.Attachments[0].ID)
	assert.Equal(t, msg.ID, msg.Attachments[0].MessageID)

	w = doRequest(t, r, http.MethodPost, "/api/conversations/v1/messages", testToken(t, "c1"),
		gin.H{"attachments": []gin.H{{"fileName": "quote.pdf", "fileType": "application/pdf", "fileSize": 2048}}})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, models.KindDocument, msg.Kind)
}

func TestPostMessage_EmptyRejected(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodPost, "/api/conversations/v1/messages", testToken(t, "c1"),
		gin.H{"clientId": "tmp-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLimits_AdvertisesConfiguredCaps(t *testing.T) {
	r := newTestRouter(new(MockStore))

	w := doRequest(t, r, http.MethodGet, "/api/limits", testToken(t, "c1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		MaxImageMb              int `json:"maxImageMb"`
		MaxDocumentMb           int `json:"maxDocumentMb"`
		MaxUploadMb             int `json:"maxUploadMb"`
		VoiceMaxDurationSeconds int `json:"voiceMaxDurationSeconds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.MaxImageMb)
	assert.Equal(t, 10, resp.MaxDocumentMb)
	assert.Equal(t, 25, resp.MaxUploadMb)
	assert.Equal(t, 600, resp.VoiceMaxDurationSeconds)
}

func TestMarkRead_PersistsAndResets(t *testing.T) {
	store := new(MockStore)
	conv := &models.Conversation{ID: "v1", ConsumerID: "c1", WorkerID: "w1"}
	store.On("GetConversation", "v1").Return(conv, nil)
	store.On("MarkRead", []string{"m1", "m2"}, "w1", mock.AnythingOfType("time.Time")).Return(nil)
	store.On("ResetUnread", "v1", "w1").Return(nil)

	r := newTestRouter(store)
	w := doRequest(t, r, http.MethodPost, "/api/conversations/v1/read", testToken(t, "w1"),
		gin.H{"messageIds": []string{"m1", "m2"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	store.AssertExpectations(t)
}
