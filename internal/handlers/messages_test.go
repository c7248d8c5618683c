package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/gateway"
	"chat-sync-service/internal/models"
)

type senderMock struct{ mock.Mock }

func (m *senderMock) Send(ctx context.Context, senderID int, receiverID int, content gateway.Content) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type delivererMock struct{ mock.Mock }

func (m *delivererMock) MarkDelivered(ctx context.Context, viewerID int, peerID int) ([]int, error) {
	args := m.Called(ctx, viewerID, peerID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *delivererMock) MarkSeen(ctx context.Context, viewerID int, peerID int) ([]int, error) {
	args := m.Called(ctx, viewerID, peerID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type unreadListerMock struct{ mock.Mock }

func (m *unreadListerMock) PeersWithUnread(ctx context.Context, viewerID int) ([]models.PeerUnread, error) {
	args := m.Called(ctx, viewerID)
	var peers []models.PeerUnread
	if val := args.Get(0); val != nil {
		peers = val.([]models.PeerUnread)
	}
	return peers, args.Error(1)
}

type readerMock struct{ mock.Mock }

func (m *readerMock) GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/api/messages/users", handler.ListPeers)
	r.GET("/api/messages/:id", handler.GetConversation)
	r.POST("/api/messages/send/:id", handler.SendMessage)
	r.PUT("/api/messages/seen/:id", handler.MarkSeen)
	return r
}

func TestListPeersSuccess(t *testing.T) {
	unread := new(unreadListerMock)
	handler := NewMessageHandler(nil, nil, unread, nil)
	router := setupMessageRouter(handler)

	unread.On("PeersWithUnread", mock.Anything, 1).
		Return([]models.PeerUnread{{PeerID: 2, UnreadCount: 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Peers []models.PeerUnread `json:"peers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []models.PeerUnread{{PeerID: 2, UnreadCount: 3}}, resp.Peers)
	unread.AssertExpectations(t)
}

func TestListPeersError(t *testing.T) {
	unread := new(unreadListerMock)
	handler := NewMessageHandler(nil, nil, unread, nil)
	router := setupMessageRouter(handler)

	unread.On("PeersWithUnread", mock.Anything, 1).
		Return(([]models.PeerUnread)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	unread.AssertExpectations(t)
}

func TestGetConversationAcknowledgesDeliveryFirst(t *testing.T) {
	deliverer := new(delivererMock)
	reader := new(readerMock)
	handler := NewMessageHandler(nil, deliverer, nil, reader)
	router := setupMessageRouter(handler)

	deliverer.On("MarkDelivered", mock.Anything, 1, 2).Return([]int{5}, nil).Once()
	reader.On("GetConversation", mock.Anything, 1, 2).
		Return([]models.Message{{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.StatusDelivered}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"delivered"`)
	deliverer.AssertExpectations(t)
	reader.AssertExpectations(t)
}

func TestGetConversationInvalidPeerID(t *testing.T) {
	handler := NewMessageHandler(nil, new(delivererMock), nil, new(readerMock))
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageSuccess(t *testing.T) {
	sender := new(senderMock)
	handler := NewMessageHandler(sender, nil, nil, nil)
	router := setupMessageRouter(handler)

	text := "hi"
	sender.On("Send", mock.Anything, 1, 2, mock.MatchedBy(func(c gateway.Content) bool {
		return c.Text != nil && *c.Text == "hi"
	})).Return(models.Message{ID: 7, SenderID: 1, ReceiverID: 2, Text: &text, Status: models.StatusSent}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	sender.AssertExpectations(t)
}

func TestSendMessageValidationErrors(t *testing.T) {
	sender := new(senderMock)
	handler := NewMessageHandler(sender, nil, nil, nil)
	router := setupMessageRouter(handler)

	sender.On("Send", mock.Anything, 1, 2, mock.Anything).
		Return(models.Message{}, gateway.ErrEmptyContent).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Messaging yourself is rejected before the gateway runs.
	req = httptest.NewRequest(http.MethodPost, "/api/messages/send/1", bytes.NewBufferString(`{"text":"hi"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	sender.AssertExpectations(t)
}

func TestSendMessagePersistenceFailureIsRetryable(t *testing.T) {
	sender := new(senderMock)
	handler := NewMessageHandler(sender, nil, nil, nil)
	router := setupMessageRouter(handler)

	sender.On("Send", mock.Anything, 1, 2, mock.Anything).
		Return(models.Message{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
	sender.AssertExpectations(t)
}

func TestMarkSeenSuccess(t *testing.T) {
	deliverer := new(delivererMock)
	handler := NewMessageHandler(nil, deliverer, nil, nil)
	router := setupMessageRouter(handler)

	deliverer.On("MarkSeen", mock.Anything, 1, 2).Return([]int{3, 4}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/messages/seen/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seen_message_ids":[3,4]`)
	deliverer.AssertExpectations(t)
}

func TestMarkSeenEmptyBatch(t *testing.T) {
	deliverer := new(delivererMock)
	handler := NewMessageHandler(nil, deliverer, nil, nil)
	router := setupMessageRouter(handler)

	deliverer.On("MarkSeen", mock.Anything, 1, 2).Return(([]int)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/messages/seen/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"seen_message_ids":[]`)
	deliverer.AssertExpectations(t)
}
