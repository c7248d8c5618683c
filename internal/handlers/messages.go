package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"chat-sync-service/internal/gateway"
	"chat-sync-service/internal/models"
)

// Sender accepts an outbound message.
type Sender interface {
	Send(ctx context.Context, senderID int, receiverID int, content gateway.Content) (models.Message, error)
}

// Deliverer applies the fetch-acknowledgment and mark-seen transitions.
type Deliverer interface {
	MarkDelivered(ctx context.Context, viewerID int, peerID int) ([]int, error)
	MarkSeen(ctx context.Context, viewerID int, peerID int) ([]int, error)
}

// UnreadLister provides per-peer unread counts for the sidebar.
type UnreadLister interface {
	PeersWithUnread(ctx context.Context, viewerID int) ([]models.PeerUnread, error)
}

// ConversationReader loads the ordered message log between two users.
type ConversationReader interface {
	GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error)
}

// MessageHandler manages the message synchronization endpoints.
type MessageHandler struct {
	sender   Sender
	delivery Deliverer
	unread   UnreadLister
	reader   ConversationReader
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(sender Sender, delivery Deliverer, unread UnreadLister, reader ConversationReader) *MessageHandler {
	return &MessageHandler{sender: sender, delivery: delivery, unread: unread, reader: reader}
}

// ListPeers returns every conversation peer of the caller with their
// unread count, for the sidebar.
func (h *MessageHandler) ListPeers(c *gin.Context) {
	viewerID := c.GetInt("userID")

	peers, err := h.unread.PeersWithUnread(c.Request.Context(), viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load peers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

// GetConversation returns the ordered message log with a peer. Fetching is
// an implicit delivery acknowledgment: any sent message addressed to the
// caller advances to delivered before the log is read.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	peerID, ok := peerIDParam(c)
	if !ok {
		return
	}
	viewerID := c.GetInt("userID")

	if _, err := h.delivery.MarkDelivered(c.Request.Context(), viewerID, peerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge delivery"})
		return
	}

	msgs, err := h.reader.GetConversation(c.Request.Context(), viewerID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage persists and dispatches a message to a peer.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	receiverID, ok := peerIDParam(c)
	if !ok {
		return
	}
	senderID := c.GetInt("userID")
	if senderID == receiverID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	var req struct {
		Text    *string `json:"text"`
		Image   *string `json:"image"`
		ReplyTo *int    `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sender.Send(c.Request.Context(), senderID, receiverID, gateway.Content{
		Text:    req.Text,
		Image:   req.Image,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrEmptyContent), errors.Is(err, gateway.ErrBadReply):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message", "retryable": true})
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkSeen marks every message from the peer as seen. Idempotent.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	peerID, ok := peerIDParam(c)
	if !ok {
		return
	}
	viewerID := c.GetInt("userID")

	ids, err := h.delivery.MarkSeen(c.Request.Context(), viewerID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark seen"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seen_message_ids": lo.Ternary(ids != nil, ids, []int{})})
}

func peerIDParam(c *gin.Context) (int, bool) {
	peerID, err := strconv.Atoi(c.Param("id"))
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return 0, false
	}
	return peerID, true
}
