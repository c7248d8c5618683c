package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateStatusBulk(ctx context.Context, senderID int, receiverID int, from []models.Status, to models.Status) ([]int, error) {
	args := m.Called(ctx, senderID, receiverID, from, to)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, viewerID int, peerID int) (int, error) {
	args := m.Called(ctx, viewerID, peerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListPeers(ctx context.Context, viewerID int) ([]int, error) {
	args := m.Called(ctx, viewerID)
	var peers []int
	if val := args.Get(0); val != nil {
		peers = val.([]int)
	}
	return peers, args.Error(1)
}

func (m *MessageRepositoryMock) ResolveReplyTarget(ctx context.Context, messageID int) (*models.ReplyPreview, error) {
	args := m.Called(ctx, messageID)
	var preview *models.ReplyPreview
	if val := args.Get(0); val != nil {
		preview = val.(*models.ReplyPreview)
	}
	return preview, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)

// NotifierRecorder captures push events per user for assertions.
type NotifierRecorder struct {
	mu     sync.Mutex
	Events map[int][]models.PushEvent

	// Online marks which users count as having live endpoints.
	Online map[int]bool
}

func NewNotifierRecorder(onlineUsers ...int) *NotifierRecorder {
	online := make(map[int]bool, len(onlineUsers))
	for _, id := range onlineUsers {
		online[id] = true
	}
	return &NotifierRecorder{Events: make(map[int][]models.PushEvent), Online: online}
}

func (n *NotifierRecorder) PushToUser(userID int, event models.PushEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.Online[userID] {
		return false
	}
	n.Events[userID] = append(n.Events[userID], event)
	return true
}

func (n *NotifierRecorder) IsOnline(userID int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Online[userID]
}

// EventsFor returns a copy of the events pushed to one user.
func (n *NotifierRecorder) EventsFor(userID int) []models.PushEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := make([]models.PushEvent, len(n.Events[userID]))
	copy(events, n.Events[userID])
	return events
}

// CounterRecorder captures counter notifications for assertions.
type CounterRecorder struct {
	mu      sync.Mutex
	Created [][2]int // (receiverID, senderID)
	Seen    [][2]int // (viewerID, peerID)
}

func (c *CounterRecorder) OnMessageCreated(receiverID int, senderID int) {
	c.mu.Lock()
	c.Created = append(c.Created, [2]int{receiverID, senderID})
	c.mu.Unlock()
}

func (c *CounterRecorder) OnMessagesSeen(ctx context.Context, viewerID int, peerID int) {
	c.mu.Lock()
	c.Seen = append(c.Seen, [2]int{viewerID, peerID})
	c.mu.Unlock()
}
