package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/repositories"
)

// MemoryMessageStore is an in-memory MessageRepository with the same
// status-guard semantics as the SQL implementation, for end-to-end flow
// tests without a database.
type MemoryMessageStore struct {
	mu       sync.Mutex
	nextID   int
	messages map[int]*models.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{nextID: 1, messages: make(map[int]*models.Message)}
}

func (s *MemoryMessageStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID
	s.nextID++
	msg.Status = models.StatusSent
	msg.CreatedAt = time.Now()
	stored := msg
	s.messages[msg.ID] = &stored
	return msg, nil
}

func (s *MemoryMessageStore) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return *msg, nil
}

func (s *MemoryMessageStore) GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []models.Message
	for _, msg := range s.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) || (msg.SenderID == userB && msg.ReceiverID == userA) {
			copied := *msg
			if copied.ReplyTo != nil {
				if target, ok := s.messages[*copied.ReplyTo]; ok {
					copied.ReplyPreview = &models.ReplyPreview{
						ID:       target.ID,
						SenderID: target.SenderID,
						Text:     target.Text,
						Image:    target.Image,
					}
				}
			}
			msgs = append(msgs, copied)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (s *MemoryMessageStore) UpdateStatusBulk(ctx context.Context, senderID int, receiverID int, from []models.Status, to models.Status) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromSet := make(map[models.Status]bool, len(from))
	for _, status := range from {
		fromSet[status] = true
	}

	var ids []int
	for _, msg := range s.messages {
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && fromSet[msg.Status] {
			msg.Status = to
			ids = append(ids, msg.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *MemoryMessageStore) CountUnread(ctx context.Context, viewerID int, peerID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, msg := range s.messages {
		if msg.SenderID == peerID && msg.ReceiverID == viewerID && msg.Status != models.StatusSeen {
			count++
		}
	}
	return count, nil
}

func (s *MemoryMessageStore) ListPeers(ctx context.Context, viewerID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peerSet := make(map[int]bool)
	for _, msg := range s.messages {
		if msg.SenderID == viewerID {
			peerSet[msg.ReceiverID] = true
		}
		if msg.ReceiverID == viewerID {
			peerSet[msg.SenderID] = true
		}
	}

	peers := make([]int, 0, len(peerSet))
	for peerID := range peerSet {
		peers = append(peers, peerID)
	}
	sort.Ints(peers)
	return peers, nil
}

func (s *MemoryMessageStore) ResolveReplyTarget(ctx context.Context, messageID int) (*models.ReplyPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return nil, repositories.ErrMessageNotFound
	}
	return &models.ReplyPreview{ID: msg.ID, SenderID: msg.SenderID, Text: msg.Text, Image: msg.Image}, nil
}

var _ repositories.MessageRepository = (*MemoryMessageStore)(nil)
