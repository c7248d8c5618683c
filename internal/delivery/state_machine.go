package delivery

import (
	"context"
	"fmt"
	"log"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/repositories"
)

// Presence answers whether a user has at least one live endpoint.
type Presence interface {
	IsOnline(userID int) bool
}

// Notifier pushes events to a user's live endpoints. The returned bool
// reports whether the user had any endpoint; dispatch itself is
// fire-and-forget.
type Notifier interface {
	PushToUser(userID int, event models.PushEvent) bool
}

// CounterListener is told about transitions that affect unread counts.
type CounterListener interface {
	OnMessagesSeen(ctx context.Context, viewerID int, peerID int)
}

// CanAdvance reports whether a message may move from one status to
// another. Transitions are strictly monotonic; equal-or-earlier targets
// are rejected.
func CanAdvance(from, to models.Status) bool {
	return to.Valid() && to.Rank() > from.Rank()
}

// StateMachine owns the sent -> delivered -> seen lifecycle of messages.
// All persisted transitions go through status-guarded bulk updates, so a
// racing later transition can never be regressed by an earlier one.
type StateMachine struct {
	repo     repositories.MessageRepository
	presence Presence
	notifier Notifier
	counters CounterListener
}

// NewStateMachine wires the state machine to its collaborators.
func NewStateMachine(repo repositories.MessageRepository, presence Presence, notifier Notifier, counters CounterListener) *StateMachine {
	return &StateMachine{repo: repo, presence: presence, notifier: notifier, counters: counters}
}

// ResolveOnSend advances a freshly persisted message to delivered when the
// receiver has a live endpoint. Offline receivers leave the message at
// sent; their next history fetch delivers it.
func (sm *StateMachine) ResolveOnSend(ctx context.Context, msg models.Message) (models.Status, error) {
	if !sm.presence.IsOnline(msg.ReceiverID) {
		return models.StatusSent, nil
	}

	ids, err := sm.repo.UpdateStatusBulk(ctx, msg.SenderID, msg.ReceiverID,
		[]models.Status{models.StatusSent}, models.StatusDelivered)
	if err != nil {
		return models.StatusSent, fmt.Errorf("advance to delivered: %w", err)
	}
	observability.IncStatusTransition(string(models.StatusDelivered), len(ids))

	for _, id := range ids {
		if id == msg.ID {
			return models.StatusDelivered, nil
		}
		// A fetch or mark-seen raced us over a sibling message; tell the
		// sender about it.
		sm.notifier.PushToUser(msg.SenderID, models.PushEvent{
			Type:      models.EventMessageStatus,
			MessageID: id,
			Status:    models.StatusDelivered,
			PeerID:    msg.ReceiverID,
		})
	}
	// Our own row was not in the affected set: a concurrent transition got
	// there first and the guard kept the later state.
	observability.IncStatusDowngradeRejected()
	log.Printf("delivery: downgrade rejected message_id=%d target=%s", msg.ID, models.StatusDelivered)
	current, err := sm.repo.GetMessage(ctx, msg.ID)
	if err != nil {
		return models.StatusDelivered, nil
	}
	return current.Status, nil
}

// MarkDelivered is the history-fetch acknowledgment path: every sent
// message from peer to viewer advances to delivered. Repeated fetches are
// idempotent because the from-status guard matches nothing the second
// time. Senders with live endpoints get per-message status pushes.
func (sm *StateMachine) MarkDelivered(ctx context.Context, viewerID int, peerID int) ([]int, error) {
	ids, err := sm.repo.UpdateStatusBulk(ctx, peerID, viewerID,
		[]models.Status{models.StatusSent}, models.StatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	observability.IncStatusTransition(string(models.StatusDelivered), len(ids))

	for _, id := range ids {
		sm.notifier.PushToUser(peerID, models.PushEvent{
			Type:      models.EventMessageStatus,
			MessageID: id,
			Status:    models.StatusDelivered,
			PeerID:    viewerID,
		})
	}
	return ids, nil
}

// MarkSeen bulk-advances every non-seen message from peer to viewer to
// seen, resets the viewer's unread counter from the store, and notifies
// the peer that their messages were seen. Applying it twice is a no-op.
func (sm *StateMachine) MarkSeen(ctx context.Context, viewerID int, peerID int) ([]int, error) {
	ids, err := sm.repo.UpdateStatusBulk(ctx, peerID, viewerID,
		[]models.Status{models.StatusSent, models.StatusDelivered}, models.StatusSeen)
	if err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	// Counter reset happens even for an empty batch: a reconnecting client
	// re-marking an already seen conversation still converges its badge.
	sm.counters.OnMessagesSeen(ctx, viewerID, peerID)

	if len(ids) == 0 {
		return nil, nil
	}
	observability.IncStatusTransition(string(models.StatusSeen), len(ids))

	sm.notifier.PushToUser(peerID, models.PushEvent{
		Type:   models.EventMessagesSeen,
		PeerID: viewerID,
	})
	return ids, nil
}
