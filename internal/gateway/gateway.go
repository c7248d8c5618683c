package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-sync-service/internal/delivery"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/repositories"
)

var (
	// ErrEmptyContent rejects a message with neither text nor image.
	ErrEmptyContent = errors.New("message requires text or image")
	// ErrBadReply rejects a reply target outside this conversation.
	ErrBadReply = errors.New("reply target does not belong to this conversation")
)

// Content is the caller-supplied body of an outbound message.
type Content struct {
	Text    *string
	Image   *string
	ReplyTo *int
}

// CounterListener is told about newly created messages.
type CounterListener interface {
	OnMessageCreated(receiverID int, senderID int)
}

// Notifier pushes a new-message event to the receiver's endpoints.
type Notifier interface {
	PushToUser(userID int, event models.PushEvent) bool
}

// Gateway accepts outbound messages, persists them, and triggers delivery
// resolution and push notification. Persistence failures surface to the
// caller before any counter or push side effect is applied.
type Gateway struct {
	repo     repositories.MessageRepository
	delivery *delivery.StateMachine
	counters CounterListener
	notifier Notifier
}

// New wires the gateway to its collaborators.
func New(repo repositories.MessageRepository, sm *delivery.StateMachine, counters CounterListener, notifier Notifier) *Gateway {
	return &Gateway{repo: repo, delivery: sm, counters: counters, notifier: notifier}
}

// Send validates, persists, and dispatches one message.
func (g *Gateway) Send(ctx context.Context, senderID int, receiverID int, content Content) (models.Message, error) {
	ctx, span := otel.Tracer("chat-sync-service/gateway").Start(ctx, "gateway.send")
	defer span.End()
	span.SetAttributes(attribute.Int("sender_id", senderID), attribute.Int("receiver_id", receiverID))

	if !hasValue(content.Text) && !hasValue(content.Image) {
		return models.Message{}, ErrEmptyContent
	}

	replyTo, err := g.resolveReply(ctx, senderID, receiverID, content.ReplyTo)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       content.Text,
		Image:      content.Image,
		ReplyTo:    replyTo,
	}
	persisted, err := g.repo.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}

	if persisted.ReplyTo != nil {
		// Best effort: a missing preview renders as "original unavailable".
		if preview, err := g.repo.ResolveReplyTarget(ctx, *persisted.ReplyTo); err == nil {
			persisted.ReplyPreview = preview
		}
	}

	g.counters.OnMessageCreated(receiverID, senderID)

	status, err := g.delivery.ResolveOnSend(ctx, persisted)
	if err == nil {
		persisted.Status = status
	}

	g.notifier.PushToUser(receiverID, models.PushEvent{
		Type:     models.EventNewMessage,
		Message:  &persisted,
		SenderID: senderID,
	})

	return persisted, nil
}

// resolveReply validates a reply reference. A target in another
// conversation is a validation error; a target that no longer exists
// degrades to no reference at all.
func (g *Gateway) resolveReply(ctx context.Context, senderID int, receiverID int, replyTo *int) (*int, error) {
	if replyTo == nil {
		return nil, nil
	}

	target, err := g.repo.GetMessage(ctx, *replyTo)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve reply target: %w", err)
	}

	samePair := (target.SenderID == senderID && target.ReceiverID == receiverID) ||
		(target.SenderID == receiverID && target.ReceiverID == senderID)
	if !samePair {
		return nil, ErrBadReply
	}
	return replyTo, nil
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
