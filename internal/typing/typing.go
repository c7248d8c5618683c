package typing

import (
	"sync"
	"time"

	"chat-sync-service/internal/models"
)

// Notifier delivers a typing signal to a user's live endpoints, reporting
// whether any endpoint existed.
type Notifier interface {
	PushToUser(userID int, event models.PushEvent) bool
}

type pairKey struct {
	senderID   int
	receiverID int
}

// Service relays ephemeral typing signals between user pairs. Nothing is
// persisted and nothing is queued for offline receivers. Clients are
// expected to emit stop-typing themselves; the TTL timer covers the ones
// that vanish mid-keystroke.
type Service struct {
	notifier Notifier
	ttl      time.Duration

	mu     sync.Mutex
	timers map[pairKey]*time.Timer
}

// New creates a typing relay. A non-positive ttl disables auto-expiry.
func New(notifier Notifier, ttl time.Duration) *Service {
	return &Service{
		notifier: notifier,
		ttl:      ttl,
		timers:   make(map[pairKey]*time.Timer),
	}
}

// NotifyTyping forwards a typing signal to the receiver. A repeat signal
// for the same pair resets the expiry; a signal to an offline receiver is
// dropped without retained state.
func (s *Service) NotifyTyping(senderID int, receiverID int) {
	delivered := s.notifier.PushToUser(receiverID, models.PushEvent{
		Type:     models.EventTyping,
		SenderID: senderID,
	})
	if !delivered {
		return
	}
	if s.ttl <= 0 {
		return
	}

	key := pairKey{senderID: senderID, receiverID: receiverID}
	s.mu.Lock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.timers[key] = time.AfterFunc(s.ttl, func() { s.expire(key) })
	s.mu.Unlock()
}

// NotifyStopTyping forwards a stop-typing signal and clears any pending
// expiry for the pair.
func (s *Service) NotifyStopTyping(senderID int, receiverID int) {
	s.clearTimer(pairKey{senderID: senderID, receiverID: receiverID})
	s.notifier.PushToUser(receiverID, models.PushEvent{
		Type:     models.EventStopTyping,
		SenderID: senderID,
	})
}

// expire synthesizes a stop-typing after ttl of silence.
func (s *Service) expire(key pairKey) {
	s.clearTimer(key)
	s.notifier.PushToUser(key.receiverID, models.PushEvent{
		Type:     models.EventStopTyping,
		SenderID: key.senderID,
	})
}

func (s *Service) clearTimer(key pairKey) {
	s.mu.Lock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
}

// Stop cancels all pending expiry timers.
func (s *Service) Stop() {
	s.mu.Lock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
}
