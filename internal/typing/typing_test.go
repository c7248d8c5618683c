package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/mocks"
	"chat-sync-service/internal/models"
)

func TestTypingForwardedToOnlineReceiver(t *testing.T) {
	notifier := mocks.NewNotifierRecorder(2)
	svc := New(notifier, 0)

	svc.NotifyTyping(1, 2)

	events := notifier.EventsFor(2)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTyping, events[0].Type)
	assert.Equal(t, 1, events[0].SenderID)
}

func TestTypingToOfflineReceiverIsDropped(t *testing.T) {
	notifier := mocks.NewNotifierRecorder()
	svc := New(notifier, time.Minute)

	svc.NotifyTyping(1, 2)

	assert.Empty(t, notifier.EventsFor(2))
	svc.mu.Lock()
	assert.Empty(t, svc.timers, "no state retained for an offline receiver")
	svc.mu.Unlock()
}

func TestStopTypingForwardedAndClearsTimer(t *testing.T) {
	notifier := mocks.NewNotifierRecorder(2)
	svc := New(notifier, time.Minute)

	svc.NotifyTyping(1, 2)
	svc.NotifyStopTyping(1, 2)

	events := notifier.EventsFor(2)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventStopTyping, events[1].Type)

	svc.mu.Lock()
	assert.Empty(t, svc.timers)
	svc.mu.Unlock()
}

func TestTypingExpirySynthesizesStopTyping(t *testing.T) {
	notifier := mocks.NewNotifierRecorder(2)
	svc := New(notifier, 10*time.Millisecond)
	defer svc.Stop()

	svc.NotifyTyping(1, 2)

	require.Eventually(t, func() bool {
		events := notifier.EventsFor(2)
		return len(events) == 2 && events[1].Type == models.EventStopTyping
	}, time.Second, 5*time.Millisecond)
}

func TestRepeatTypingResetsExpiry(t *testing.T) {
	notifier := mocks.NewNotifierRecorder(2)
	svc := New(notifier, 50*time.Millisecond)
	defer svc.Stop()

	svc.NotifyTyping(1, 2)
	time.Sleep(30 * time.Millisecond)
	svc.NotifyTyping(1, 2)
	time.Sleep(30 * time.Millisecond)

	// 60ms after the first signal, but only 30ms after the refresh: the
	// expiry must not have fired yet.
	for _, event := range notifier.EventsFor(2) {
		assert.Equal(t, models.EventTyping, event.Type)
	}
}

func TestStopCancelsAllTimers(t *testing.T) {
	notifier := mocks.NewNotifierRecorder(2, 3)
	svc := New(notifier, time.Minute)

	svc.NotifyTyping(1, 2)
	svc.NotifyTyping(1, 3)
	svc.Stop()

	svc.mu.Lock()
	assert.Empty(t, svc.timers)
	svc.mu.Unlock()
}
