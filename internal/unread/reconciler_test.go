package unread

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/mocks"
	"chat-sync-service/internal/models"
)

func TestIncrementOnCreate(t *testing.T) {
	r := NewReconciler(mocks.NewMemoryMessageStore())

	r.OnMessageCreated(1, 2)
	r.OnMessageCreated(1, 2)
	r.OnMessageCreated(1, 3)

	assert.Equal(t, 2, r.Get(1, 2))
	assert.Equal(t, 1, r.Get(1, 3))
	assert.Equal(t, 0, r.Get(2, 1))
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	r := NewReconciler(mocks.NewMemoryMessageStore())

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.OnMessageCreated(1, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, r.Get(1, 2))
}

func TestSeenResetsFromStoreRecount(t *testing.T) {
	store := mocks.NewMemoryMessageStore()
	r := NewReconciler(store)
	ctx := context.Background()

	text := "hi"
	for i := 0; i < 3; i++ {
		_, err := store.CreateMessage(ctx, models.Message{SenderID: 2, ReceiverID: 1, Text: &text})
		require.NoError(t, err)
		r.OnMessageCreated(1, 2)
	}
	require.Equal(t, 3, r.Get(1, 2))

	// Mark everything seen in the store, then drift the counter on purpose;
	// the recount must win over any incremental arithmetic.
	_, err := store.UpdateStatusBulk(ctx, 2, 1, []models.Status{models.StatusSent, models.StatusDelivered}, models.StatusSeen)
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, models.Message{SenderID: 2, ReceiverID: 1, Text: &text})
	require.NoError(t, err)
	r.OnMessageCreated(1, 2)

	r.OnMessagesSeen(ctx, 1, 2)
	assert.Equal(t, 1, r.Get(1, 2), "the arrival racing the seen batch survives")
}

func TestSeenTwiceDoesNotGoNegative(t *testing.T) {
	store := mocks.NewMemoryMessageStore()
	r := NewReconciler(store)
	ctx := context.Background()

	text := "hi"
	_, err := store.CreateMessage(ctx, models.Message{SenderID: 2, ReceiverID: 1, Text: &text})
	require.NoError(t, err)
	r.OnMessageCreated(1, 2)

	_, err = store.UpdateStatusBulk(ctx, 2, 1, []models.Status{models.StatusSent, models.StatusDelivered}, models.StatusSeen)
	require.NoError(t, err)

	r.OnMessagesSeen(ctx, 1, 2)
	r.OnMessagesSeen(ctx, 1, 2)

	assert.Equal(t, 0, r.Get(1, 2))
}

func TestReconcileMatchesStore(t *testing.T) {
	store := mocks.NewMemoryMessageStore()
	r := NewReconciler(store)
	ctx := context.Background()

	text := "hello"
	for i := 0; i < 5; i++ {
		_, err := store.CreateMessage(ctx, models.Message{SenderID: 4, ReceiverID: 3, Text: &text})
		require.NoError(t, err)
	}
	// Counter never saw the creations (e.g. process restart).
	require.Equal(t, 0, r.Get(3, 4))

	count, err := r.Reconcile(ctx, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, 5, r.Get(3, 4))
}

func TestPeersWithUnread(t *testing.T) {
	store := mocks.NewMemoryMessageStore()
	r := NewReconciler(store)
	ctx := context.Background()

	text := "hey"
	_, err := store.CreateMessage(ctx, models.Message{SenderID: 2, ReceiverID: 1, Text: &text})
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, models.Message{SenderID: 3, ReceiverID: 1, Text: &text})
	require.NoError(t, err)
	// A peer the viewer only ever wrote to still shows up, with zero unread.
	_, err = store.CreateMessage(ctx, models.Message{SenderID: 1, ReceiverID: 5, Text: &text})
	require.NoError(t, err)

	peers, err := r.PeersWithUnread(ctx, 1)
	require.NoError(t, err)

	assert.ElementsMatch(t, []models.PeerUnread{
		{PeerID: 2, UnreadCount: 1},
		{PeerID: 3, UnreadCount: 1},
		{PeerID: 5, UnreadCount: 0},
	}, peers)
}
