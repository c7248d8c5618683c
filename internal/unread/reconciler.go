package unread

import (
	"context"
	"log"
	"sync"

	"github.com/samber/lo"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
)

// Store is the slice of the message store the reconciler re-derives
// counts from.
type Store interface {
	CountUnread(ctx context.Context, viewerID int, peerID int) (int, error)
	ListPeers(ctx context.Context, viewerID int) ([]int, error)
}

type pairKey struct {
	viewerID int
	peerID   int
}

// Reconciler maintains advisory per-(viewer, peer) unread counters. The
// counters are a materialized view over message status: incremented on
// creation, reset from a store recount on seen-batches, and recomputable
// at any time via Reconcile. The message store stays the source of truth.
type Reconciler struct {
	mu     sync.Mutex
	counts map[pairKey]int
	store  Store
}

// NewReconciler creates a reconciler with empty counters.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{counts: make(map[pairKey]int), store: store}
}

// OnMessageCreated increments the receiver's counter for the sender.
func (r *Reconciler) OnMessageCreated(receiverID int, senderID int) {
	r.mu.Lock()
	r.counts[pairKey{viewerID: receiverID, peerID: senderID}]++
	r.mu.Unlock()
}

// OnMessagesSeen resets the (viewer, peer) counter from a store recount.
// A recount, not a decrement: new arrivals racing the mark-seen batch
// must survive in the counter.
func (r *Reconciler) OnMessagesSeen(ctx context.Context, viewerID int, peerID int) {
	if _, err := r.Reconcile(ctx, viewerID, peerID); err != nil {
		log.Printf("unread: recount after seen failed viewer=%d peer=%d: %v", viewerID, peerID, err)
	}
}

// Reconcile recomputes one counter from the authoritative message store.
func (r *Reconciler) Reconcile(ctx context.Context, viewerID int, peerID int) (int, error) {
	count, err := r.store.CountUnread(ctx, viewerID, peerID)
	if err != nil {
		return 0, err
	}
	observability.IncUnreadReconciliation()

	r.mu.Lock()
	r.counts[pairKey{viewerID: viewerID, peerID: peerID}] = count
	r.mu.Unlock()
	return count, nil
}

// Get returns the cached counter, zero when the pair is unknown.
func (r *Reconciler) Get(viewerID int, peerID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[pairKey{viewerID: viewerID, peerID: peerID}]
}

// PeersWithUnread lists every conversation peer of the viewer with an
// authoritative unread count, refreshing the cache along the way.
func (r *Reconciler) PeersWithUnread(ctx context.Context, viewerID int) ([]models.PeerUnread, error) {
	peers, err := r.store.ListPeers(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	result := make([]models.PeerUnread, 0, len(peers))
	for _, peerID := range lo.Uniq(peers) {
		count, err := r.Reconcile(ctx, viewerID, peerID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.PeerUnread{PeerID: peerID, UnreadCount: count})
	}
	return result, nil
}
