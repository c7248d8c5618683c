package models

import "time"

// Status is the delivery lifecycle state of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusSeen:      2,
}

// Rank returns the position of the status in the sent -> delivered -> seen
// lifecycle. Unknown statuses rank below sent.
func (s Status) Rank() int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return -1
}

// Valid reports whether s is one of the three lifecycle statuses.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Message represents a direct message between two users.
type Message struct {
	ID         int       `db:"id" json:"id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	ReceiverID int       `db:"receiver_id" json:"receiver_id"`
	Text       *string   `db:"text" json:"text,omitempty"`
	Image      *string   `db:"image" json:"image,omitempty"`
	ReplyTo    *int      `db:"reply_to" json:"reply_to,omitempty"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	// ReplyPreview is populated from the replied-to message when it still
	// exists. A nil preview with a non-nil ReplyTo renders as
	// "original unavailable" on the client.
	ReplyPreview *ReplyPreview `db:"-" json:"reply_preview,omitempty"`
}

// ReplyPreview is the projection of a replied-to message embedded in
// fetch and send responses.
type ReplyPreview struct {
	ID       int     `json:"id"`
	SenderID int     `json:"sender_id"`
	Text     *string `json:"text,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// PeerUnread pairs a conversation peer with the viewer's unread count.
type PeerUnread struct {
	PeerID      int `json:"peer_id"`
	UnreadCount int `json:"unread_count"`
}
