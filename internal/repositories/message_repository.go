package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-sync-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the persistence contract the synchronization engine
// requires from the message store.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error)
	UpdateStatusBulk(ctx context.Context, senderID int, receiverID int, from []models.Status, to models.Status) ([]int, error)
	CountUnread(ctx context.Context, viewerID int, peerID int) (int, error)
	ListPeers(ctx context.Context, viewerID int) ([]int, error)
	ResolveReplyTarget(ctx context.Context, messageID int) (*models.ReplyPreview, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a new message. The status column defaults to sent.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, text, image, reply_to)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, sender_id, receiver_id, text, image, reply_to, status, created_at`,
		msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.ReplyTo).
		StructScan(&created)
	return created, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, sender_id, receiver_id, text, image, reply_to, status, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

type conversationRow struct {
	models.Message
	ReplyID       sql.NullInt64  `db:"reply_id"`
	ReplySenderID sql.NullInt64  `db:"reply_sender_id"`
	ReplyText     sql.NullString `db:"reply_text"`
	ReplyImage    sql.NullString `db:"reply_image"`
}

// GetConversation returns the ordered message log between two users, with
// reply previews joined in where the replied-to message still exists.
func (r *MessageRepo) GetConversation(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	query := `SELECT m.id, m.sender_id, m.receiver_id, m.text, m.image, m.reply_to, m.status, m.created_at,
            p.id AS reply_id, p.sender_id AS reply_sender_id, p.text AS reply_text, p.image AS reply_image
        FROM messages m
        LEFT JOIN messages p ON p.id = m.reply_to
        WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1)
        ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.db.QueryxContext(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var row conversationRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		msg := row.Message
		if row.ReplyID.Valid {
			preview := &models.ReplyPreview{
				ID:       int(row.ReplyID.Int64),
				SenderID: int(row.ReplySenderID.Int64),
			}
			if row.ReplyText.Valid {
				text := row.ReplyText.String
				preview.Text = &text
			}
			if row.ReplyImage.Valid {
				image := row.ReplyImage.String
				preview.Image = &image
			}
			msg.ReplyPreview = preview
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// UpdateStatusBulk advances every message from peer to viewer whose status
// is in the from set, and returns the affected message ids. The status
// guard in the WHERE clause makes each row transition an atomic
// check-then-set, so a racing later transition can never be regressed.
func (r *MessageRepo) UpdateStatusBulk(ctx context.Context, senderID int, receiverID int, from []models.Status, to models.Status) ([]int, error) {
	fromValues := make([]string, 0, len(from))
	for _, s := range from {
		fromValues = append(fromValues, string(s))
	}

	rows, err := r.db.QueryxContext(ctx, `UPDATE messages SET status=$1
        WHERE sender_id=$2 AND receiver_id=$3 AND status = ANY($4)
        RETURNING id`,
		string(to), senderID, receiverID, pq.Array(fromValues))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUnread recomputes the authoritative unread count of messages from
// peer to viewer.
func (r *MessageRepo) CountUnread(ctx context.Context, viewerID int, peerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE sender_id=$1 AND receiver_id=$2 AND status <> $3`,
		peerID, viewerID, string(models.StatusSeen))
	return count, err
}

// ListPeers returns every user the viewer has exchanged messages with.
func (r *MessageRepo) ListPeers(ctx context.Context, viewerID int) ([]int, error) {
	var peers []int
	err := r.db.SelectContext(ctx, &peers, `SELECT DISTINCT
            CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END
        FROM messages
        WHERE sender_id=$1 OR receiver_id=$1`, viewerID)
	return peers, err
}

// ResolveReplyTarget fetches the preview projection of a replied-to message.
func (r *MessageRepo) ResolveReplyTarget(ctx context.Context, messageID int) (*models.ReplyPreview, error) {
	var row struct {
		ID       int            `db:"id"`
		SenderID int            `db:"sender_id"`
		Text     sql.NullString `db:"text"`
		Image    sql.NullString `db:"image"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id, sender_id, text, image FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	preview := &models.ReplyPreview{ID: row.ID, SenderID: row.SenderID}
	if row.Text.Valid {
		text := row.Text.String
		preview.Text = &text
	}
	if row.Image.Valid {
		image := row.Image.String
		preview.Image = &image
	}
	return preview, nil
}
