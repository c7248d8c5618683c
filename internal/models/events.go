package models

// Push event types emitted to websocket clients.
const (
	EventPresence      = "presence"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"
	EventNewMessage    = "new_message"
	EventMessageStatus = "message_status"
	EventMessagesSeen  = "messages_seen"
)

// Inbound command types accepted from websocket clients.
const (
	CommandTyping     = "typing"
	CommandStopTyping = "stop_typing"
	CommandMarkSeen   = "mark_seen"
)

// PushEvent is broadcasted through websockets.
type PushEvent struct {
	Type          string   `json:"type"`
	OnlineUserIDs []int    `json:"online_user_ids,omitempty"`
	SenderID      int      `json:"sender_id,omitempty"`
	PeerID        int      `json:"peer_id,omitempty"`
	Message       *Message `json:"message,omitempty"`
	MessageID     int      `json:"message_id,omitempty"`
	Status        Status   `json:"status,omitempty"`
}

// ClientCommand is a frame received from a websocket client.
type ClientCommand struct {
	Type   string `json:"type"`
	PeerID int    `json:"peer_id"`
}
