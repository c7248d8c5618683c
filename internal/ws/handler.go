package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync-service/internal/middleware"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
)

const wsEventsRoutingKey = "ws_events.sync"

// TypingRelay forwards ephemeral typing signals between users.
type TypingRelay interface {
	NotifyTyping(senderID int, receiverID int)
	NotifyStopTyping(senderID int, receiverID int)
}

// SeenMarker applies the bulk seen transition for a conversation.
type SeenMarker interface {
	MarkSeen(ctx context.Context, viewerID int, peerID int) ([]int, error)
}

// Handler upgrades push-channel connections and pumps inbound commands.
type Handler struct {
	hub       *Hub
	typing    TypingRelay
	seen      SeenMarker
	jwtSecret string
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, typing TypingRelay, seen SeenMarker, jwtSecret string) *Handler {
	return &Handler{hub: hub, typing: typing, seen: seen, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, and registers the endpoint, then reads
// client commands until the connection drops.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if query := c.Query("token"); query != "" {
			token = "Bearer " + query
		}
	}

	userID, err := middleware.UserIDFromBearer(h.jwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(userID, conn)
	info := ConnInfo{
		ConnID:      client.ID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	h.hub.Register(client)
	// Boundary transitions already broadcast; a second endpoint of an
	// already-online user still needs the snapshot to converge.
	h.hub.SendPresenceSnapshot(client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishWSEvent(ctx, "ws_connect", info, "")

	go client.WriteLoop()
	go h.readLoop(ctx, client, info)
}

func (h *Handler) readLoop(ctx context.Context, client *Client, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Unregister(client.ID())
		client.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishWSEvent(ctx, "ws_disconnect", info, closeReason)
	}()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				publishWSEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("websocket bad command from user=%d: %v", client.UserID(), err)
			continue
		}
		h.dispatch(ctx, client.UserID(), cmd)
	}
}

func (h *Handler) dispatch(ctx context.Context, userID int, cmd models.ClientCommand) {
	switch cmd.Type {
	case models.CommandTyping:
		h.typing.NotifyTyping(userID, cmd.PeerID)
	case models.CommandStopTyping:
		h.typing.NotifyStopTyping(userID, cmd.PeerID)
	case models.CommandMarkSeen:
		if _, err := h.seen.MarkSeen(ctx, userID, cmd.PeerID); err != nil {
			log.Printf("websocket mark seen failed viewer=%d peer=%d: %v", userID, cmd.PeerID, err)
		}
	default:
		log.Printf("websocket unknown command type=%q user=%d", cmd.Type, userID)
	}
}

func publishWSEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	var durationMS int64
	if event != "ws_connect" {
		durationMS = time.Since(info.ConnectedAt).Milliseconds()
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, wsEventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
