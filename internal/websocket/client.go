package callws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/saeid-a/ConsultBack/internal/services"
)

const sendBuffer = 64

// Conn is the part of a websocket connection the client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// RoomAuthorizer decides whether an actor may enter a session's room and
// in which role.
type RoomAuthorizer interface {
	AuthorizeRoom(ctx context.Context, sessionID int64, roomID string, actor services.Actor) (string, error)
}

type Client struct {
	ID     string
	UserID int64
	Role   string

	relay   *Relay
	conn    Conn
	limiter *rate.Limiter
	send    chan []byte

	mu     sync.Mutex
	closed bool

	// guarded by relay.mu
	room     string
	roomRole string
}

// NewClient wraps an authenticated connection. A nil limiter disables rate
// limiting.
func NewClient(relay *Relay, conn Conn, userID int64, role string, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		Role:    role,
		relay:   relay,
		conn:    conn,
		limiter: limiter,
		send:    make(chan []byte, sendBuffer),
	}
}

// Send queues payload without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump processes frames until the connection fails, then disconnects
// the client from the relay.
func (c *Client) ReadPump(ctx context.Context, auth RoomAuthorizer) {
	defer func() {
		c.relay.Disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.relay.metrics.RecordRelayDrop()
			c.writeError("", "rate limit exceeded")
			continue
		}

		var msg Inbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.writeError("", "invalid message payload")
			continue
		}
		msg.Type = strings.TrimSpace(msg.Type)
		msg.RoomID = strings.TrimSpace(msg.RoomID)
		if msg.RoomID == "" {
			c.writeError(msg.Type, "room_id is required")
			continue
		}

		c.relay.metrics.RecordRelayMessage(metricEvent(msg.Type))
		c.handle(ctx, auth, msg)
	}
}

func (c *Client) handle(ctx context.Context, auth RoomAuthorizer, msg Inbound) {
	switch {
	case msg.Type == EventJoin:
		c.join(ctx, auth, msg)
	case isSignal(msg.Type):
		err := c.relay.Forward(c, msg.RoomID, msg.Target, Outbound{
			Type:    msg.Type,
			Payload: msg.Payload,
		})
		if err != nil {
			c.writeError(msg.Type, err.Error())
		}
	case msg.Type == EventLeave:
		c.leave(msg, EventPeerLeft)
	case msg.Type == EventEnd:
		c.leave(msg, EventCallEnded)
	case msg.Type == EventReject:
		c.leave(msg, EventCallRejected)
	default:
		c.writeError(msg.Type, "unsupported message type")
	}
}

func (c *Client) join(ctx context.Context, auth RoomAuthorizer, msg Inbound) {
	if msg.SessionID <= 0 {
		c.writeError(msg.Type, "session_id is required")
		return
	}

	role, err := auth.AuthorizeRoom(ctx, msg.SessionID, msg.RoomID, services.Actor{ID: c.UserID, Role: c.Role})
	if err != nil {
		c.writeError(msg.Type, joinErrorMessage(err))
		return
	}

	peers, err := c.relay.Join(c, msg.RoomID, role)
	if err != nil {
		c.writeError(msg.Type, err.Error())
		return
	}

	c.reply(Outbound{
		Type:         EventJoined,
		RoomID:       msg.RoomID,
		ConnectionID: c.ID,
		Role:         role,
		Peers:        peers,
	})
}

func (c *Client) leave(msg Inbound, eventType string) {
	if err := c.relay.Leave(c, msg.RoomID, eventType, msg.Reason); err != nil {
		c.writeError(msg.Type, err.Error())
	}
}

// WritePump is the only writer to the connection, which keeps per-peer
// ordering intact.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) reply(msg Outbound) {
	payload, err := encode(msg)
	if err != nil {
		return
	}
	if !c.Send(payload) {
		c.relay.metrics.RecordRelayDrop()
	}
}

func (c *Client) writeError(eventType string, message string) {
	c.reply(Outbound{Type: EventError, Reason: eventType, Error: message})
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, services.ErrCallEnded):
		return "Call already ended"
	case errors.Is(err, services.ErrStaleRoom):
		return "Room is no longer valid"
	case errors.Is(err, services.ErrNotFound):
		return "Session not found"
	case errors.Is(err, services.ErrInvalidInput):
		return "Invalid request"
	default:
		return "Failed to join room"
	}
}
