package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auction-system/models"
	"auction-system/monitoring"
)

// RoomHandler is the per-room-type inbound protocol. Each inbound frame
// yields exactly one outcome: either an error event on the sender's
// connection or the success broadcasts of the operations it named.
type RoomHandler interface {
	HandleInbound(ctx context.Context, c *Client, data []byte)
}

// VerifyFunc re-checks that an authenticated account is still active.
type VerifyFunc func(ctx context.Context, userID string) bool

// Client is one connected session. Identity and room are fixed at connect
// time and never shared between connections.
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	room     RoomHandler
	roomID   string
	roomType string
	identity *models.Identity
	verify   VerifyFunc
	logger   *slog.Logger

	// mu serializes enqueues against the channel close in Close, so a
	// broadcast racing a disconnect can never send on a closed channel.
	mu     sync.Mutex
	closed bool
	send   chan []byte

	closeOnce sync.Once
}

// ValidIdentity returns the session's identity only if the account behind
// it is still active. Sockets outlive logout and account deactivation, so
// mutating frames re-check instead of trusting the connect-time resolution.
func (c *Client) ValidIdentity(ctx context.Context) *models.Identity {
	if c.identity == nil {
		return nil
	}
	if c.verify != nil && !c.verify(ctx, c.identity.ID) {
		return nil
	}
	return c.identity
}

// Send enqueues an event for this session only.
func (c *Client) Send(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// SendError emits a protocol error on this session; the connection stays
// open.
func (c *Client) SendError(message string) {
	c.Send(models.SocketError{Message: message})
}

// enqueue hands the payload to the write pump. After Close it is a no-op;
// a full buffer disconnects the slow session instead of blocking the room.
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		go c.Close()
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		monitoring.TrackInbound(c.roomType)

		// Mutations must complete even if the client drops mid-operation,
		// so the handler context is not tied to the connection.
		c.room.HandleInbound(context.Background(), c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Leave(c.roomID, c)

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close()
		}
		monitoring.TrackDisconnect(c.roomType)
	})
}
