package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

// Client is one live WebSocket connection, bound to a single user_id
// for the lifetime of the connection. It implements notify.Sink so the
// Notification Queue can push straight to it.
type Client struct {
	id            string
	userID        string
	callerProfile string

	conn   *websocket.Conn
	server *Server

	send chan []byte
	done chan struct{}
}

func NewClient(conn *websocket.Conn, userID, callerProfile string, s *Server) *Client {
	return &Client{
		id:            uuid.New().String(),
		userID:        userID,
		callerProfile: callerProfile,
		conn:          conn,
		server:        s,
		send:          make(chan []byte, 32),
		done:          make(chan struct{}),
	}
}

// Send implements notify.Sink: it queues frame for delivery on this
// connection's write pump without blocking the caller.
func (c *Client) Send(frame protocol.NotificationFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		slog.Warn("gateway.client.send_buffer_full", "client", c.id, "user", c.userID)
		return nil
	}
}

// SendEvent pushes an unsolicited EventFrame (cron fired, health, etc).
func (c *Client) SendEvent(ev protocol.EventFrame) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("gateway.client.event_buffer_full", "client", c.id)
	}
}

// Run drives the client's read and write pumps until the connection
// closes or ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer close(c.done)
	c.conn.SetReadLimit(1 << 20)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Warn("gateway.client.bad_request", "client", c.id, "error", err)
			continue
		}

		resp := c.server.router.Dispatch(ctx, c, req)
		out, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		select {
		case c.send <- out:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.conn.Close()
}
