package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/protocol"
)

// Client is one connected participant. Its display name is empty until a
// join frame arrives and is set at most once.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	addr   string
	opts   HubOptions
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	name   string
	joined bool
}

// NewClient creates a Client for an upgraded connection. conn may be nil in
// tests that only exercise broadcast delivery.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := uuid.NewString()
	opts := hub.opts
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		addr:   addr,
		opts:   opts,
		logger: hub.clientLogger.With("client_id", id, "addr", addr),
		send:   make(chan []byte, opts.SendBufferSize),
		done:   make(chan struct{}),
	}
}

// Name returns the display name, or "" before the client has joined.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Joined reports whether the client has announced a display name.
func (c *Client) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

// GetSendChan returns the client's outbound queue for reading.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// join sets the display name the first time it is called and reports
// whether it did.
func (c *Client) join(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined {
		return false
	}
	c.name = name
	c.joined = true
	return true
}

// enqueue queues a frame for the write pump without blocking. It returns
// false if the client is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close marks the client closed and stops its write pump. Safe to call
// more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// closeConn closes the underlying connection, ignoring expected errors.
func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection", "error", err)
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
}

// handleReadError logs why the read loop is ending.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "max_bytes", c.opts.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Info("client closed connection", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.logger.Warn("unexpected websocket close", "error", err)
	default:
		c.logger.Warn("websocket read error", "error", err)
	}
}

// processFrame applies the join state machine and relays the frame.
func (c *Client) processFrame(raw string) {
	frame := protocol.Parse(raw)

	if frame.Kind == protocol.KindJoin {
		if c.join(frame.Name) {
			c.logger.Info("client joined", "name", frame.Name)
			c.hub.Broadcast(protocol.JoinAnnouncement(frame.Name))
			return
		}
		c.logger.Debug("repeated join relayed as chat", "name", c.Name())
	}

	c.hub.Broadcast(frame.Raw)
}

// readPump is the per-connection receive loop. It returns on a close
// frame, a read error, or once the hub closes the client.
func (c *Client) readPump() {
	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if messageType != websocket.TextMessage || !utf8.Valid(raw) {
			c.logger.Debug("ignoring non-text frame", "type", messageType, "bytes", len(raw))
			continue
		}

		c.processFrame(string(raw))
	}
}

// writePump drains the send queue onto the connection, one frame per
// WebSocket message, and keeps the connection alive with pings. It is the
// only writer of data frames, which keeps each recipient's frames in order.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame := <-c.send:
		return c.writeTextMessage(frame)
	case <-ticker.C:
		return c.handlePing()
	case <-c.done:
		c.writeCloseMessage()
		return false
	}
}

// writeTextMessage writes a single text frame
func (c *Client) writeTextMessage(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		c.logger.Warn("error setting write deadline", "error", err)
		c.close()
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing frame", "error", err)
		}
		c.close()
		return false
	}
	return true
}

// writeCloseMessage sends a normal-closure close frame to the client
func (c *Client) writeCloseMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Closing")
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
	if err != nil && !isExpectedCloseError(err) && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("error writing close message", "error", err)
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		c.logger.Warn("error setting write deadline for ping", "error", err)
		c.close()
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("error writing ping", "error", err)
		c.close()
		return false
	}
	return true
}
