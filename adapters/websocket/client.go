package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
)

var errSendBufferFull = errors.New("websocket send buffer full")

// Client owns one WebSocket connection. readPump feeds inbound text frames to
// Inbound; writePump drains the send queue and keeps the connection alive
// with pings.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	inbound    chan string
	writerDone chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	closed     bool
	sessionID  string
}

// NewClient creates a new WebSocket client. The client's context is
// cancelled as soon as the peer goes away or Close is called.
func NewClient(parent context.Context, conn *websocket.Conn, sessionID string) *Client {
	ctx := log.WithSession(parent, sessionID, conn.RemoteAddr().String())
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		inbound:    make(chan string),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		sessionID:  sessionID,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.readPump()
	go c.writePump()
}

// setupHandlers configures the control frame handlers
func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed by peer", zap.Int("code", code), zap.String("text", text))
		msg := websocket.FormatCloseMessage(code, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return nil
	})

	c.conn.SetPongHandler(func(appData string) error {
		log.WithCtx(c.ctx).Debug("Received pong from client")
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Inbound yields one string per text frame. It is closed when the peer
// disconnects.
func (c *Client) Inbound() <-chan string {
	return c.inbound
}

// Close flushes queued frames, sends a close frame and releases the
// connection. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	select {
	case <-c.writerDone:
	case <-time.After(writeWait):
		log.WithCtx(c.ctx).Warn("Timed out flushing outbound frames")
	}

	c.cancel()
	c.conn.Close()
}

// IsClosed returns true if the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context returns the client's context
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// readPump handles incoming WebSocket messages
func (c *Client) readPump() {
	defer func() {
		close(c.inbound)
		c.cancel()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			log.WithCtx(c.ctx).Debug("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}

		select {
		case c.inbound <- string(message):
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing WebSocket messages
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues a text frame for the write pump
func (c *Client) SendMessage(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return errSendBufferFull
	}
}
