package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Client pumps one chat session over a WebSocket connection.
type Client struct {
	conn           *websocket.Conn
	sess           *chat.Session
	svc            *chat.Service
	log            *slog.Logger
	addr           string
	maxMessageSize int64
	pingInterval   time.Duration
}

// NewClient binds an upgraded connection to a joined session.
func NewClient(conn *websocket.Conn, sess *chat.Session, svc *chat.Service, cfg Config, addr string, log *slog.Logger) *Client {
	conn.SetReadLimit(cfg.MaxMessageSize)

	pingInterval := cfg.HeartbeatInterval
	if pingInterval <= 0 || pingInterval >= pongWait {
		pingInterval = pongWait * 9 / 10
	}

	return &Client{
		conn:           conn,
		sess:           sess,
		svc:            svc,
		log:            log.With("addr", addr, "room", sess.Room(), "username", sess.Username(), "subscriber", sess.ID()),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		pingInterval:   pingInterval,
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the read failure according to its kind.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

// processFrame handles one client frame and returns false when the client
// asked to leave.
func (c *Client) processFrame(raw []byte) bool {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Warn("Invalid frame", "error", err)
		return true
	}

	switch frame.Type {
	case frameSendMessage:
		msg, err := c.sess.Send(frame.Content)
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			c.log.Warn("Rate limit exceeded; discarding message")
		case err != nil:
			c.log.Warn("Message rejected", "error", err)
		default:
			c.log.Debug("Message accepted", "id", msg.ID)
		}
	case frameListRooms:
		c.svc.SendDirectory(c.sess)
	case frameLeave:
		return false
	default:
		c.log.Warn("Unknown frame type", "type", frame.Type)
	}
	return true
}

// readPump reads client frames until the connection fails or the client
// leaves. Closing the session stops writePump, which owns the close frame
// and the connection teardown.
func (c *Client) readPump() {
	defer c.sess.Close()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.processFrame(raw) {
			c.log.Info("Client left")
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case payload := <-c.sess.Messages():
		return c.writeTextMessage(payload)
	case <-c.sess.Done():
		c.flushPending()
		return c.writeCloseMessage(c.sess.Err())
	case <-ticker.C:
		return c.handlePing()
	}
}

// flushPending writes the events queued before the session was closed.
func (c *Client) flushPending() {
	for {
		select {
		case payload := <-c.sess.Messages():
			if !c.writeTextMessage(payload) {
				return
			}
		default:
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection", "error", err)
		}
	}
}

// closeCode maps the reason a session ended to a close frame.
func closeCode(cause error) (int, string) {
	switch {
	case errors.Is(cause, chat.ErrShuttingDown):
		return websocket.CloseGoingAway, "server shutting down"
	case errors.Is(cause, chat.ErrRoomDeleted):
		return websocket.CloseNormalClosure, "room deleted"
	case errors.Is(cause, hub.ErrSlowSubscriber):
		return websocket.ClosePolicyViolation, "too slow"
	default:
		return websocket.CloseNormalClosure, ""
	}
}

// writeCloseMessage sends a close frame carrying the reason the session ended.
func (c *Client) writeCloseMessage(cause error) bool {
	code, reason := closeCode(cause)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", "error", err)
		}
	}
	return false
}

// writeTextMessage writes one encoded event as a text frame.
func (c *Client) writeTextMessage(payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
