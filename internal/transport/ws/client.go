package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fluency/internal/app"
	"fluency/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents the participant's WebSocket connection
type Client struct {
	conn    *websocket.Conn
	session *app.ExperimentSession
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, session *app.ExperimentSession, logger *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		session: session,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger.With("sessionID", session.GetID()),
	}
}

// Send implements app.ClientConnection interface. Session events are
// translated to their wire message.
func (c *Client) Send(message interface{}) error {
	if event, ok := message.(*domain.SessionEvent); ok {
		msg, known := FromEvent(event)
		if !known {
			c.logger.Warn("unknown session event", "type", event.Type)
			return nil
		}
		message = msg
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped")
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.session.UnregisterClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame so the view can parse each directly.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgBegin:
		c.handleBegin()
	case MsgSubmitResponse:
		c.handleSubmitResponse(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleBegin dismisses the welcome notice
func (c *Client) handleBegin() {
	if err := c.session.Begin(); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPhase):
			c.sendError(ErrCodeInvalidAction, "The experiment has already begun")
		case errors.Is(err, domain.ErrNoTrials):
			c.sendError(ErrCodeInvalidAction, "The protocol has no trials")
		case errors.Is(err, domain.ErrSessionClosed):
			c.sendError(ErrCodeInvalidAction, "The session is closed")
		default:
			c.sendError(ErrCodeInternalError, err.Error())
		}
	}
}

// handleSubmitResponse handles a submit_response message
func (c *Client) handleSubmitResponse(payload interface{}) {
	payloadMap, ok := payload.(map[string]interface{})
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	text, ok := payloadMap["text"].(string)
	if !ok {
		c.sendError(ErrCodeInvalidMessage, "Text is required")
		return
	}

	if _, err := c.session.SubmitResponse(text); err != nil {
		c.sendError(submitErrorCode(err))
	}
}

// submitErrorCode maps a rejected submission to its error code and message
func submitErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrInputLocked):
		return ErrCodeInputLocked, "Input is locked while a word is shown"
	case errors.Is(err, domain.ErrTrialEnded):
		return ErrCodeTrialEnded, "The trial has ended"
	case errors.Is(err, domain.ErrInvalidPhase):
		return ErrCodeInvalidAction, "No trial is running"
	default:
		return ErrCodeInternalError, err.Error()
	}
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		SessionID: c.session.GetID(),
		Welcome:   c.session.GetWelcome(),
		State:     c.session.GetState(),
	}

	msg := NewServerMessage(MsgConnected, payload)
	c.Send(msg)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}
