// Package server manages individual WebSocket connections, handling the
// read/write pumps and the per-connection state the relay routes on.
package server

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256

	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// Pings must fire well inside the pong window.
	pingPeriod = 54 * time.Second
)

// Client wraps one live WebSocket connection. The relay core holds only this
// handle; the transport itself belongs to gorilla/websocket.
//
// The identity is minted once at upgrade time and never reused within the
// process. It is distinct from the display name a user later claims via
// login and is never shown to other users.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	addr     string
	identity string
	closed   bool

	// currentRoom tags the private room this connection currently belongs
	// to, if any. Owned by the hub goroutine; never touched elsewhere.
	currentRoom string
}

// NewClient creates a Client for conn with a freshly minted identity. The
// send channel is buffered so routing never blocks on a slow socket.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		hub:      hub,
		addr:     addr,
		identity: uuid.NewString(),
	}
}

// Identity returns the server-minted opaque identifier for this connection.
func (c *Client) Identity() string {
	return c.identity
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// start launches the read and write pumps. Called by the upgrade handler
// after the client is registered with the hub.
func (c *Client) start() {
	c.hub.wg.Add(2)
	go func() {
		defer c.hub.wg.Done()
		c.writePump()
	}()
	go func() {
		defer c.hub.wg.Done()
		c.readPump()
	}()
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs an appropriate message for a failed read and reports
// whether the read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded the configured size limit", c.addr)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
	return true
}

// readPump reads frames from the socket and hands them to the hub for
// routing. When the connection drops, unregistering the client triggers the
// hub's cleanup exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
			continue
		}
		c.hub.inbound <- inboundFrame{client: c, payload: payload}
	}
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with periodic pings. It exits when the hub closes the send channel
// or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					log.Printf("Error writing close message to %s: %v", c.addr, err)
				}
				return
			}
			if !c.writeFrames(message) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping message to %s: %v", c.addr, err)
				}
				return
			}
		}
	}
}

// writeFrames writes message plus anything already queued on the send
// channel, one WebSocket frame per message so clients always receive whole
// JSON payloads.
func (c *Client) writeFrames(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", c.addr, err)
		}
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing queued message to %s: %v", c.addr, err)
			}
			return false
		}
	}
	return true
}
