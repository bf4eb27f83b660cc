package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	errInvalidPayload = errors.New("invalid event payload")
	errUserMismatch   = errors.New("joined user does not match authenticated user")
)

// Client is a single WebSocket connection. userID is bound by the join
// event; until then the connection receives no fan-out.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	id            string
	userID        uuid.UUID
	authID        uuid.UUID
	joined        bool
	conversations map[uuid.UUID]bool
	closeOnce     sync.Once
	logger        *WebSocketLogger
}

func NewClient(hub *Hub, conn *websocket.Conn, authID uuid.UUID) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            uuid.New().String(),
		authID:        authID,
		conversations: make(map[uuid.UUID]bool),
		logger:        hub.logger,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.id, err)
			}
			break
		}

		var evt InboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.enqueue(errorEvent(errInvalidPayload))
			continue
		}
		c.hub.dispatch(context.Background(), c, evt)
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.hub.touch(c)
		}
	}
}

// enqueue marshals and queues one event for delivery. A full send buffer
// drops the event rather than blocking the hub.
func (c *Client) enqueue(evt OutboundEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		c.logger.Error("event marshal failed", c.userID, c.id, err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full", c.userID, c.id)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
