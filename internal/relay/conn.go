package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
	sendBuffer     = 256
)

// conn is one websocket peer. The hub owns send: it is the only writer and
// closes it when the connection leaves.
type conn struct {
	id     string
	docID  string
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *slog.Logger
}

func newConn(h *Hub, docID string, ws *websocket.Conn) *conn {
	id := h.newConnID()
	return &conn{
		id:     id,
		docID:  docID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		logger: h.logger.With("doc", docID, "conn", id),
	}
}

// readPump decodes frames and hands them to the hub until the socket
// fails. It always ends by unregistering.
func (c *conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			c.logger.Warn("dropping invalid frame", "error", err)
			continue
		}
		c.hub.inbound(c, msg)
	}
}

// writePump drains send onto the socket and keeps the peer alive with
// pings. It returns when the hub closes send or a write fails.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("websocket write failed", "error", err)
				}
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
