package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/presence"
)

// Client binds a document and a presence session to a relay.
//
// On connect it sends its whole op log (so edits made offline reach the
// server) and its presence entry. Afterwards every local transaction and
// every local presence change is forwarded; everything received is applied.
type Client struct {
	doc       *document.Document
	awareness *presence.Awareness
	ws        *websocket.Conn
	logger    *slog.Logger

	out         *queue[Message]
	synced      chan struct{}
	syncOnce    sync.Once
	closeOnce   sync.Once
	done        chan struct{}
	disconnects []func()
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Dial connects to url (for example ws://host:8080/ws/my-map) and starts
// forwarding. Call Run to receive.
func Dial(ctx context.Context, url string, doc *document.Document, awareness *presence.Awareness, opts ...ClientOption) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}

	c := &Client{
		doc:       doc,
		awareness: awareness,
		ws:        ws,
		logger:    slog.Default(),
		out:       newQueue[Message](),
		synced:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("replica", doc.ReplicaID())

	// Connect the signals before snapshotting the log so no transaction
	// falls between the two.
	c.disconnects = append(c.disconnects,
		doc.LocalUpdate(func(ev document.UpdateEvent) {
			u := ev.Update
			c.out.Enqueue(Message{Type: TypeUpdate, Update: &u})
		}),
		awareness.Changed(func(ev presence.ChangeEvent) {
			if ev.Local {
				u := awareness.Encode()
				c.out.Enqueue(Message{Type: TypeAwareness, Awareness: &u})
			}
		}),
	)
	if ops := doc.Log(); len(ops) > 0 {
		c.out.Enqueue(Message{Type: TypeSync, Update: &crdt.Update{Origin: doc.ReplicaID(), Ops: ops}})
	}
	hello := awareness.Encode()
	c.out.Enqueue(Message{Type: TypeAwareness, Awareness: &hello})

	go c.writeLoop()
	return c, nil
}

// Synced is closed once the server's log snapshot has been applied.
func (c *Client) Synced() <-chan struct{} { return c.synced }

// Run applies incoming messages until the connection ends or ctx is
// cancelled. It returns nil after Close.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			c.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("relay read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping undecodable relay frame", "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			c.logger.Warn("dropping invalid relay frame", "error", err)
			continue
		}
		c.apply(msg)
	}
}

func (c *Client) apply(msg Message) {
	switch msg.Type {
	case TypeSync, TypeUpdate:
		if err := c.doc.ApplyUpdate(*msg.Update); err != nil {
			c.logger.Warn("rejected remote update", "origin", msg.Update.Origin, "error", err)
		}
		if msg.Type == TypeSync {
			c.syncOnce.Do(func() { close(c.synced) })
		}
	case TypeAwareness:
		c.awareness.Apply(*msg.Awareness)
	}
}

// writeLoop sends queued messages in order until Close.
func (c *Client) writeLoop() {
	for {
		msg, ok := c.out.TryDequeue()
		if ok {
			if err := c.write(msg); err != nil {
				c.logger.Warn("relay write failed", "error", err)
				c.Close()
				return
			}
			continue
		}
		select {
		case <-c.done:
			return
		case <-c.out.Wait():
			if c.out.Drained() {
				return
			}
		}
	}
}

func (c *Client) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close detaches from the document and closes the connection. The relay
// announces this session's departure to the other peers.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, d := range c.disconnects {
			d()
		}
		close(c.done)
		c.out.Close()
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("close handshake failed", "error", werr)
		}
		err = c.ws.Close()
	})
	return err
}
