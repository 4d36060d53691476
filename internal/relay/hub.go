package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/presence"
)

// OpLog persists document ops. *store.Store implements it.
type OpLog interface {
	WriteOps(ctx context.Context, docID string, ops []crdt.Op) (int, error)
	ReadOps(ctx context.Context, docID string) ([]crdt.Op, error)
}

// syncOrigin is the Update.Origin of log snapshots sent by the relay.
const syncOrigin = "relay"

type eventKind int

const (
	eventJoin eventKind = iota + 1
	eventLeave
	eventInbound
	eventBroadcast
)

type event struct {
	kind  eventKind
	conn  *conn
	msg   Message
	docID string
	env   envelope
}

// room is the hub's state for one document.
type room struct {
	conns map[string]*conn
	// announced holds, per connection, the presence clients it spoke for
	// and their last clock. Used to announce departure on disconnect.
	announced map[string]map[string]uint64
	// presence is the latest entry per client seen through the broker.
	presence    map[string]presence.Entry
	unsubscribe func() error
}

func newRoom() *room {
	return &room{
		conns:     make(map[string]*conn),
		announced: make(map[string]map[string]uint64),
		presence:  make(map[string]presence.Entry),
	}
}

// Hub owns every connection of one relay process.
//
// CRITICAL: rooms is touched only by the Run goroutine.
type Hub struct {
	id      string
	log     OpLog
	broker  Broker
	logger  *slog.Logger
	metrics *Metrics
	queue   *queue[event]
	rooms   map[string]*room
	nextID  atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics sets the instruments the hub updates.
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub persisting to log and fanning out through broker.
func NewHub(log OpLog, broker Broker, opts ...HubOption) *Hub {
	h := &Hub{
		id:     uuid.Must(uuid.NewV7()).String(),
		log:    log,
		broker: broker,
		logger: slog.Default(),
		queue:  newQueue[event](),
		rooms:  make(map[string]*room),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics()
	}
	h.logger = h.logger.With("hub", h.id)
	return h
}

// Metrics returns the hub's instruments.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Run processes events until ctx is cancelled or Stop is called. All room
// state is mutated here and nowhere else.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("relay hub starting")
	defer h.shutdown()

	for {
		ev, ok := h.queue.TryDequeue()
		if ok {
			h.handle(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			h.logger.Info("relay hub stopping: context cancelled")
			h.queue.Close()
			return ctx.Err()
		case <-h.queue.Wait():
			if h.queue.Drained() {
				h.logger.Info("relay hub stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop makes Run return once queued events are handled.
func (h *Hub) Stop() {
	h.queue.Close()
}

func (h *Hub) shutdown() {
	for docID, r := range h.rooms {
		for _, c := range r.conns {
			close(c.send)
			h.metrics.connections.Dec()
		}
		if r.unsubscribe != nil {
			if err := r.unsubscribe(); err != nil {
				h.logger.Warn("unsubscribe failed", "doc", docID, "error", err)
			}
		}
	}
	h.rooms = map[string]*room{}
}

func (h *Hub) newConnID() string {
	return fmt.Sprintf("%s/%d", h.id, h.nextID.Add(1))
}

// register queues a new connection. Returns false once the hub stopped.
func (h *Hub) register(c *conn) bool {
	return h.queue.Enqueue(event{kind: eventJoin, conn: c})
}

func (h *Hub) unregister(c *conn) {
	h.queue.Enqueue(event{kind: eventLeave, conn: c})
}

func (h *Hub) inbound(c *conn, msg Message) {
	h.queue.Enqueue(event{kind: eventInbound, conn: c, msg: msg})
}

func (h *Hub) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventJoin:
		h.join(ctx, ev.conn)
	case eventLeave:
		if r := h.rooms[ev.conn.docID]; r != nil && r.conns[ev.conn.id] == ev.conn {
			h.drop(ctx, r, ev.conn)
		}
	case eventInbound:
		h.receive(ctx, ev.conn, ev.msg)
	case eventBroadcast:
		h.broadcast(ctx, ev.docID, ev.env)
	default:
		h.logger.Error("unknown hub event", "kind", ev.kind)
	}
}

func (h *Hub) join(ctx context.Context, c *conn) {
	r, ok := h.rooms[c.docID]
	if !ok {
		r = newRoom()
		docID := c.docID
		unsub, err := h.broker.Subscribe(ctx, docID, func(payload []byte) {
			var env envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				h.logger.Warn("dropping malformed broker message", "doc", docID, "error", err)
				return
			}
			h.queue.Enqueue(event{kind: eventBroadcast, docID: docID, env: env})
		})
		if err != nil {
			h.logger.Error("subscribe failed; refusing connection", "doc", docID, "error", err)
			close(c.send)
			return
		}
		r.unsubscribe = unsub
		h.rooms[docID] = r
	}
	r.conns[c.id] = c
	h.metrics.connections.Inc()
	h.logger.Debug("connection joined", "doc", c.docID, "conn", c.id, "peers", len(r.conns))

	ops, err := h.log.ReadOps(ctx, c.docID)
	if err != nil {
		h.logger.Error("read op log failed", "doc", c.docID, "error", err)
		ops = []crdt.Op{}
	}
	h.deliver(ctx, r, c, Message{Type: TypeSync, Update: &crdt.Update{Origin: syncOrigin, Ops: ops}})

	if len(r.presence) > 0 {
		snapshot := presence.Update{Entries: make([]presence.Entry, 0, len(r.presence))}
		for _, id := range sortedKeys(r.presence) {
			snapshot.Entries = append(snapshot.Entries, r.presence[id])
		}
		h.deliver(ctx, r, c, Message{Type: TypeAwareness, Awareness: &snapshot})
	}
}

// drop removes c from its room, closes its writer and tells the other
// peers the presence clients it spoke for have left.
func (h *Hub) drop(ctx context.Context, r *room, c *conn) {
	delete(r.conns, c.id)
	close(c.send)
	h.metrics.connections.Dec()
	h.logger.Debug("connection left", "doc", c.docID, "conn", c.id, "peers", len(r.conns))

	if ann := r.announced[c.id]; len(ann) > 0 {
		gone := presence.Update{}
		for _, id := range sortedKeys(ann) {
			gone.Entries = append(gone.Entries, presence.Entry{ClientID: id, Clock: ann[id] + 1})
		}
		h.publish(ctx, c.docID, envelope{Origin: c.id, Message: Message{Type: TypeAwareness, Awareness: &gone}})
	}
	delete(r.announced, c.id)

	if len(r.conns) == 0 {
		if r.unsubscribe != nil {
			if err := r.unsubscribe(); err != nil {
				h.logger.Warn("unsubscribe failed", "doc", c.docID, "error", err)
			}
		}
		delete(h.rooms, c.docID)
	}
}

func (h *Hub) receive(ctx context.Context, c *conn, msg Message) {
	r := h.rooms[c.docID]
	if r == nil || r.conns[c.id] != c {
		return
	}
	h.metrics.message(msg.Type, "in")

	switch msg.Type {
	case TypeSync, TypeUpdate:
		n, err := h.log.WriteOps(ctx, c.docID, msg.Update.Ops)
		if err != nil {
			h.logger.Error("persist update failed", "doc", c.docID, "conn", c.id, "error", err)
			return
		}
		h.metrics.persistedOps.Add(float64(n))
		if n == 0 {
			return
		}
		msg.Type = TypeUpdate
	case TypeAwareness:
		ann := r.announced[c.id]
		if ann == nil {
			ann = make(map[string]uint64)
			r.announced[c.id] = ann
		}
		for _, e := range msg.Awareness.Entries {
			if e.State == nil {
				delete(ann, e.ClientID)
				continue
			}
			ann[e.ClientID] = max(ann[e.ClientID], e.Clock)
		}
	}
	h.publish(ctx, c.docID, envelope{Origin: c.id, Message: msg})
}

func (h *Hub) publish(ctx context.Context, docID string, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode broker message failed", "doc", docID, "error", err)
		return
	}
	if err := h.broker.Publish(ctx, docID, payload); err != nil {
		h.logger.Error("broker publish failed", "doc", docID, "error", err)
	}
}

func (h *Hub) broadcast(ctx context.Context, docID string, env envelope) {
	r := h.rooms[docID]
	if r == nil {
		return
	}
	if env.Message.Type == TypeAwareness && env.Message.Awareness != nil {
		for _, e := range env.Message.Awareness.Entries {
			cur, known := r.presence[e.ClientID]
			switch {
			case known && e.Clock <= cur.Clock:
			case e.State == nil:
				delete(r.presence, e.ClientID)
			default:
				r.presence[e.ClientID] = e
			}
		}
	}
	for id, c := range r.conns {
		if id == env.Origin {
			continue
		}
		h.deliver(ctx, r, c, env.Message)
	}
}

// deliver queues msg on c's writer. A connection whose buffer is full is
// too slow to keep up and is dropped.
func (h *Hub) deliver(ctx context.Context, r *room, c *conn, msg Message) {
	if r.conns[c.id] != c {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode message failed", "conn", c.id, "error", err)
		return
	}
	select {
	case c.send <- payload:
		h.metrics.message(msg.Type, "out")
	default:
		h.logger.Warn("dropping slow connection", "doc", c.docID, "conn", c.id)
		h.drop(ctx, r, c)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
