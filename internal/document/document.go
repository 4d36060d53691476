package document

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/signal"
)

// Document is one replica of a shared gisdoc document.
type Document struct {
	mu      sync.Mutex
	replica *crdt.Replica
	logger  *slog.Logger

	layersChanged    signal.Signal[LayersEvent]
	sourcesChanged   signal.Signal[SourcesEvent]
	layerTreeChanged signal.Signal[TreeEvent]
	optionsChanged   signal.Signal[OptionsEvent]
	localUpdate      signal.Signal[UpdateEvent]
}

// Option configures a Document.
type Option func(*config)

type config struct {
	replicaID string
	ids       crdt.IDGenerator
	logger    *slog.Logger
}

// WithReplicaID fixes the replica id. Tests use it to make tie-breaks
// between replicas predictable.
func WithReplicaID(id string) Option {
	return func(c *config) { c.replicaID = id }
}

// WithIDGenerator sets the generator used for the replica id when
// WithReplicaID is not given.
//
// Default: crdt.UUIDv7Generator.
func WithIDGenerator(g crdt.IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates an empty document.
func New(opts ...Option) *Document {
	cfg := config{ids: crdt.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.replicaID == "" {
		cfg.replicaID = cfg.ids.Generate()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Document{
		replica: crdt.NewReplica(cfg.replicaID),
		logger:  cfg.logger.With("replica", cfg.replicaID),
	}
}

// ReplicaID returns the id that stamps this document's ops.
func (d *Document) ReplicaID() string {
	return d.replica.ID()
}

// LayersChanged registers fn for layer changes.
func (d *Document) LayersChanged(fn func(LayersEvent)) (disconnect func()) {
	return d.layersChanged.Connect(fn)
}

// SourcesChanged registers fn for source changes.
func (d *Document) SourcesChanged(fn func(SourcesEvent)) (disconnect func()) {
	return d.sourcesChanged.Connect(fn)
}

// LayerTreeChanged registers fn for edits of the root layer tree.
func (d *Document) LayerTreeChanged(fn func(TreeEvent)) (disconnect func()) {
	return d.layerTreeChanged.Connect(fn)
}

// OptionsChanged registers fn for option changes.
func (d *Document) OptionsChanged(fn func(OptionsEvent)) (disconnect func()) {
	return d.optionsChanged.Connect(fn)
}

// LocalUpdate registers fn for the ops of every local transaction.
// The relay client uses this to ship updates to peers.
func (d *Document) LocalUpdate(fn func(UpdateEvent)) (disconnect func()) {
	return d.localUpdate.Connect(fn)
}

// Layer returns the layer with the given id.
func (d *Document) Layer(id string) (ir.Layer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layer(id)
}

// LayerExists reports whether a layer with the given id exists.
func (d *Document) LayerExists(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replica.Map(crdt.CollectionLayers).Has(id)
}

// Layers returns a copy of every layer keyed by id.
func (d *Document) Layers() map[string]ir.Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layers()
}

// Source returns the source with the given id.
func (d *Document) Source(id string) (ir.Source, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source(id)
}

// SourceExists reports whether a source with the given id exists.
func (d *Document) SourceExists(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replica.Map(crdt.CollectionSources).Has(id)
}

// Sources returns a copy of every source keyed by id.
func (d *Document) Sources() map[string]ir.Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sources()
}

// Object is a layer or a source, whichever owns an id.
type Object struct {
	ID     string
	Layer  *ir.Layer
	Source *ir.Source
}

// Parameters returns the parameters of whichever entity the object holds.
func (o Object) Parameters() ir.Parameters {
	if o.Layer != nil {
		return o.Layer.Parameters
	}
	if o.Source != nil {
		return o.Source.Parameters
	}
	return nil
}

// Object returns the layer or source with the given id. Layers win when
// both collections hold the id.
func (d *Document) Object(id string) (Object, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.layer(id); ok {
		return Object{ID: id, Layer: &l}, true
	}
	if s, ok := d.source(id); ok {
		return Object{ID: id, Source: &s}, true
	}
	return Object{}, false
}

// LayerTree returns a deep copy of the layer tree.
func (d *Document) LayerTree() []ir.LayerTreeItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layerTree()
}

// Options returns a copy of the options.
func (d *Document) Options() ir.Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.options()
}

// Option returns a single option value.
func (d *Document) Option(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.replica.Map(crdt.CollectionOptions).Get(key)
	if !ok {
		return nil, false
	}
	v, err := ir.DecodeValue(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Content returns a snapshot of the whole document.
func (d *Document) Content() ir.Content {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ir.Content{
		Layers:    d.layers(),
		Sources:   d.sources(),
		LayerTree: d.layerTree(),
		Options:   d.options(),
	}
}

// StateHash returns the hash of the document content. Replicas that have
// integrated the same ops return the same hash.
func (d *Document) StateHash() (string, error) {
	return ir.StateHash(d.Content())
}

// Log returns every op this replica has integrated, in causal order.
func (d *Document) Log() []crdt.Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replica.Log()
}

// Pending returns the number of remote ops waiting for a dependency.
func (d *Document) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replica.Pending()
}

// ApplyUpdate integrates ops from another replica and emits change events
// with Local set to false. Ops already integrated are ignored, so the same
// update may be delivered more than once.
//
// The update is rejected as a whole with FORMAT_ERROR if any op is malformed
// or carries a value of the wrong shape for its collection.
func (d *Document) ApplyUpdate(u crdt.Update) error {
	for _, op := range u.Ops {
		if err := CheckOp(op); err != nil {
			return err
		}
	}

	d.mu.Lock()
	changes, err := d.replica.Apply(u.Ops)
	pending := d.replica.Pending()
	d.mu.Unlock()
	if err != nil {
		return NewError(ErrCodeFormat, "", "apply update from %q: %v", u.Origin, err)
	}

	d.logger.Debug("applied update",
		"origin", u.Origin,
		"ops", len(u.Ops),
		"changes", len(changes),
		"pending", pending)
	d.publish(changes, false)
	return nil
}

// LoadUpdates integrates a persisted op log. It is ApplyUpdate without an
// origin.
func (d *Document) LoadUpdates(ops []crdt.Op) error {
	return d.ApplyUpdate(crdt.Update{Ops: ops})
}

// CheckOp reports whether op is well formed and carries a value an import
// would accept: known layer and source types, non-empty leaves and named
// groups. Failures are FORMAT_ERROR.
func CheckOp(op crdt.Op) error {
	if err := op.Validate(); err != nil {
		return NewError(ErrCodeFormat, op.Key, "%v", err)
	}
	if op.Kind != crdt.OpSet && op.Kind != crdt.OpInsert {
		return nil
	}
	var err error
	switch op.Collection {
	case crdt.CollectionLayers:
		var l ir.Layer
		if err = ir.Decode(op.Value, &l); err == nil {
			err = checkLayer(op.Key, l)
		}
	case crdt.CollectionSources:
		var s ir.Source
		if err = ir.Decode(op.Value, &s); err == nil {
			err = checkSource(op.Key, s)
		}
	case crdt.CollectionLayerTree:
		var item ir.LayerTreeItem
		if err = ir.Decode(op.Value, &item); err == nil {
			err = checkTreeItem(item)
		}
	case crdt.CollectionOptions:
		_, err = ir.DecodeValue(op.Value)
	}
	if err != nil {
		return NewError(ErrCodeFormat, op.Key, "op %s on %s: %v", op.ID, op.Collection, err)
	}
	return nil
}

// The helpers below read the replica; callers hold d.mu.

func (d *Document) layer(id string) (ir.Layer, bool) {
	raw, ok := d.replica.Map(crdt.CollectionLayers).Get(id)
	if !ok {
		return ir.Layer{}, false
	}
	var l ir.Layer
	if err := ir.Decode(raw, &l); err != nil {
		d.logger.Warn("undecodable layer", "id", id, "error", err)
		return ir.Layer{}, false
	}
	return l, true
}

func (d *Document) source(id string) (ir.Source, bool) {
	raw, ok := d.replica.Map(crdt.CollectionSources).Get(id)
	if !ok {
		return ir.Source{}, false
	}
	var s ir.Source
	if err := ir.Decode(raw, &s); err != nil {
		d.logger.Warn("undecodable source", "id", id, "error", err)
		return ir.Source{}, false
	}
	return s, true
}

func (d *Document) layers() map[string]ir.Layer {
	m := d.replica.Map(crdt.CollectionLayers)
	out := make(map[string]ir.Layer, m.Len())
	for _, id := range m.Keys() {
		if l, ok := d.layer(id); ok {
			out[id] = l
		}
	}
	return out
}

func (d *Document) sources() map[string]ir.Source {
	m := d.replica.Map(crdt.CollectionSources)
	out := make(map[string]ir.Source, m.Len())
	for _, id := range m.Keys() {
		if s, ok := d.source(id); ok {
			out[id] = s
		}
	}
	return out
}

func (d *Document) layerTree() []ir.LayerTreeItem {
	values := d.replica.Tree().Values()
	out := make([]ir.LayerTreeItem, 0, len(values))
	for _, raw := range values {
		item, err := decodeTreeItem(raw)
		if err != nil {
			d.logger.Warn("undecodable layer tree item", "error", err)
			continue
		}
		out = append(out, item)
	}
	return out
}

func (d *Document) options() ir.Options {
	m := d.replica.Map(crdt.CollectionOptions)
	out := make(ir.Options, m.Len())
	for _, key := range m.Keys() {
		raw, _ := m.Get(key)
		v, err := ir.DecodeValue(raw)
		if err != nil {
			d.logger.Warn("undecodable option", "key", key, "error", err)
			continue
		}
		out[key] = v
	}
	return out
}

func decodeTreeItem(raw json.RawMessage) (ir.LayerTreeItem, error) {
	var item ir.LayerTreeItem
	err := ir.Decode(raw, &item)
	return item, err
}

// sameValue reports whether the stored value for key already encodes to raw.
func sameValue(m *crdt.Map, key string, raw json.RawMessage) bool {
	cur, ok := m.Get(key)
	return ok && bytes.Equal(cur, raw)
}
