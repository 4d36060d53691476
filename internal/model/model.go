package model

import (
	"log/slog"
	"sync"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/ir"
	"github.com/roach88/gisdoc/internal/layertree"
	"github.com/roach88/gisdoc/internal/presence"
	"github.com/roach88/gisdoc/internal/signal"
)

// Model wraps one document replica and one presence session.
type Model struct {
	doc       *document.Document
	awareness *presence.Awareness
	logger    *slog.Logger

	mu       sync.Mutex
	dirty    bool
	readOnly bool
	users    []presence.UserData // last list sent to UsersChanged

	clientStateChanged signal.Signal[map[string]presence.ClientState]
	usersChanged       signal.Signal[[]presence.UserData]
	disconnects        []func()
}

// New creates a model over doc. A nil awareness creates a session whose
// client id is the document's replica id.
func New(doc *document.Document, awareness *presence.Awareness, opts ...Option) *Model {
	if awareness == nil {
		awareness = presence.New(doc.ReplicaID())
	}
	m := &Model{
		doc:       doc,
		awareness: awareness,
		logger:    slog.Default().With("replica", doc.ReplicaID()),
		users:     awareness.Users(),
	}
	for _, opt := range opts {
		opt(m)
	}

	markDirty := func() { m.SetDirty(true) }
	m.disconnects = append(m.disconnects,
		doc.LayersChanged(func(document.LayersEvent) { markDirty() }),
		doc.SourcesChanged(func(document.SourcesEvent) { markDirty() }),
		doc.LayerTreeChanged(func(document.TreeEvent) { markDirty() }),
		doc.OptionsChanged(func(document.OptionsEvent) { markDirty() }),
		awareness.Changed(m.onPresenceChanged),
	)
	return m
}

// Close detaches the model from its document and session.
func (m *Model) Close() {
	for _, d := range m.disconnects {
		d()
	}
	m.disconnects = nil
}

// Document returns the underlying document.
func (m *Model) Document() *document.Document { return m.doc }

// Awareness returns the presence session.
func (m *Model) Awareness() *presence.Awareness { return m.awareness }

// Dirty reports whether the content changed since the flag was last cleared.
func (m *Model) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// SetDirty sets the dirty flag; callers clear it after saving.
func (m *Model) SetDirty(v bool) {
	m.mu.Lock()
	m.dirty = v
	m.mu.Unlock()
}

// IsReadOnly reports whether mutations are rejected.
func (m *Model) IsReadOnly() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readOnly
}

// SetReadOnly switches read-only mode. Remote updates still apply.
func (m *Model) SetReadOnly(v bool) {
	m.mu.Lock()
	m.readOnly = v
	m.mu.Unlock()
}

// transact runs fn as one document transaction unless the model is
// read-only.
func (m *Model) transact(fn func(*document.Tx) error) error {
	if m.IsReadOnly() {
		return document.NewError(document.ErrCodeReadOnly, "", "model is read-only")
	}
	err := m.doc.Transact(fn)
	if err != nil {
		m.logger.Debug("model operation rejected", "error", err)
	}
	return err
}

// Change signals, forwarded from the document.

// LayersChanged registers fn for layer changes.
func (m *Model) LayersChanged(fn func(document.LayersEvent)) func() {
	return m.doc.LayersChanged(fn)
}

// SourcesChanged registers fn for source changes.
func (m *Model) SourcesChanged(fn func(document.SourcesEvent)) func() {
	return m.doc.SourcesChanged(fn)
}

// LayerTreeChanged registers fn for layer tree edits.
func (m *Model) LayerTreeChanged(fn func(document.TreeEvent)) func() {
	return m.doc.LayerTreeChanged(fn)
}

// OptionsChanged registers fn for option changes.
func (m *Model) OptionsChanged(fn func(document.OptionsEvent)) func() {
	return m.doc.OptionsChanged(fn)
}

// Reads.

// Layer returns a layer by id.
func (m *Model) Layer(id string) (ir.Layer, bool) { return m.doc.Layer(id) }

// Source returns a source by id.
func (m *Model) Source(id string) (ir.Source, bool) { return m.doc.Source(id) }

// LayerTree returns a copy of the layer tree.
func (m *Model) LayerTree() []ir.LayerTreeItem { return m.doc.LayerTree() }

// Options returns a copy of the options.
func (m *Model) Options() ir.Options { return m.doc.Options() }

// Content returns a snapshot of the whole document.
func (m *Model) Content() ir.Content { return m.doc.Content() }

// OrderedLayerIDs returns the layer ids in render order: the layer tree
// flattened in pre-order.
func (m *Model) OrderedLayerIDs() []string {
	return layertree.Flatten(m.doc.LayerTree())
}

// SourcesByType returns id → name of every source of the given type.
func (m *Model) SourcesByType(t ir.SourceType) map[string]string {
	out := make(map[string]string)
	for id, s := range m.doc.Sources() {
		if s.Type == t {
			out[id] = s.Name
		}
	}
	return out
}

// LayersBySourceType returns the ids of layers whose source has the given
// type, sorted.
func (m *Model) LayersBySourceType(t ir.SourceType) []string {
	c := m.doc.Content()
	var out []string
	for _, id := range c.LayerIDs() {
		src, ok := c.Sources[c.Layers[id].Parameters.SourceID()]
		if ok && src.Type == t {
			out = append(out, id)
		}
	}
	return out
}

// UnusableLayers returns the ids of layers whose source reference does not
// resolve, sorted. A dangling reference makes a layer unusable, not invalid.
func (m *Model) UnusableLayers() []string {
	c := m.doc.Content()
	var out []string
	for _, id := range c.LayerIDs() {
		ref := c.Layers[id].Parameters.SourceID()
		if _, ok := c.Sources[ref]; ref != "" && !ok {
			out = append(out, id)
		}
	}
	return out
}

// Simple mutations.

// UpdateLayer replaces a layer record.
func (m *Model) UpdateLayer(id string, layer ir.Layer) error {
	return m.transact(func(tx *document.Tx) error { return tx.UpdateLayer(id, layer) })
}

// AddSource creates a source.
func (m *Model) AddSource(id string, source ir.Source) error {
	return m.transact(func(tx *document.Tx) error { return tx.AddSource(id, source) })
}

// UpdateSource replaces a source record.
func (m *Model) UpdateSource(id string, source ir.Source) error {
	return m.transact(func(tx *document.Tx) error { return tx.UpdateSource(id, source) })
}

// RemoveSource deletes a source. Layers referencing it become unusable.
func (m *Model) RemoveSource(id string) error {
	return m.transact(func(tx *document.Tx) error {
		tx.RemoveSource(id)
		return nil
	})
}

// UpdateObjectParameters replaces the parameters of a layer or source.
func (m *Model) UpdateObjectParameters(id string, params ir.Parameters) error {
	return m.transact(func(tx *document.Tx) error { return tx.UpdateObjectParameters(id, params) })
}

// SetOptions replaces the options.
func (m *Model) SetOptions(opts ir.Options) error {
	return m.transact(func(tx *document.Tx) error { return tx.SetOptions(opts) })
}

// SetOption sets one option.
func (m *Model) SetOption(key string, value any) error {
	return m.transact(func(tx *document.Tx) error { return tx.SetOption(key, value) })
}

// FromString replaces the whole document with validated JSON.
func (m *Model) FromString(s string) error {
	if m.IsReadOnly() {
		return document.NewError(document.ErrCodeReadOnly, "", "model is read-only")
	}
	return m.doc.FromString(s)
}

// String returns the document as canonical JSON.
func (m *Model) String() string { return m.doc.String() }
