// Package presence tracks ephemeral per-session client state: who is
// connected, what they have selected, whom they follow.
//
// Presence is never part of the durable document. Each client owns exactly
// one entry and is the only writer of it; entries carry a per-client clock
// and a remote entry replaces the local copy only when its clock is newer.
// Entries disappear when the session disconnects.
package presence

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/gisdoc/internal/signal"
)

// User is the identity a client announces.
type User struct {
	Username    string `json:"username"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Initials    string `json:"initials,omitempty"`
	Color       string `json:"color,omitempty"`
}

// SelectionType says whether a selected tree node is a layer or a group.
type SelectionType string

const (
	SelectionLayer SelectionType = "layer"
	SelectionGroup SelectionType = "group"
)

// Selection describes one selected tree node.
type Selection struct {
	Type SelectionType `json:"type"`
	// SelectedNodeID references the editor node showing the selection.
	SelectedNodeID string `json:"selectedNodeId,omitempty"`
}

// Selected is a client's current selection keyed by layer id or group name,
// plus the component that made it.
type Selected struct {
	Value   map[string]Selection `json:"value"`
	Emitter string               `json:"emitter,omitempty"`
}

// ClientState is everything one client shares about itself.
type ClientState struct {
	User     *User     `json:"user,omitempty"`
	Selected *Selected `json:"selected,omitempty"`
	// RemoteUser is the client id this client follows, if any.
	RemoteUser string `json:"remoteUser,omitempty"`
}

func (s ClientState) clone() ClientState {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Selected != nil {
		sel := Selected{Value: maps.Clone(s.Selected.Value), Emitter: s.Selected.Emitter}
		out.Selected = &sel
	}
	return out
}

// Entry is one client's state on the wire. A nil State announces that the
// client left.
type Entry struct {
	ClientID string       `json:"clientId"`
	Clock    uint64       `json:"clock"`
	State    *ClientState `json:"state"`
}

// Update is a batch of entries.
type Update struct {
	Entries []Entry `json:"entries"`
}

// ChangeEvent lists the client ids whose state appeared, changed or left.
type ChangeEvent struct {
	Added   []string
	Updated []string
	Removed []string
	Local   bool
}

func (e ChangeEvent) empty() bool {
	return len(e.Added) == 0 && len(e.Updated) == 0 && len(e.Removed) == 0
}

type entry struct {
	clock uint64
	state ClientState
}

// Awareness holds the presence entries known to one session.
//
// Thread-safety: Awareness is safe for concurrent use. Events are emitted
// after the internal mutex is released.
type Awareness struct {
	mu       sync.Mutex
	clientID string
	states   map[string]entry
	// clocks remembers the last clock seen for clients that left, so a
	// delayed entry from before the departure cannot bring them back.
	clocks map[string]uint64

	changed signal.Signal[ChangeEvent]
}

// New creates an Awareness for the local client with an empty state.
func New(clientID string) *Awareness {
	return &Awareness{
		clientID: clientID,
		states:   map[string]entry{clientID: {clock: 0}},
		clocks:   make(map[string]uint64),
	}
}

// ClientID returns the local client id.
func (a *Awareness) ClientID() string { return a.clientID }

// Changed registers fn for presence changes.
func (a *Awareness) Changed(fn func(ChangeEvent)) (disconnect func()) {
	return a.changed.Connect(fn)
}

// LocalState returns a copy of the local client's state.
func (a *Awareness) LocalState() ClientState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states[a.clientID].state.clone()
}

// SetLocalState replaces the local state and bumps the local clock.
func (a *Awareness) SetLocalState(s ClientState) {
	a.UpdateLocalState(func(cur *ClientState) { *cur = s.clone() })
}

// UpdateLocalState edits one or more fields of the local state in place and
// bumps the local clock.
func (a *Awareness) UpdateLocalState(fn func(*ClientState)) {
	a.mu.Lock()
	e := a.states[a.clientID]
	next := e.state.clone()
	fn(&next)
	a.states[a.clientID] = entry{clock: e.clock + 1, state: next}
	a.mu.Unlock()

	a.changed.Emit(ChangeEvent{Updated: []string{a.clientID}, Local: true})
}

// States returns a copy of every known client state keyed by client id.
func (a *Awareness) States() map[string]ClientState {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]ClientState, len(a.states))
	for id, e := range a.states {
		out[id] = e.state.clone()
	}
	return out
}

// ClientIDs returns the known client ids in sorted order.
func (a *Awareness) ClientIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Sorted(maps.Keys(a.states))
}

// Encode returns the current entries for the given clients, or for the
// local client when none are named.
func (a *Awareness) Encode(clientIDs ...string) Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(clientIDs) == 0 {
		clientIDs = []string{a.clientID}
	}
	u := Update{Entries: make([]Entry, 0, len(clientIDs))}
	for _, id := range clientIDs {
		e, ok := a.states[id]
		if !ok {
			continue
		}
		s := e.state.clone()
		u.Entries = append(u.Entries, Entry{ClientID: id, Clock: e.clock, State: &s})
	}
	return u
}

// Apply merges remote entries. An entry replaces what is known only if its
// clock is newer; entries about the local client are ignored.
func (a *Awareness) Apply(u Update) {
	var ev ChangeEvent

	a.mu.Lock()
	for _, in := range u.Entries {
		if in.ClientID == "" || in.ClientID == a.clientID {
			continue
		}
		cur, known := a.states[in.ClientID]
		last := a.clocks[in.ClientID]
		if known {
			last = cur.clock
		}
		if in.Clock <= last && (known || last > 0) {
			continue
		}
		if in.State == nil {
			a.clocks[in.ClientID] = in.Clock
			if known {
				delete(a.states, in.ClientID)
				ev.Removed = append(ev.Removed, in.ClientID)
			}
			continue
		}
		a.states[in.ClientID] = entry{clock: in.Clock, state: in.State.clone()}
		delete(a.clocks, in.ClientID)
		if known {
			ev.Updated = append(ev.Updated, in.ClientID)
		} else {
			ev.Added = append(ev.Added, in.ClientID)
		}
	}
	a.mu.Unlock()

	if !ev.empty() {
		a.changed.Emit(ev)
	}
}

// Remove drops remote clients, typically because their session closed.
// The local client cannot be removed.
func (a *Awareness) Remove(clientIDs ...string) {
	var ev ChangeEvent

	a.mu.Lock()
	for _, id := range clientIDs {
		if id == a.clientID {
			continue
		}
		if e, ok := a.states[id]; ok {
			a.clocks[id] = e.clock
			delete(a.states, id)
			ev.Removed = append(ev.Removed, id)
		}
	}
	a.mu.Unlock()

	if !ev.empty() {
		a.changed.Emit(ev)
	}
}

// UserData pairs a client id with the identity it announced.
type UserData struct {
	ClientID string
	User     User
}

// Users returns every client that announced a user, sorted by client id.
func (a *Awareness) Users() []UserData {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []UserData
	for _, id := range slices.Sorted(maps.Keys(a.states)) {
		if u := a.states[id].state.User; u != nil {
			out = append(out, UserData{ClientID: id, User: *u})
		}
	}
	return out
}
