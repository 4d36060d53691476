package model

import (
	"slices"

	"github.com/roach88/gisdoc/internal/presence"
)

// ClientID returns the presence id of this session.
func (m *Model) ClientID() string { return m.awareness.ClientID() }

// SyncSelected publishes the local selection. It touches presence only,
// never the document, and is allowed in read-only mode.
func (m *Model) SyncSelected(selection map[string]presence.Selection, emitter string) {
	m.awareness.UpdateLocalState(func(s *presence.ClientState) {
		s.Selected = &presence.Selected{Value: selection, Emitter: emitter}
	})
}

// SetUserToFollow makes this session follow another client's view. An
// empty id stops following.
func (m *Model) SetUserToFollow(clientID string) {
	m.awareness.UpdateLocalState(func(s *presence.ClientState) {
		s.RemoteUser = clientID
	})
}

// SetUser announces the local identity.
func (m *Model) SetUser(u presence.User) {
	m.awareness.UpdateLocalState(func(s *presence.ClientState) {
		s.User = &u
	})
}

// LocalState returns the local session state.
func (m *Model) LocalState() presence.ClientState { return m.awareness.LocalState() }

// ClientStates returns every known session state keyed by client id.
func (m *Model) ClientStates() map[string]presence.ClientState { return m.awareness.States() }

// Users returns every session that announced an identity.
func (m *Model) Users() []presence.UserData { return m.awareness.Users() }

// ClientStateChanged registers fn for any presence change; fn receives all
// current states.
func (m *Model) ClientStateChanged(fn func(map[string]presence.ClientState)) func() {
	return m.clientStateChanged.Connect(fn)
}

// UsersChanged registers fn for any change to the list Users returns: a
// session announcing, changing or dropping its identity, or leaving.
func (m *Model) UsersChanged(fn func([]presence.UserData)) func() {
	return m.usersChanged.Connect(fn)
}

func (m *Model) onPresenceChanged(presence.ChangeEvent) {
	m.clientStateChanged.Emit(m.awareness.States())

	users := m.awareness.Users()
	m.mu.Lock()
	changed := !slices.Equal(m.users, users)
	m.users = users
	m.mu.Unlock()
	if changed {
		m.usersChanged.Emit(users)
	}
}
