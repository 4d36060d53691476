package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/presence"
)

func TestSyncSelected(t *testing.T) {
	m := newTestModel(t, "a", ReadOnly())

	var seen []map[string]presence.ClientState
	m.ClientStateChanged(func(s map[string]presence.ClientState) { seen = append(seen, s) })

	m.SyncSelected(map[string]presence.Selection{
		"L1": {Type: presence.SelectionLayer},
	}, "layers-panel")

	sel := m.LocalState().Selected
	require.NotNil(t, sel)
	assert.Equal(t, "layers-panel", sel.Emitter)
	assert.Equal(t, presence.SelectionLayer, sel.Value["L1"].Type)
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0], m.ClientID())
	assert.Empty(t, m.Document().Log(), "selection never touches the document")
}

func TestSetUserToFollow(t *testing.T) {
	m := newTestModel(t, "a")
	m.SetUser(presence.User{Username: "ada", Initials: "A"})
	m.SetUserToFollow("b")

	st := m.LocalState()
	assert.Equal(t, "b", st.RemoteUser)
	require.NotNil(t, st.User)
	assert.Equal(t, "ada", st.User.Username)

	m.SetUserToFollow("")
	assert.Empty(t, m.LocalState().RemoteUser)
}

func TestUsersChanged(t *testing.T) {
	a, b := newTestModel(t, "a"), newTestModel(t, "b")
	b.SetUser(presence.User{Username: "bob"})

	var users [][]presence.UserData
	a.UsersChanged(func(u []presence.UserData) { users = append(users, u) })

	a.Awareness().Apply(b.Awareness().Encode(b.ClientID()))
	require.Len(t, users, 1)
	assert.Contains(t, users[0], presence.UserData{ClientID: "b", User: presence.User{Username: "bob"}})

	// A selection change is an update, not a join.
	b.SyncSelected(map[string]presence.Selection{"G": {Type: presence.SelectionGroup}}, "tree")
	a.Awareness().Apply(b.Awareness().Encode(b.ClientID()))
	assert.Len(t, users, 1)
	assert.Equal(t, "tree", a.ClientStates()["b"].Selected.Emitter)

	a.Awareness().Remove("b")
	require.Len(t, users, 2)
	assert.NotContains(t, a.ClientStates(), "b")
}

func TestUsersChanged_IdentityUpdates(t *testing.T) {
	a, b := newTestModel(t, "a"), newTestModel(t, "b")
	b.SyncSelected(nil, "tree")
	a.Awareness().Apply(b.Awareness().Encode(b.ClientID()))

	var users [][]presence.UserData
	a.UsersChanged(func(u []presence.UserData) { users = append(users, u) })

	// b was known without a user; announcing one is an update.
	b.SetUser(presence.User{Username: "bob"})
	a.Awareness().Apply(b.Awareness().Encode(b.ClientID()))
	require.Len(t, users, 1)
	assert.Equal(t, []presence.UserData{{ClientID: "b", User: presence.User{Username: "bob"}}}, users[0])

	b.SetUser(presence.User{Username: "bob", Color: "#f00"})
	a.Awareness().Apply(b.Awareness().Encode(b.ClientID()))
	require.Len(t, users, 2)
	assert.Equal(t, "#f00", users[1][0].User.Color)

	a.SetUser(presence.User{Username: "alice"})
	require.Len(t, users, 3)
	assert.Len(t, users[2], 2)
}
