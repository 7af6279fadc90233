package gameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lasertag/internal/game/session"
)

func TestDirectory_RegisterLookupSend(t *testing.T) {
	d := NewDirectory()
	out := session.NewOutbox("c1", 4)
	require.NoError(t, d.Register(out))
	assert.Equal(t, 1, d.Count())

	got, ok := d.Lookup("c1")
	require.True(t, ok)
	assert.Same(t, out, got)

	require.NoError(t, d.Send("c1", []byte("hi")))
	assert.Equal(t, []byte("hi"), <-out.Events())
}

func TestDirectory_DuplicateRegister(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.Register(session.NewOutbox("c1", 1)))
	err := d.Register(session.NewOutbox("c1", 1))
	assert.ErrorIs(t, err, ErrDuplicateConnection)
}

func TestDirectory_UnregisterClosesOutbox(t *testing.T) {
	d := NewDirectory()
	out := session.NewOutbox("c1", 1)
	require.NoError(t, d.Register(out))

	d.Unregister("c1")
	assert.True(t, out.IsClosed())
	_, ok := d.Lookup("c1")
	assert.False(t, ok)
	assert.ErrorIs(t, d.Send("c1", []byte("x")), ErrUnknownConnection)

	d.Unregister("c1")
	assert.Equal(t, 0, d.Count())
}

func TestDirectory_LookupSkipsClosedOutbox(t *testing.T) {
	d := NewDirectory()
	out := session.NewOutbox("c1", 1)
	require.NoError(t, d.Register(out))
	out.Close()

	_, ok := d.Lookup("c1")
	assert.False(t, ok)
}

func TestDirectory_SendFull(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.Register(session.NewOutbox("c1", 1)))
	require.NoError(t, d.Send("c1", []byte("a")))
	assert.ErrorIs(t, d.Send("c1", []byte("b")), session.ErrOutboxFull)
}
