package teleport

import (
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = cmd.Actor{ID: "u1", Name: "Alice", Interactive: true}
	bob   = cmd.Actor{ID: "u2", Name: "Bob", Interactive: true}
	carol = cmd.Actor{ID: "u3", Name: "Carol", Interactive: true}
)

func setup(t *testing.T) (*cmdtest.Host, *cmd.Dispatcher) {
	t.Helper()
	h := cmdtest.New(t, alice, bob, carol)
	h.Grant(alice, "cmd.teleport")
	h.Grant(bob, "cmd.teleport.*", "cmd.teleport")
	return h, h.Dispatcher(t, New())
}

func TestTeleport_Self(t *testing.T) {
	h, d := setup(t)

	require.NoError(t, h.Run(t, d, alice, "tp"))
	assert.Equal(t, "[Teleport] Teleported to spawn", h.Last(t, alice.ID))

	require.NoError(t, h.Run(t, d, alice, "teleport where"))
	assert.Equal(t, "[Teleport] Alice is at spawn", h.Last(t, alice.ID))

	err := h.Run(t, d, cmdtest.Console, "tp")
	assert.True(t, cmderr.Is(err, cmderr.KindMissingArgument), "the console has no position")
}

func TestTeleport_Others(t *testing.T) {
	h, d := setup(t)

	err := h.Run(t, d, alice, "tp Bob")
	assert.True(t, cmderr.Is(err, cmderr.KindNoPermission), "naming a player needs the others permission")
	err = h.Run(t, d, alice, "tp Alice Bob")
	assert.True(t, cmderr.Is(err, cmderr.KindNoPermission))

	require.NoError(t, h.Run(t, d, bob, "tp ali bob"))
	assert.Equal(t, "[Teleport] Alice moved", h.Last(t, bob.ID))
	assert.Equal(t, "[Teleport] Teleported to Bob", h.Last(t, alice.ID))

	err = h.Run(t, d, bob, "tp Alice alice")
	assert.ErrorContains(t, err, "Can't teleport Alice to themselves")

	h.SetOnline(carol, false)
	err = h.Run(t, d, bob, "tp Carol")
	assert.True(t, cmderr.Is(err, cmderr.KindActorUnavailable))
}

func TestTeleport_ForgetsOnLeave(t *testing.T) {
	h, d := setup(t)

	require.NoError(t, h.Run(t, d, alice, "tp"))
	h.Emit(cmd.Left{Actor: alice})

	err := h.Run(t, d, alice, "tp where")
	assert.ErrorContains(t, err, "Alice has not teleported anywhere")
}

func TestTeleport_Complete(t *testing.T) {
	h, d := setup(t)
	h.SetOnline(carol, false)

	assert.Equal(t, []string{"Alice", "Bob", "where"}, d.Complete(t.Context(), bob, "tp "))
	assert.Equal(t, []string{"where"}, d.Complete(t.Context(), bob, "tp wh"))
	assert.Empty(t, d.Complete(t.Context(), alice, "tp Bob "), "alice cannot use the two-player path")
}
