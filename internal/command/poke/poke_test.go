package poke

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

func TestPoke(t *testing.T) {
	h := cmdtest.New(t, alice, bob, carol)
	h.Grant(alice, "cmd.poke")
	d := h.Dispatcher(t, Command{})

	require.NoError(t, h.Run(t, d, alice, "poke bob car Bob"))
	assert.Equal(t, "[Poke] Poked Bob, Carol", h.Last(t, alice.ID))
	assert.Equal(t, []string{"[Poke] Alice poked you!"}, h.Replies(bob.ID))
	assert.Equal(t, []string{"[Poke] Alice poked you!"}, h.Replies(carol.ID))

	err := h.Run(t, d, alice, "poke carol")
	assert.True(t, cmderr.Is(err, cmderr.KindCommand))
	assert.Contains(t, h.Last(t, alice.ID), "You can run this command again in")

	left, err := d.Registry().Cooldowns().Of(alice.ID).Remaining("poke")
	require.NoError(t, err)
	assert.Positive(t, left)
}

func TestPoke_Failures(t *testing.T) {
	h := cmdtest.New(t, alice, bob, carol)
	h.Grant(alice, "cmd.poke")
	h.SetOnline(carol, false)
	d := h.Dispatcher(t, Command{})

	err := h.Run(t, d, alice, "poke bob carol")
	assert.True(t, cmderr.Is(err, cmderr.KindActorUnavailable))
	assert.Empty(t, h.Replies(bob.ID), "nothing is sent when any target fails")

	err = h.Run(t, d, alice, "poke")
	assert.True(t, cmderr.Is(err, cmderr.KindMissingArgument))

	err = h.Run(t, d, cmdtest.Console, "poke bob")
	assert.True(t, cmderr.Is(err, cmderr.KindMustBeInteractive))

	_, ok, err := d.Registry().Cooldowns().Of(alice.ID).Get("poke")
	require.NoError(t, err)
	assert.False(t, ok, "failed resolution never starts the cooldown")

	err = h.Run(t, d, alice, "poke alice")
	assert.ErrorContains(t, err, "You can't poke yourself")
}
