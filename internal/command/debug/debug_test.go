package debug

import (
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebug(t *testing.T) {
	h := cmdtest.New(t)
	reg := h.Registry(t, Command{})
	require.NoError(t, reg.Redirect("/dbg", "//debug"))
	d := cmd.NewDispatcher(reg)
	op := cmdtest.Console

	require.NoError(t, h.Run(t, d, op, "/debug echo &cred &ltext"))
	assert.Equal(t, "[Debug] red text", h.Last(t, op.ID))

	require.NoError(t, h.Run(t, d, op, "/debug slow"))
	assert.Equal(t, "[Debug] ran on a worker: true", h.Last(t, op.ID))

	require.NoError(t, h.Run(t, d, op, "dbg env"))
	assert.Equal(t, []string{"[Debug] env dev, 1 commands", "redirects: /dbg -> //debug"}, h.Replies(op.ID)[2:])

	err := h.Run(t, d, op, "/debug panic")
	assert.True(t, cmderr.Is(err, cmderr.KindInternal))
	assert.ErrorContains(t, err, "debug panic")

	err = h.Run(t, d, op, "debug env")
	assert.ErrorIs(t, err, cmd.ErrUnknownCommand, "double-slash commands are only reachable with the extra slash")
}

func TestDebug_ProdSkips(t *testing.T) {
	h := cmdtest.New(t)
	reg := cmd.NewRegistry(h.Host(), cmd.WithEnv(cmd.Prod))
	reg.Add(Command{})
	require.NoError(t, reg.RegisterAll())
	t.Cleanup(reg.UnregisterAll)

	assert.Empty(t, reg.Commands())
	err := h.Run(t, cmd.NewDispatcher(reg), cmdtest.Console, "/debug env")
	assert.ErrorIs(t, err, cmd.ErrUnknownCommand)
}
