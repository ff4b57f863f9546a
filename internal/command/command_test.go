package command

import (
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/internal/permfile"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_RegistersCleanly(t *testing.T) {
	h := cmdtest.New(t)
	src, err := permfile.Parse(nil)
	require.NoError(t, err)

	all := All(Deps{Scheduler: h.Scheduler, Permissions: src})
	reg := h.Registry(t, all...)

	assert.Len(t, reg.Commands(), len(all))
	for _, alias := range []string{"help", "roll", "tp", "volume", "warp", "poke", "cd", "jobs", "/debug", "countdown", "perms"} {
		_, ok := reg.Lookup(alias)
		assert.True(t, ok, alias)
	}
	_, ok := reg.Lookup("history")
	assert.False(t, ok, "no history without a store")
}

func TestAll_ProdDropsDebug(t *testing.T) {
	h := cmdtest.New(t)
	reg := cmd.NewRegistry(h.Host(), cmd.WithEnv(cmd.Prod))
	all := All(Deps{})
	reg.Add(all...)
	require.NoError(t, reg.RegisterAll())
	t.Cleanup(reg.UnregisterAll)

	assert.Len(t, reg.Commands(), len(all)-1)
	_, ok := reg.Lookup("/debug")
	assert.False(t, ok)
}
