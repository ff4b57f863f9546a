package maintenance

import (
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/internal/middleware"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenance(t *testing.T) {
	bob := cmd.Actor{ID: "b", Name: "Bob", Interactive: true}
	h := cmdtest.New(t, bob)
	h.Grant(bob, "cmd.maintenance")

	var sw middleware.Switch
	d := cmd.NewDispatcher(h.Registry(t, New(&sw)), cmd.WithMiddleware(middleware.WithMaintenance(&sw, Bypass)))
	op := cmdtest.Console

	require.NoError(t, h.Run(t, d, op, "maintenance"))
	assert.Equal(t, "[Maintenance] Commands are running normally", h.Last(t, op.ID))

	require.NoError(t, h.Run(t, d, op, "maintenance on moving servers"))
	assert.True(t, sw.Enabled())
	assert.Equal(t, "moving servers", sw.Reason())
	assert.Equal(t, []string{"Commands are paused for maintenance"}, h.Broadcasts())

	err := h.Run(t, d, bob, "maintenance")
	assert.True(t, cmderr.Is(err, cmderr.KindCommand))
	assert.Equal(t, "[Maintenance] "+middleware.MaintenanceMessage+" (moving servers)", h.Last(t, bob.ID))

	require.NoError(t, h.Run(t, d, op, "maintenance"))
	assert.Equal(t, "[Maintenance] Maintenance is on: moving servers", h.Last(t, op.ID))

	err = h.Run(t, d, op, "maintenance on")
	assert.ErrorContains(t, err, "already on")

	require.NoError(t, h.Run(t, d, op, "maintenance off"))
	assert.False(t, sw.Enabled())
	require.NoError(t, h.Run(t, d, bob, "maintenance"))

	err = h.Run(t, d, op, "maintenance off")
	assert.ErrorContains(t, err, "not on")
}
