package middleware

import (
	"bytes"
	"context"
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{}

func (ping) Spec() cmd.Spec {
	return cmd.Spec{
		Name:    "Ping",
		Aliases: []string{"ping"},
		Paths: []cmd.Path{{
			Run: func(_ context.Context, inv *cmd.Invocation) error {
				inv.Reply("pong")
				return nil
			},
		}},
	}
}

func TestWithMaintenance(t *testing.T) {
	alice := cmd.Actor{ID: "a", Name: "Alice", Interactive: true}
	h := cmdtest.New(t, alice)
	var sw Switch
	d := cmd.NewDispatcher(h.Registry(t, ping{}), cmd.WithMiddleware(WithMaintenance(&sw, "cmd.bypass")))

	require.NoError(t, h.Run(t, d, alice, "ping"))
	assert.Equal(t, "pong", h.Last(t, alice.ID))

	sw.Enable("upgrading")
	assert.True(t, sw.Enabled())
	err := h.Run(t, d, alice, "ping")
	assert.ErrorContains(t, err, MaintenanceMessage+" (upgrading)")

	require.NoError(t, h.Run(t, d, cmdtest.Console, "ping"), "console bypasses maintenance")

	h.Grant(alice, "cmd.bypass")
	require.NoError(t, h.Run(t, d, alice, "ping"))

	sw.Disable()
	assert.False(t, sw.Enabled())
	assert.Empty(t, sw.Reason())
}

func TestWithCommandLogger(t *testing.T) {
	h := cmdtest.New(t)
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	d := cmd.NewDispatcher(h.Registry(t, ping{}), cmd.WithMiddleware(WithCommandLogger(log)))

	require.NoError(t, h.Run(t, d, cmdtest.Console, "ping"))
	assert.Contains(t, buf.String(), `"alias":"ping"`)
	assert.Contains(t, buf.String(), `"actor":"CONSOLE"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}
