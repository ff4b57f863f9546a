package countdown

import (
	"testing"
	"time"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = cmd.Actor{ID: "u1", Name: "Alice", Interactive: true}

func TestCountdown_Completes(t *testing.T) {
	h := cmdtest.New(t, alice)
	h.Grant(alice, "cmd.countdown")
	d := h.Dispatcher(t, New(h.Scheduler))

	require.NoError(t, h.Run(t, d, alice, "countdown 1"))
	assert.Equal(t, "[Countdown] Started a 1s countdown", h.Last(t, alice.ID))

	err := h.Run(t, d, alice, "countdown 2")
	assert.ErrorContains(t, err, "A countdown is already running")

	require.Eventually(t, func() bool {
		b := h.Broadcasts()
		return len(b) > 0 && b[len(b)-1] == "[Countdown] Go!"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"[Countdown] 1...", "[Countdown] Go!"}, h.Broadcasts())

	require.NoError(t, h.Run(t, d, alice, "countdown 1"), "a finished countdown frees the slot")
}

func TestCountdown_Stop(t *testing.T) {
	h := cmdtest.New(t, alice)
	h.Grant(alice, "cmd.countdown")
	d := h.Dispatcher(t, New(h.Scheduler))

	err := h.Run(t, d, alice, "countdown stop")
	assert.ErrorContains(t, err, "No countdown is running")

	require.NoError(t, h.Run(t, d, alice, "countdown 60"))
	require.NoError(t, h.Run(t, d, alice, "countdown stop"))
	assert.Contains(t, h.Broadcasts(), "[Countdown] Countdown cancelled by Alice")

	err = h.Run(t, d, alice, "countdown 301")
	assert.True(t, cmderr.Is(err, cmderr.KindInvalidInput))
}
