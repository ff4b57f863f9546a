package roll

import (
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxRolls always rolls the highest face.
func maxRolls() *Command {
	return &Command{intN: func(n int) int { return n - 1 }}
}

func TestEvaluate(t *testing.T) {
	c := maxRolls()
	tests := []struct {
		formula string
		total   int
		detail  string
	}{
		{"2d6", 12, "2d6[6, 6]"},
		{"d20+3", 23, "d20[20] + 3"},
		{"2d6+1d4*2-3", 17, "2d6[6, 6] + 1d4[4] * 2 - 3"},
		{"10/3", 3, "10 / 3"},
		{"1D8", 8, "1d8[8]"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			res, err := c.Evaluate(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, tt.detail, res.Detail)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	c := maxRolls()
	tests := map[string]string{
		"":        "Can't parse your formula",
		"*2":      "Can't multiply or divide by nothing",
		"4/0":     "Can't divide by zero",
		"2d1":     "invalid dice sides",
		"101d6":   "too big",
		"1d1001":  "too big",
		"0d6":     "invalid dice count",
		"abc+xyz": "Can't parse your formula",
	}
	for formula, want := range tests {
		t.Run(formula, func(t *testing.T) {
			_, err := c.Evaluate(formula)
			require.Error(t, err)
			assert.True(t, cmderr.Is(err, cmderr.KindCommand))
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestRoll_Command(t *testing.T) {
	alice := cmd.Actor{ID: "u1", Name: "Alice", Interactive: true}
	h := cmdtest.New(t, alice)
	h.Grant(alice, "cmd.roll")
	d := h.Dispatcher(t, maxRolls())

	require.NoError(t, h.Run(t, d, alice, "roll 2d6 + 3"))
	assert.Equal(t, "[Roll] 2d6+3 = 2d6[6, 6] + 3 = 15", h.Last(t, alice.ID))

	err := h.Run(t, d, alice, "dice 1d6")
	assert.True(t, cmderr.Is(err, cmderr.KindCommand), "second roll inside the cooldown")
	assert.Contains(t, h.Last(t, alice.ID), "You can run this command again in")

	bob := cmd.Actor{ID: "u2", Name: "Bob", Interactive: true}
	err = h.Run(t, d, bob, "roll 1d6")
	assert.True(t, cmderr.Is(err, cmderr.KindNoPermission))

	require.NoError(t, h.Run(t, d, cmdtest.Console, "roll 1d6"))
	require.NoError(t, h.Run(t, d, cmdtest.Console, "roll 1d6"), "the console bypasses cooldowns")
	assert.Equal(t, "[Roll] 1d6 = 1d6[6] = 6", h.Last(t, cmdtest.Console.ID))
}
