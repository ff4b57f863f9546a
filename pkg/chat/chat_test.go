package chat

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"&cred", "red"},
		{"&8&l[&eTp&8&l]&3 done", "[Tp] done"},
		{"§aGreen §rReset", "Green Reset"},
		{"&#ff00aaHex", "Hex"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"&Zkept", "&Zkept"},
		{"&CUpper", "Upper"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.expected, Strip(tt.in))
		})
	}
}

func TestPrefix(t *testing.T) {
	require.Equal(t, "&8&l[&eTeleport&8&l]&3 ", Prefix("Teleport"))
	require.Equal(t, "[Teleport] ", Strip(Prefix("Teleport")))
}

func TestANSI_AsciiStrips(t *testing.T) {
	require.Equal(t, "[Roll] 12", ANSI("&8&l[&eRoll&8&l]&3 12", termenv.Ascii))
}

func TestANSI_RendersEscapes(t *testing.T) {
	out := ANSI("&cred &lbold", termenv.ANSI256)
	require.Contains(t, out, "red")
	require.Contains(t, out, "bold")
	require.Contains(t, out, "\x1b[")
	require.NotContains(t, out, "&c")
}

func TestANSI_NoCodesUnchanged(t *testing.T) {
	require.Equal(t, "nothing here", ANSI("nothing here", termenv.TrueColor))
}

func TestApply(t *testing.T) {
	st := apply(style{}, "l")
	require.True(t, st.bold)

	st = apply(st, "c")
	require.False(t, st.bold, "colors reset decorations")
	require.Equal(t, "#FF5555", st.color)

	st = apply(st, "r")
	require.Equal(t, style{}, st)

	st = apply(st, "#00ff00")
	require.Equal(t, "#00ff00", strings.ToLower(st.color))
}
