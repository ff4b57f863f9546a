// Package chat handles the &-style formatting codes used in command replies.
//
// A code is '&' (or '§') followed by one of 0-9, a-f (colors), k-o (styles),
// r (reset), or '#rrggbb' (hex color). Hosts that cannot render codes strip
// them; terminal hosts render them through termenv.
package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/muesli/termenv"
)

var codePattern = regexp.MustCompile(`(?i)[&§](?:#[0-9a-f]{6}|[0-9a-fk-orx])`)

var palette = map[byte]string{
	'0': "#000000",
	'1': "#0000AA",
	'2': "#00AA00",
	'3': "#00AAAA",
	'4': "#AA0000",
	'5': "#AA00AA",
	'6': "#FFAA00",
	'7': "#AAAAAA",
	'8': "#555555",
	'9': "#5555FF",
	'a': "#55FF55",
	'b': "#55FFFF",
	'c': "#FF5555",
	'd': "#FF55FF",
	'e': "#FFFF55",
	'f': "#FFFFFF",
}

// Strip removes every formatting code from s.
func Strip(s string) string {
	return codePattern.ReplaceAllString(s, "")
}

// Prefix returns the bracketed label placed in front of command replies.
func Prefix(label string) string {
	return "&8&l[&e" + label + "&8&l]&3 "
}

type style struct {
	color                                      string
	bold, italic, underline, strike, obfuscate bool
}

func (s style) render(p termenv.Profile, text string) string {
	out := p.String(text)
	if s.color != "" {
		out = out.Foreground(p.Color(s.color))
	}
	if s.bold {
		out = out.Bold()
	}
	if s.italic {
		out = out.Italic()
	}
	if s.underline {
		out = out.Underline()
	}
	if s.strike {
		out = out.CrossOut()
	}
	if s.obfuscate {
		out = out.Blink()
	}
	return out.String()
}

// ANSI renders formatting codes as terminal escape sequences for profile p.
// With termenv.Ascii the result equals Strip(s).
func ANSI(s string, p termenv.Profile) string {
	if p == termenv.Ascii {
		return Strip(s)
	}

	locs := codePattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}

	var b strings.Builder
	var cur style
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			b.WriteString(cur.render(p, s[last:loc[0]]))
		}
		_, size := utf8.DecodeRuneInString(s[loc[0]:])
		cur = apply(cur, strings.ToLower(s[loc[0]+size:loc[1]]))
		last = loc[1]
	}
	if last < len(s) {
		b.WriteString(cur.render(p, s[last:]))
	}
	return b.String()
}

// apply updates st for a single code body (the part after '&').
func apply(st style, code string) style {
	if strings.HasPrefix(code, "#") {
		return style{color: code}
	}
	if hex, ok := palette[code[0]]; ok {
		// colors reset decorations
		return style{color: hex}
	}
	switch code[0] {
	case 'k':
		st.obfuscate = true
	case 'l':
		st.bold = true
	case 'm':
		st.strike = true
	case 'n':
		st.underline = true
	case 'o':
		st.italic = true
	case 'r', 'x':
		return style{}
	}
	return st
}
