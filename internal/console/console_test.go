package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permsFunc func(a cmd.Actor, perm string) bool

func (f permsFunc) HasPermission(a cmd.Actor, perm string) bool { return f(a, perm) }

type echo struct{}

func (echo) Spec() cmd.Spec {
	return cmd.Spec{
		Name:    "Echo",
		Aliases: []string{"echo"},
		Paths: []cmd.Path{{
			Pattern: "<text...>",
			Run: func(_ context.Context, inv *cmd.Invocation) error {
				inv.Tell(cmd.MustArg[string](inv, "text"))
				return nil
			},
		}},
	}
}

type secret struct{}

func (secret) Spec() cmd.Spec {
	return cmd.Spec{
		Name:       "Secret",
		Aliases:    []string{"secret"},
		Permission: "cmd.secret",
		Paths:      []cmd.Path{{Pattern: "", Run: func(context.Context, *cmd.Invocation) error { return nil }}},
	}
}

type forward struct{}

func (forward) Spec() cmd.Spec {
	return cmd.Spec{
		Name:     "Forward",
		Aliases:  []string{"fw"},
		Fallback: "/echo",
		Paths:    []cmd.Path{{Pattern: "status", Run: func(context.Context, *cmd.Invocation) error { return nil }}},
	}
}

var alice = cmd.Actor{ID: "u1", Name: "Alice"}

func newConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	perms := permsFunc(func(cmd.Actor, string) bool { return false })
	c := New(perms, WithOutput(&out), WithProfile(termenv.Ascii), WithActors(alice))

	reg := cmd.NewRegistry(c.Host(nil))
	reg.Add(echo{}, secret{}, forward{})
	require.NoError(t, reg.RegisterAll())
	c.Attach(cmd.NewDispatcher(reg))
	return c, &out
}

func TestServe_Script(t *testing.T) {
	c, out := newConsole(t)
	script := strings.Join([]string{
		"echo hi",
		"/echo slashed",
		"as alice echo yo",
		"as alice secret",
		"as nobody echo x",
		"quit",
		"echo never",
	}, "\n")

	require.NoError(t, c.Serve(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "[Echo] hi\n")
	assert.Contains(t, text, "[Echo] slashed\n")
	assert.Contains(t, text, "[to Alice] [Echo] yo\n")
	assert.Contains(t, text, "[to Alice] [Secret] You don't have permission to do that!")
	assert.Contains(t, text, "> Alice: [Secret] You don't have permission to do that!")
	assert.Contains(t, text, "Player nobody not found")
	assert.NotContains(t, text, "never")
}

func TestServe_StopsAtEOF(t *testing.T) {
	c, out := newConsole(t)
	require.NoError(t, c.Serve(context.Background(), strings.NewReader("echo last")))
	assert.Equal(t, "[Echo] last\n", out.String())
}

func TestComplete(t *testing.T) {
	c, out := newConsole(t)

	assert.Equal(t, []string{"echo"}, c.Complete(context.Background(), c.Self(), "ec"))
	assert.Equal(t, []string{"secret"}, c.Complete(context.Background(), c.Self(), "se"))
	assert.Empty(t, c.Complete(context.Background(), alice, "se"))
	assert.Contains(t, out.String(), "(no completions)")

	out.Reset()
	c.handle(context.Background(), "as alice tab ech")
	assert.Equal(t, "echo\n", out.String())
}

func TestRedirect(t *testing.T) {
	c, out := newConsole(t)

	require.NoError(t, c.Exec(context.Background(), c.Self(), "fw hello there"))
	assert.Equal(t, "[Echo] hello there\n", out.String())

	err := c.Redirect(context.Background(), c.Self(), "/fw", "fw", nil)
	assert.ErrorContains(t, err, "invalid redirect")
}

func TestPresenceEvents(t *testing.T) {
	c, _ := newConsole(t)

	var joined, left []string
	detachJoin := c.AddHandler(func(e cmd.Joined) { joined = append(joined, e.Actor.Name) })
	c.AddHandler(func(e cmd.Left) { left = append(left, e.Actor.Name) })
	c.AddHandler(func(string) {})()

	bob, err := c.Join("Bob")
	require.NoError(t, err)
	assert.True(t, c.Online(bob))
	assert.True(t, bob.Interactive)

	_, err = c.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, joined, "joining twice emits once")

	_, err = c.Leave("bo")
	require.NoError(t, err)
	assert.False(t, c.Online(bob))
	assert.Equal(t, []string{"Bob"}, left)

	detachJoin()
	_, err = c.Join("Bob")
	require.NoError(t, err)
	assert.Len(t, joined, 1)

	_, err = c.Join(" ")
	assert.Error(t, err)
	_, err = c.Leave("ghost")
	assert.Error(t, err)
}

func TestDirectory(t *testing.T) {
	c, _ := newConsole(t)

	self, ok := c.Lookup(ID)
	require.True(t, ok)
	assert.False(t, self.Interactive)
	assert.True(t, c.Online(self))
	assert.True(t, c.HasPermission(self, "anything"))

	a, ok := c.Lookup("u1")
	require.True(t, ok)
	assert.True(t, a.Interactive)
	assert.False(t, c.HasPermission(a, "anything"))

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	assert.Len(t, c.Actors(), 1)
}
