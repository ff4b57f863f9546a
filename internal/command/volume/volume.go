package volume

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/keshon/cmdmux/pkg/cmd"
)

const defaultVolume = 50

type setting struct {
	level int
	muted bool
}

// Command keeps a playback volume per actor.
type Command struct {
	mu       sync.Mutex
	settings map[string]setting
}

func New() *Command {
	return &Command{settings: make(map[string]setting)}
}

func (c *Command) Spec() cmd.Spec {
	return cmd.Spec{
		Name:       "Volume",
		Aliases:    []string{"volume", "vol"},
		Permission: "cmd.volume",
		Paths: []cmd.Path{
			{
				Pattern:     "set <amount>",
				Description: "Set your volume",
				Interactive: true,
				Args: []cmd.Arg{{
					Name:         "amount",
					Type:         cmd.TypeOf[int](),
					Min:          cmd.Bound(0),
					Max:          cmd.Bound(100),
					MinMaxBypass: "cmd.bypass",
				}},
				Run: c.set,
			},
			{
				Pattern:     "get [player]",
				Description: "Show a volume",
				Args:        []cmd.Arg{{Name: "player", Type: cmd.TypeOf[cmd.Actor](), Default: cmd.Self}},
				Run:         c.get,
			},
			{
				Pattern:     "(mute|unmute)",
				Description: "Toggle mute",
				Interactive: true,
				Run:         c.mute,
			},
		},
	}
}

func (c *Command) Listeners() []any {
	return []any{func(e cmd.Left) {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.settings, e.Actor.ID)
	}}
}

func (c *Command) lookup(id string) setting {
	s, ok := c.settings[id]
	if !ok {
		return setting{level: defaultVolume}
	}
	return s
}

func (c *Command) set(_ context.Context, inv *cmd.Invocation) error {
	amount := cmd.MustArg[int](inv, "amount")
	c.mu.Lock()
	s := c.lookup(inv.Actor().ID)
	s.level = amount
	c.settings[inv.Actor().ID] = s
	c.mu.Unlock()

	inv.Tell(fmt.Sprintf("&7Volume set to &e%d", amount))
	return nil
}

func (c *Command) get(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	c.mu.Lock()
	s := c.lookup(player.ID)
	c.mu.Unlock()

	msg := fmt.Sprintf("&f%s&7: &e%d", player.Name, s.level)
	if s.muted {
		msg += " &8(muted)"
	}
	inv.Tell(msg)
	return nil
}

func (c *Command) mute(_ context.Context, inv *cmd.Invocation) error {
	muted := strings.EqualFold(inv.Args()[0], "mute")
	c.mu.Lock()
	s := c.lookup(inv.Actor().ID)
	s.muted = muted
	c.settings[inv.Actor().ID] = s
	c.mu.Unlock()

	if muted {
		inv.Tell("&7Muted")
	} else {
		inv.Tell("&7Unmuted")
	}
	return nil
}
