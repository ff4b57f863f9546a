package teleport

import (
	"context"
	"fmt"
	"sync"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

const spawn = "spawn"

// Command moves actors to spawn or to each other. Positions are kept only
// while the actor is online.
type Command struct {
	mu     sync.Mutex
	places map[string]string
}

func New() *Command {
	return &Command{places: make(map[string]string)}
}

func (c *Command) Spec() cmd.Spec {
	actor := cmd.TypeOf[cmd.Actor]()
	return cmd.Spec{
		Name:       "Teleport",
		Aliases:    []string{"tp", "teleport"},
		Permission: "cmd.teleport",
		Paths: []cmd.Path{
			{
				Pattern:     "[player]",
				Description: "Teleport a player to spawn",
				Args: []cmd.Arg{
					{Name: "player", Type: actor, Default: cmd.Self, Permission: "cmd.teleport.others"},
				},
				Run: c.toSpawn,
			},
			{
				Pattern:     "<player> <target>",
				Description: "Teleport a player to another player",
				Permission:  "cmd.teleport.others",
				Args: []cmd.Arg{
					{Name: "player", Type: actor},
					{Name: "target", Type: actor},
				},
				Run: c.toPlayer,
			},
			{
				Pattern:     "where [player]",
				Description: "Show where a player was last teleported",
				Args:        []cmd.Arg{{Name: "player", Type: actor, Default: cmd.Self}},
				Run:         c.where,
			},
		},
	}
}

func (c *Command) Listeners() []any {
	return []any{func(e cmd.Left) { c.forget(e.Actor.ID) }}
}

func (c *Command) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.places)
	return nil
}

func (c *Command) toSpawn(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	c.move(player, spawn)
	c.notify(inv, player, "&7Teleported to &fspawn")
	return nil
}

func (c *Command) toPlayer(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	target := cmd.MustArg[cmd.Actor](inv, "target")
	if player.ID == target.ID {
		return cmderr.Newf("Can't teleport %s to themselves", player.Name)
	}
	c.move(player, target.Name)
	c.notify(inv, player, "&7Teleported to &f"+target.Name)
	return nil
}

func (c *Command) where(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	c.mu.Lock()
	place, ok := c.places[player.ID]
	c.mu.Unlock()
	if !ok {
		return cmderr.Newf("%s has not teleported anywhere", player.Name)
	}
	inv.Tell(fmt.Sprintf("&f%s &7is at &f%s", player.Name, place))
	return nil
}

// notify tells the moved player, and the caller when they moved someone else.
func (c *Command) notify(inv *cmd.Invocation, player cmd.Actor, msg string) {
	if player.ID != inv.Actor().ID {
		inv.Tell(fmt.Sprintf("&f%s &7moved", player.Name))
	}
	if out := inv.Host().Output; out != nil {
		out.Send(player, inv.Label()+msg)
	}
}

func (c *Command) move(a cmd.Actor, place string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places[a.ID] = place
}

func (c *Command) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.places, id)
}
