// Package cooldowns lets operators inspect and edit other actors' cooldowns.
package cooldowns

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cooldown"
)

type Command struct{}

func (Command) Spec() cmd.Spec {
	actor := cmd.Arg{Name: "player", Type: cmd.TypeOf[cmd.Actor]()}
	return cmd.Spec{
		Name:       "Cooldown",
		Aliases:    []string{"cooldown", "cd"},
		Permission: "cmd.cooldown",
		Paths: []cmd.Path{
			{
				Pattern:     "check <player> <label>",
				Description: "Show how long a cooldown has left",
				Args:        []cmd.Arg{actor},
				Run:         check,
			},
			{
				Pattern:     "clear <player> <label>",
				Description: "End a cooldown early",
				Args:        []cmd.Arg{actor},
				Run:         clearOne,
			},
			{
				Pattern:     "set <player> <label> <duration>",
				Description: "Start or replace a cooldown",
				Args: []cmd.Arg{
					actor,
					{Name: "duration", Type: cmd.TypeOf[time.Duration](), Min: cmd.Bound(0)},
				},
				Run: set,
			},
		},
	}
}

func ledger(inv *cmd.Invocation) (*cooldown.Ledger, cmd.Actor, string) {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	return inv.Registry().Cooldowns().Of(player.ID), player, cmd.MustArg[string](inv, "label")
}

func check(_ context.Context, inv *cmd.Invocation) error {
	l, player, label := ledger(inv)
	left, err := l.Remaining(label)
	if err != nil {
		return err
	}
	if left == 0 {
		inv.Tell(fmt.Sprintf("&f%s &7is not on cooldown for &f%s", player.Name, label))
		return nil
	}
	inv.Tell(fmt.Sprintf("&f%s &7can use &f%s &7again in &e%s", player.Name, label, left.Round(time.Second/10)))
	return nil
}

func clearOne(_ context.Context, inv *cmd.Invocation) error {
	l, player, label := ledger(inv)
	if err := l.Clear(label); err != nil {
		return err
	}
	inv.Tell(fmt.Sprintf("&7Cleared &f%s &7for &f%s", label, player.Name))
	return nil
}

func set(_ context.Context, inv *cmd.Invocation) error {
	l, player, label := ledger(inv)
	d := cmd.MustArg[time.Duration](inv, "duration")
	if err := l.Create(label, cooldown.Ticks(d)); err != nil {
		return err
	}
	inv.Tell(fmt.Sprintf("&f%s &7is on cooldown for &f%s &7for &e%s", player.Name, label, d))
	return nil
}
