package poke

import (
	"context"
	"strings"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

type Command struct{}

func (Command) Spec() cmd.Spec {
	return cmd.Spec{
		Aliases:    []string{"poke"},
		Permission: "cmd.poke",
		Paths: []cmd.Path{{
			Pattern:     "<targets>",
			Description: "Poke one or more players",
			Interactive: true,
			Cooldown:    &cmd.Cooldown{Ticks: 100, Label: "poke", Bypass: "cmd.bypass"},
			Args:        []cmd.Arg{{Name: "targets", Elem: cmd.TypeOf[cmd.Actor]()}},
			Run:         run,
		}},
	}
}

func run(_ context.Context, inv *cmd.Invocation) error {
	self := inv.Actor()
	seen := map[string]bool{}
	var names []string
	for _, a := range cmd.MustArg[[]cmd.Actor](inv, "targets") {
		if a.ID == self.ID {
			return cmderr.New("You can't poke yourself")
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		names = append(names, a.Name)
		inv.Host().Output.SendTo(a.ID, inv.Label()+"&d"+self.Name+" poked you!")
	}
	inv.Tell("&7Poked &f" + strings.Join(names, "&7, &f"))
	return nil
}
