// Package debug holds developer commands. They only register outside
// production.
package debug

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keshon/cmdmux/pkg/cmd"
)

type Command struct{}

func (Command) Spec() cmd.Spec {
	return cmd.Spec{
		Aliases:      []string{"debug"},
		Permission:   "cmd.debug",
		Environments: []cmd.Env{cmd.Dev, cmd.Test},
		DoubleSlash:  true,
		Paths: []cmd.Path{
			{
				Pattern:     "echo <text...>",
				Description: "Echo text with formatting removed",
				Args:        []cmd.Arg{{Name: "text", StripColor: true}},
				Run: func(_ context.Context, inv *cmd.Invocation) error {
					inv.Tell(cmd.MustArg[string](inv, "text"))
					return nil
				},
			},
			{
				Pattern:     "env",
				Description: "Show the registry environment and redirects",
				Run:         env,
			},
			{
				Pattern:     "panic",
				Description: "Panic inside a handler",
				Run: func(context.Context, *cmd.Invocation) error {
					panic("debug panic")
				},
			},
			{
				Pattern:      "slow",
				Description:  "Run on a worker",
				Async:        true,
				Environments: []cmd.Env{cmd.Dev},
				Run: func(ctx context.Context, inv *cmd.Invocation) error {
					inv.Tell(fmt.Sprintf("&7ran on a worker: &f%t", inv.Async()))
					return ctx.Err()
				},
			},
		},
	}
}

func env(_ context.Context, inv *cmd.Invocation) error {
	reg := inv.Registry()
	inv.Tell(fmt.Sprintf("&7env &f%s&7, &f%d &7commands", reg.Env(), len(reg.Commands())))

	redirects := reg.Redirects()
	keys := make([]string, 0, len(redirects))
	for k := range redirects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var pairs []string
	for _, k := range keys {
		pairs = append(pairs, k+" -> "+redirects[k])
	}
	if len(pairs) > 0 {
		inv.Reply("&7redirects: &f" + strings.Join(pairs, "&7, &f"))
	}
	return nil
}
