package perms

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/cmdmux/pkg/cmd"
)

// Source is a reloadable permission file.
type Source interface {
	Reload() error
	Grants(a cmd.Actor, extraGroups ...string) []string
}

// Command inspects and reloads permissions.
type Command struct {
	src Source
}

func New(src Source) *Command {
	return &Command{src: src}
}

func (c *Command) Spec() cmd.Spec {
	player := cmd.Arg{Name: "player", Type: cmd.TypeOf[cmd.Actor]()}
	return cmd.Spec{
		Name:       "Perms",
		Aliases:    []string{"perms", "permissions"},
		Permission: "cmd.perms",
		Paths: []cmd.Path{
			{
				Pattern:     "reload",
				Description: "Re-read the permissions file",
				Permission:  "cmd.perms.reload",
				Run:         c.reload,
			},
			{
				Pattern:     "check <player> <permission>",
				Description: "Test whether a player holds a permission",
				Args:        []cmd.Arg{player},
				Run:         c.check,
			},
			{
				Pattern:     "grants <player>",
				Description: "List the grants the file gives a player",
				Args:        []cmd.Arg{player},
				Run:         c.grants,
			},
		},
	}
}

func (c *Command) reload(_ context.Context, inv *cmd.Invocation) error {
	if err := c.src.Reload(); err != nil {
		return fmt.Errorf("reload permissions: %w", err)
	}
	inv.Tell("&aPermissions reloaded")
	return nil
}

func (c *Command) check(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	perm := cmd.MustArg[string](inv, "permission")
	if inv.Host().Permissions.HasPermission(player, perm) {
		inv.Tell(fmt.Sprintf("&f%s &ahas &f%s", player.Name, perm))
	} else {
		inv.Tell(fmt.Sprintf("&f%s &clacks &f%s", player.Name, perm))
	}
	return nil
}

func (c *Command) grants(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	gs := c.src.Grants(player)
	if len(gs) == 0 {
		inv.Tell(fmt.Sprintf("&f%s &7has no grants", player.Name))
		return nil
	}
	inv.Tell(fmt.Sprintf("&f%s&7: &f%s", player.Name, strings.Join(gs, "&7, &f")))
	return nil
}
