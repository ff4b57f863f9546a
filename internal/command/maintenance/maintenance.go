// Package maintenance pauses commands for everyone without the bypass
// permission.
package maintenance

import (
	"context"

	"github.com/keshon/cmdmux/internal/middleware"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

// Bypass lets an actor run commands while maintenance is on.
const Bypass = "cmd.maintenance.bypass"

type Command struct {
	sw *middleware.Switch
}

func New(sw *middleware.Switch) *Command {
	return &Command{sw: sw}
}

func (c *Command) Spec() cmd.Spec {
	return cmd.Spec{
		Name:       "Maintenance",
		Aliases:    []string{"maintenance"},
		Permission: "cmd.maintenance",
		Paths: []cmd.Path{
			{
				Pattern:     "",
				Description: "Show whether maintenance is on",
				Run:         c.status,
			},
			{
				Pattern:     "on [reason...]",
				Description: "Pause commands for everyone else",
				Run:         c.on,
			},
			{
				Pattern:     "off",
				Description: "Resume commands",
				Run:         c.off,
			},
		},
	}
}

func (c *Command) status(_ context.Context, inv *cmd.Invocation) error {
	switch {
	case !c.sw.Enabled():
		inv.Tell("&aCommands are running normally")
	case c.sw.Reason() != "":
		inv.Tell("&cMaintenance is on: &f" + c.sw.Reason())
	default:
		inv.Tell("&cMaintenance is on")
	}
	return nil
}

func (c *Command) on(_ context.Context, inv *cmd.Invocation) error {
	if c.sw.Enabled() {
		return cmderr.New("Maintenance is already on")
	}
	reason, _ := cmd.ArgOf[string](inv, "reason")
	c.sw.Enable(reason)
	inv.Host().Output.Broadcast("&eCommands are paused for maintenance")
	inv.Tell("&aMaintenance on")
	return nil
}

func (c *Command) off(_ context.Context, inv *cmd.Invocation) error {
	if !c.sw.Enabled() {
		return cmderr.New("Maintenance is not on")
	}
	c.sw.Disable()
	inv.Host().Output.Broadcast("&aCommands are back")
	inv.Tell("&aMaintenance off")
	return nil
}
