// Package command collects the handlers every host registers.
package command

import (
	"github.com/keshon/cmdmux/internal/command/cooldowns"
	"github.com/keshon/cmdmux/internal/command/countdown"
	"github.com/keshon/cmdmux/internal/command/debug"
	"github.com/keshon/cmdmux/internal/command/help"
	"github.com/keshon/cmdmux/internal/command/history"
	"github.com/keshon/cmdmux/internal/command/jobs"
	"github.com/keshon/cmdmux/internal/command/maintenance"
	"github.com/keshon/cmdmux/internal/command/perms"
	"github.com/keshon/cmdmux/internal/command/poke"
	"github.com/keshon/cmdmux/internal/command/roll"
	"github.com/keshon/cmdmux/internal/command/teleport"
	"github.com/keshon/cmdmux/internal/command/volume"
	"github.com/keshon/cmdmux/internal/command/warp"
	"github.com/keshon/cmdmux/internal/middleware"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/tasks"
)

// Deps are the services handlers are built with.
type Deps struct {
	Scheduler   *tasks.Scheduler
	History     history.Store
	Permissions perms.Source
	Maintenance *middleware.Switch
	Warps       []warp.Warp
}

// DefaultWarps seed the warp command.
var DefaultWarps = []warp.Warp{
	{Category: "spawn", Name: "hub", X: 0, Y: 64, Z: 0},
	{Category: "town", Name: "market", X: 120, Y: 66, Z: -48},
	{Category: "town", Name: "docks", X: 180, Y: 62, Z: 10},
}

// All returns every handler. Handlers whose dependency is missing are left out.
func All(d Deps) []cmd.Handler {
	warps := d.Warps
	if warps == nil {
		warps = DefaultWarps
	}

	handlers := []cmd.Handler{
		help.Command{},
		roll.New(),
		teleport.New(),
		volume.New(),
		warp.New(warps...),
		poke.Command{},
		cooldowns.Command{},
		jobs.Command{},
		debug.Command{},
	}
	if d.Scheduler != nil {
		handlers = append(handlers, countdown.New(d.Scheduler))
	}
	if d.History != nil {
		handlers = append(handlers, history.New(d.History))
	}
	if d.Permissions != nil {
		handlers = append(handlers, perms.New(d.Permissions))
	}
	if d.Maintenance != nil {
		handlers = append(handlers, maintenance.New(d.Maintenance))
	}
	return handlers
}
