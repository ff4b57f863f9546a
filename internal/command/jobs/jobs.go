package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/tasks"
)

// Command lists and cancels scheduler tasks.
type Command struct{}

func (Command) Spec() cmd.Spec {
	return cmd.Spec{
		Name:       "Jobs",
		Aliases:    []string{"jobs", "tasks"},
		Permission: "cmd.jobs",
		Paths: []cmd.Path{
			{
				Pattern:     "",
				Description: "List pending and running tasks",
				Run:         list,
			},
			{
				Pattern:     "cancel <id>",
				Description: "Cancel a task",
				Args:        []cmd.Arg{{Name: "id", Type: cmd.TypeOf[uuid.UUID]()}},
				Run:         cancel,
			},
		},
		Converters: []cmd.Converter{
			cmd.ConverterFor(func(_ *cmd.Invocation, token string, _ any) (uuid.UUID, error) {
				id, err := uuid.Parse(token)
				if err != nil {
					return uuid.Nil, cmderr.InvalidInput("`%s` is not a task id", token)
				}
				return id, nil
			}),
		},
		Completers: []cmd.Completer{
			cmd.CompleterFor[uuid.UUID](func(inv *cmd.Invocation, partial string, _ any) ([]string, error) {
				var out []string
				for _, t := range inv.Host().Scheduler.Pending() {
					if id := t.ID.String(); strings.HasPrefix(id, strings.ToLower(partial)) {
						out = append(out, id)
					}
				}
				return out, nil
			}),
		},
	}
}

func describe(t tasks.Info) string {
	name := t.Name
	if name == "" {
		name = "unnamed"
	}
	kind := "sync"
	if t.Async {
		kind = "async"
	}
	if t.Repeating {
		kind += ", repeating"
	}
	return fmt.Sprintf("&f%s &8%s &7(%s)", name, t.ID, kind)
}

func list(_ context.Context, inv *cmd.Invocation) error {
	s := inv.Host().Scheduler
	active, pending := s.Active(), s.Pending()
	if len(active) == 0 && len(pending) == 0 {
		inv.Tell("&7No scheduled tasks")
		return nil
	}
	inv.Tell(fmt.Sprintf("&7Running &f%d&7, pending &f%d", len(active), len(pending)))
	for _, t := range active {
		inv.Reply("&a▶ " + describe(t))
	}
	for _, t := range pending {
		inv.Reply("&e… " + describe(t))
	}
	return nil
}

func cancel(_ context.Context, inv *cmd.Invocation) error {
	id := cmd.MustArg[uuid.UUID](inv, "id")
	if !inv.Host().Scheduler.Cancel(id) {
		return cmderr.Newf("No task %s", id)
	}
	inv.Tell("&7Cancelled &f" + id.String())
	return nil
}
