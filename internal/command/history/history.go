package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/keshon/cmdmux/internal/storage"
	"github.com/keshon/cmdmux/pkg/cmd"
)

const failureLimit = 10

// Store is the read side of the command audit log.
type Store interface {
	FetchHistory(actorID string) ([]storage.HistoryEntry, error)
	Failures(limit int) ([]storage.HistoryEntry, error)
}

// Command shows audited commands.
type Command struct {
	store Store
}

func New(s Store) *Command {
	return &Command{store: s}
}

func (c *Command) Spec() cmd.Spec {
	return cmd.Spec{
		Aliases:    []string{"history", "hist"},
		Permission: "cmd.history",
		Async:      true,
		Paths: []cmd.Path{
			{
				Pattern:     "[player]",
				Description: "Show recent commands",
				Args: []cmd.Arg{{
					Name:       "player",
					Type:       cmd.TypeOf[cmd.Actor](),
					Default:    cmd.Self,
					Permission: "cmd.history.others",
				}},
				Run: c.history,
			},
			{
				Pattern:     "failures",
				Description: "Show recent failed commands",
				Permission:  "cmd.history.failures",
				Run:         c.failures,
			},
		},
	}
}

func (c *Command) history(_ context.Context, inv *cmd.Invocation) error {
	player := cmd.MustArg[cmd.Actor](inv, "player")
	entries, err := c.store.FetchHistory(player.ID)
	if err != nil {
		return fmt.Errorf("fetch history of %s: %w", player.ID, err)
	}
	if len(entries) == 0 {
		inv.Tell(fmt.Sprintf("&7No commands recorded for &f%s", player.Name))
		return nil
	}

	inv.Tell(fmt.Sprintf("&7Recent commands of &f%s", player.Name))
	for _, e := range slices.Backward(entries) {
		inv.Reply(format(e, false))
	}
	return nil
}

func (c *Command) failures(_ context.Context, inv *cmd.Invocation) error {
	entries, err := c.store.Failures(failureLimit)
	if err != nil {
		return fmt.Errorf("fetch failures: %w", err)
	}
	if len(entries) == 0 {
		inv.Tell("&7No failed commands")
		return nil
	}
	inv.Tell("&7Recent failures")
	for _, e := range entries {
		inv.Reply(format(e, true))
	}
	return nil
}

func format(e storage.HistoryEntry, withActor bool) string {
	color := "&a"
	if e.Outcome != "ok" {
		color = "&c"
	}
	s := fmt.Sprintf("&8%s %s%s &f%s", e.Datetime.Format("15:04:05"), color, e.Outcome, e.Line)
	if withActor {
		s += " &7by &f" + e.ActorName
	}
	return s
}
