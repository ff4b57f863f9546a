package help

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

const pageSize = 8

// topic is a help query: a page number or a command alias.
type topic string

type Command struct{}

func (Command) Spec() cmd.Spec {
	return cmd.Spec{
		Aliases: []string{"help", "commands"},
		Paths: []cmd.Path{{
			Pattern:     "[query]",
			Description: "List the commands you can use",
			Args:        []cmd.Arg{{Name: "query", Completer: cmd.TypeOf[topic]()}},
			Run:         run,
		}},
		Completers: []cmd.Completer{
			cmd.CompleterFor[topic](completeTopic),
		},
	}
}

func run(_ context.Context, inv *cmd.Invocation) error {
	usages := inv.Registry().Usages(inv.Actor())
	query, _ := cmd.ArgOf[string](inv, "query")

	page := 1
	if query != "" {
		n, err := strconv.Atoi(query)
		if err != nil {
			return byAlias(inv, usages, query)
		}
		page = n
	}

	pages := max((len(usages)+pageSize-1)/pageSize, 1)
	if page < 1 || page > pages {
		return cmderr.InvalidInput("Page must be between 1 and %d", pages)
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(usages))
	inv.Tell(fmt.Sprintf("&7Commands, page &f%d&7/&f%d", page, pages))
	for _, u := range usages[start:end] {
		inv.Reply("&e" + u.String())
	}
	return nil
}

func byAlias(inv *cmd.Invocation, usages []cmd.Usage, alias string) error {
	h, ok := inv.Registry().Lookup(alias)
	if !ok {
		return cmderr.Newf("No command called %s", alias)
	}
	name := inv.Registry().Name(h)

	var lines []string
	for _, u := range usages {
		if u.Command == name {
			lines = append(lines, "&e"+u.String())
		}
	}
	if len(lines) == 0 {
		return cmderr.NoPermission("")
	}
	inv.Tell("&7Usage of &f" + name)
	for _, l := range lines {
		inv.Reply(l)
	}
	return nil
}

func completeTopic(inv *cmd.Invocation, partial string, _ any) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, u := range inv.Registry().Usages(inv.Actor()) {
		if !seen[u.Alias] && strings.HasPrefix(u.Alias, strings.ToLower(partial)) {
			seen[u.Alias] = true
			out = append(out, u.Alias)
		}
	}
	return out, nil
}
