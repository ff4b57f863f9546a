package warp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

// Warp is a named position inside a category.
type Warp struct {
	Name     string
	Category string
	X, Y, Z  float64
}

func (w *Warp) String() string {
	return fmt.Sprintf("%s (%.1f, %.1f, %.1f)", w.Name, w.X, w.Y, w.Z)
}

// Category groups warps.
type Category struct {
	Name  string
	warps map[string]*Warp
}

func (c *Category) names() []string {
	out := make([]string, 0, len(c.warps))
	for _, w := range c.warps {
		out = append(out, w.Name)
	}
	sort.Strings(out)
	return out
}

// Command teleports actors to stored warps.
type Command struct {
	mu         sync.RWMutex
	categories map[string]*Category
}

// New returns a warp command holding the given warps.
func New(warps ...Warp) *Command {
	c := &Command{categories: make(map[string]*Category)}
	for _, w := range warps {
		c.put(w)
	}
	return c
}

func (c *Command) Spec() cmd.Spec {
	category := cmd.TypeOf[*Category]()
	warp := cmd.TypeOf[*Warp]()
	coord := cmd.TypeOf[float64]()
	return cmd.Spec{
		Name:       "Warp",
		Aliases:    []string{"warp", "warps"},
		Permission: "cmd.warp",
		Paths: []cmd.Path{
			{
				Pattern:     "<category> <warp>",
				Description: "Warp to a location",
				Interactive: true,
				Args: []cmd.Arg{
					{Name: "category", Type: category},
					{Name: "warp", Type: warp, Context: 1},
				},
				Run: c.warp,
			},
			{
				Pattern:     "list [category]",
				Description: "List categories or the warps in one",
				Args:        []cmd.Arg{{Name: "category", Type: category}},
				Run:         c.list,
			},
			{
				Pattern:     "add <category> <name> <x> <y> <z>",
				Description: "Create or move a warp",
				Permission:  "cmd.warp.admin",
				Args: []cmd.Arg{
					{Name: "category", Regex: `^[a-z0-9_-]{1,16}$`},
					{Name: "name", Regex: `^[a-z0-9_-]{1,16}$`},
					{Name: "x", Type: coord, Min: cmd.Bound(-30_000_000), Max: cmd.Bound(30_000_000)},
					{Name: "y", Type: coord, Min: cmd.Bound(-64), Max: cmd.Bound(320)},
					{Name: "z", Type: coord, Min: cmd.Bound(-30_000_000), Max: cmd.Bound(30_000_000)},
				},
				Run: c.add,
			},
			{
				Pattern:     "(remove|delete) <category> <warp>",
				Description: "Delete a warp",
				Permission:  "cmd.warp.admin",
				Args: []cmd.Arg{
					{Name: "category", Type: category},
					{Name: "warp", Type: warp, Context: 1},
				},
				Run: c.remove,
			},
		},
		Converters: []cmd.Converter{
			cmd.ConverterFor(c.convertCategory),
			cmd.ConverterFor(c.convertWarp),
		},
		Completers: []cmd.Completer{
			cmd.CompleterFor[*Category](c.completeCategory),
			cmd.CompleterFor[*Warp](c.completeWarp),
		},
	}
}

// ────────────────────────────────────────────────────────────────
// ARGUMENTS
// ────────────────────────────────────────────────────────────────

func (c *Command) convertCategory(_ *cmd.Invocation, token string, _ any) (*Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.categories[strings.ToLower(token)]
	if !ok {
		return nil, cmderr.InvalidInput("Unknown warp category %s", token)
	}
	return cat, nil
}

func (c *Command) convertWarp(_ *cmd.Invocation, token string, context any) (*Warp, error) {
	cat, ok := context.(*Category)
	if !ok || cat == nil {
		return nil, cmderr.TypeMismatch("warp needs a category, got %T", context)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := cat.warps[strings.ToLower(token)]
	if !ok {
		return nil, cmderr.InvalidInput("No warp %s in %s", token, cat.Name)
	}
	return w, nil
}

func (c *Command) completeCategory(_ *cmd.Invocation, partial string, _ any) ([]string, error) {
	return prefixed(c.categoryNames(), partial), nil
}

func (c *Command) completeWarp(_ *cmd.Invocation, partial string, context any) ([]string, error) {
	cat, ok := context.(*Category)
	if !ok || cat == nil {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return prefixed(cat.names(), partial), nil
}

func prefixed(options []string, partial string) []string {
	var out []string
	for _, o := range options {
		if strings.HasPrefix(o, strings.ToLower(partial)) {
			out = append(out, o)
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────────
// PATHS
// ────────────────────────────────────────────────────────────────

func (c *Command) warp(_ context.Context, inv *cmd.Invocation) error {
	w := cmd.MustArg[*Warp](inv, "warp")
	inv.Tell("&7Warped to &f" + w.Category + "/" + w.String())
	return nil
}

func (c *Command) list(_ context.Context, inv *cmd.Invocation) error {
	cat, _ := cmd.ArgOf[*Category](inv, "category")
	if cat == nil {
		names := c.categoryNames()
		if len(names) == 0 {
			return cmderr.New("There are no warps yet")
		}
		inv.Tell("&7Categories: &f" + strings.Join(names, "&7, &f"))
		return nil
	}

	c.mu.RLock()
	names := cat.names()
	c.mu.RUnlock()
	inv.Tell(fmt.Sprintf("&7%s: &f%s", cat.Name, strings.Join(names, "&7, &f")))
	return nil
}

func (c *Command) add(_ context.Context, inv *cmd.Invocation) error {
	w := Warp{
		Category: cmd.MustArg[string](inv, "category"),
		Name:     cmd.MustArg[string](inv, "name"),
		X:        cmd.MustArg[float64](inv, "x"),
		Y:        cmd.MustArg[float64](inv, "y"),
		Z:        cmd.MustArg[float64](inv, "z"),
	}
	c.put(w)
	inv.Tell("&7Saved &f" + w.Category + "/" + w.String())
	return nil
}

func (c *Command) remove(_ context.Context, inv *cmd.Invocation) error {
	cat := cmd.MustArg[*Category](inv, "category")
	w := cmd.MustArg[*Warp](inv, "warp")

	c.mu.Lock()
	delete(cat.warps, strings.ToLower(w.Name))
	if len(cat.warps) == 0 {
		delete(c.categories, strings.ToLower(cat.Name))
	}
	c.mu.Unlock()

	inv.Tell("&7Deleted &f" + cat.Name + "/" + w.Name)
	return nil
}

func (c *Command) put(w Warp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(w.Category)
	cat, ok := c.categories[key]
	if !ok {
		cat = &Category{Name: w.Category, warps: make(map[string]*Warp)}
		c.categories[key] = cat
	}
	cat.warps[strings.ToLower(w.Name)] = &w
}

func (c *Command) categoryNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Name)
	}
	sort.Strings(out)
	return out
}
