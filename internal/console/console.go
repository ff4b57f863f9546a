// Package console hosts commands in the local terminal. The operator runs
// commands as the console actor, or as any simulated player with "as".
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

// ID is the actor id of the operator.
const ID = "console"

// Option configures a Console.
type Option func(*Console)

// WithOutput sets where replies are written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Console) { c.w = w }
}

// WithProfile sets the color profile. Defaults to the output's detected profile.
func WithProfile(p termenv.Profile) Option {
	return func(c *Console) {
		c.profile = p
		c.profileSet = true
	}
}

// WithLogger sets the console logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Console) { c.log = l }
}

// WithActors adds simulated players. They start online.
func WithActors(actors ...cmd.Actor) Option {
	return func(c *Console) {
		for _, a := range actors {
			a.Interactive = true
			c.actors = append(c.actors, a)
			c.online[a.ID] = true
		}
	}
}

// Console is a terminal host. It implements every cmd.Host service except
// the scheduler.
type Console struct {
	perms      cmd.Permissions
	w          io.Writer
	profile    termenv.Profile
	profileSet bool
	log        zerolog.Logger
	self       cmd.Actor

	outMu sync.Mutex

	mu        sync.RWMutex
	actors    []cmd.Actor
	online    map[string]bool
	handlers  map[int]any
	handlerID int
	disp      *cmd.Dispatcher
}

var (
	_ cmd.Permissions = (*Console)(nil)
	_ cmd.Directory   = (*Console)(nil)
	_ cmd.Output      = (*Console)(nil)
	_ cmd.Redirector  = (*Console)(nil)
	_ cmd.EventHost   = (*Console)(nil)
)

// New returns a console whose players are checked against perms. The
// operator holds every permission.
func New(perms cmd.Permissions, opts ...Option) *Console {
	c := &Console{
		perms:    perms,
		w:        os.Stdout,
		log:      zerolog.Nop(),
		self:     cmd.Actor{ID: ID, Name: "CONSOLE"},
		online:   make(map[string]bool),
		handlers: make(map[int]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.profileSet {
		c.profile = termenv.NewOutput(c.w).Profile
	}
	return c
}

// Host bundles the console's services with s.
func (c *Console) Host(s cmd.Scheduler) cmd.Host {
	return cmd.Host{
		Permissions: c,
		Directory:   c,
		Output:      c,
		Scheduler:   s,
		Redirector:  c,
		Events:      c,
	}
}

// Attach sets the dispatcher lines are run through.
func (c *Console) Attach(d *cmd.Dispatcher) {
	c.mu.Lock()
	c.disp = d
	c.mu.Unlock()
}

// Self returns the operator actor.
func (c *Console) Self() cmd.Actor { return c.self }

func (c *Console) dispatcher() *cmd.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disp
}

// ────────────────────────────────────────────────────────────────
// HOST SERVICES
// ────────────────────────────────────────────────────────────────

func (c *Console) HasPermission(a cmd.Actor, perm string) bool {
	if a.ID == c.self.ID {
		return true
	}
	return c.perms != nil && c.perms.HasPermission(a, perm)
}

func (c *Console) Lookup(id string) (cmd.Actor, bool) {
	if id == c.self.ID {
		return c.self, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.actors {
		if a.ID == id {
			return a, true
		}
	}
	return cmd.Actor{}, false
}

func (c *Console) Online(a cmd.Actor) bool {
	if a.ID == c.self.ID {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online[a.ID]
}

// Actors lists the simulated players, online or not.
func (c *Console) Actors() []cmd.Actor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]cmd.Actor(nil), c.actors...)
}

func (c *Console) Send(to cmd.Actor, msg string) {
	if to.ID == c.self.ID {
		c.print(msg)
		return
	}
	c.print("&7[to " + to.Name + "]&r " + msg)
}

func (c *Console) SendTo(id string, msg string) {
	a, ok := c.Lookup(id)
	if !ok {
		c.log.Warn().Str("id", id).Msg("message to unknown actor dropped")
		return
	}
	c.Send(a, msg)
}

func (c *Console) Broadcast(msg string) {
	c.print("&d[all]&r " + msg)
}

func (c *Console) Console(msg string) {
	c.print("&8> " + msg)
}

func (c *Console) print(msg string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.w, chat.ANSI(msg, c.profile))
}

// AddHandler accepts func(cmd.Joined) and func(cmd.Left).
func (c *Console) AddHandler(fn any) func() {
	switch fn.(type) {
	case func(cmd.Joined), func(cmd.Left):
	default:
		c.log.Warn().Str("type", fmt.Sprintf("%T", fn)).Msg("unsupported console event handler")
		return func() {}
	}

	c.mu.Lock()
	c.handlerID++
	id := c.handlerID
	c.handlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *Console) emit(ev any) {
	c.mu.RLock()
	ids := make([]int, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]any, len(ids))
	for i, id := range ids {
		fns[i] = c.handlers[id]
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		switch f := fn.(type) {
		case func(cmd.Joined):
			if e, ok := ev.(cmd.Joined); ok {
				f(e)
			}
		case func(cmd.Left):
			if e, ok := ev.(cmd.Left); ok {
				f(e)
			}
		}
	}
}

// Redirect runs target with the original arguments as the same actor. The
// redirected command reports its own failures.
func (c *Console) Redirect(ctx context.Context, a cmd.Actor, target, alias string, args []string) error {
	d := c.dispatcher()
	if d == nil {
		return errors.New("console: no dispatcher attached")
	}
	name := strings.TrimLeft(target, "/")
	if name == "" || strings.EqualFold(name, strings.TrimLeft(alias, "/")) {
		return fmt.Errorf("console: invalid redirect %q from %q", target, alias)
	}
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	d.Run(ctx, a, line)
	return nil
}

// ────────────────────────────────────────────────────────────────
// PLAYERS
// ────────────────────────────────────────────────────────────────

// Join brings a player online, creating it if the name is unknown.
func (c *Console) Join(name string) (cmd.Actor, error) {
	if strings.TrimSpace(name) == "" {
		return cmd.Actor{}, errors.New("missing player name")
	}
	c.mu.Lock()
	a, err := cmd.MatchActor(c.actors, name)
	if err != nil || !strings.EqualFold(a.Name, name) {
		a = cmd.Actor{ID: uuid.NewString(), Name: name, Interactive: true}
		c.actors = append(c.actors, a)
	}
	was := c.online[a.ID]
	c.online[a.ID] = true
	c.mu.Unlock()

	if !was {
		c.emit(cmd.Joined{Actor: a})
	}
	return a, nil
}

// Leave takes a player offline.
func (c *Console) Leave(name string) (cmd.Actor, error) {
	c.mu.Lock()
	a, err := cmd.MatchActor(c.actors, name)
	if err != nil {
		c.mu.Unlock()
		return cmd.Actor{}, err
	}
	was := c.online[a.ID]
	c.online[a.ID] = false
	c.mu.Unlock()

	if was {
		c.emit(cmd.Left{Actor: a})
	}
	return a, nil
}

// ────────────────────────────────────────────────────────────────
// REPL
// ────────────────────────────────────────────────────────────────

// Exec runs line as a and waits for the command to finish.
func (c *Console) Exec(ctx context.Context, a cmd.Actor, line string) error {
	d := c.dispatcher()
	if d == nil {
		return errors.New("console: no dispatcher attached")
	}
	inv := d.Run(ctx, a, line)
	select {
	case <-inv.Done():
		return inv.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete prints the completions of line for a.
func (c *Console) Complete(ctx context.Context, a cmd.Actor, line string) []string {
	d := c.dispatcher()
	if d == nil {
		return nil
	}
	options := d.Complete(ctx, a, line)
	if len(options) == 0 {
		c.print("&7(no completions)")
	} else {
		c.print("&7" + strings.Join(options, "  "))
	}
	return options
}

// Serve reads lines from r until EOF, "quit", or ctx is done.
//
//	<command...>              run as the console
//	as <player> <command...>  run as a player
//	tab <command...>          list completions (also after "as <player>")
//	join|leave <player>       change a player's presence
//	who                       list players
func (c *Console) Serve(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if quit := c.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) (quit bool) {
	// Trailing spaces are kept: "tab tp " completes a new, empty token.
	line = strings.TrimLeft(line, " \t")
	if strings.TrimSpace(line) == "" {
		return false
	}
	word, rest, _ := strings.Cut(line, " ")

	actor := c.self
	switch strings.ToLower(word) {
	case "quit", "exit":
		return true
	case "who":
		c.who()
		return false
	case "join":
		if _, err := c.Join(strings.TrimSpace(rest)); err != nil {
			c.print("&c" + err.Error())
		}
		return false
	case "leave":
		if _, err := c.Leave(strings.TrimSpace(rest)); err != nil {
			c.print("&c" + err.Error())
		}
		return false
	case "as":
		name, cmdLine, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
		a, err := cmd.MatchActor(c.Actors(), name)
		if err != nil {
			c.print("&c" + err.Error())
			return false
		}
		actor = a
		line = strings.TrimLeft(cmdLine, " ")
		word, rest, _ = strings.Cut(line, " ")
	}

	if strings.EqualFold(word, "tab") {
		c.Complete(ctx, actor, stripSlash(strings.TrimLeft(rest, " ")))
		return false
	}
	if err := c.Exec(ctx, actor, stripSlash(line)); err != nil {
		c.log.Debug().Err(err).Str("actor", actor.Name).Str("line", line).Msg("command failed")
	}
	return false
}

func (c *Console) who() {
	var names []string
	for _, a := range c.Actors() {
		state := "&7offline"
		if c.Online(a) {
			state = "&aonline"
		}
		names = append(names, "&e"+a.Name+" "+state)
	}
	if len(names) == 0 {
		c.print("&7(no players)")
		return
	}
	c.print(strings.Join(names, "&7, "))
}

// stripSlash removes one leading "/", so "//alias" reaches double-slash commands.
func stripSlash(line string) string {
	return strings.TrimPrefix(line, "/")
}
