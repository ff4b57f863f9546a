// Package cmdtest provides an in-memory host for testing command handlers.
package cmdtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/keshon/cmdmux/internal/permfile"
	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/tasks"
	"github.com/stretchr/testify/require"
)

// Console is the non-interactive operator actor. It holds every permission.
var Console = cmd.Actor{ID: "console", Name: "CONSOLE"}

// Host records everything handlers send. Messages are kept with
// formatting codes stripped.
type Host struct {
	Scheduler *tasks.Scheduler

	mu         sync.Mutex
	actors     []cmd.Actor
	offline    map[string]bool
	grants     map[string][]string
	sent       map[string][]string
	broadcasts []string
	console    []string
	listeners  []any
}

// New starts a scheduler with a 1ms tick and returns a host knowing actors.
func New(t *testing.T, actors ...cmd.Actor) *Host {
	t.Helper()
	s := tasks.New(tasks.WithTick(time.Millisecond), tasks.WithWorkers(2))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	return &Host{
		Scheduler: s,
		actors:    actors,
		offline:   map[string]bool{},
		grants:    map[string][]string{},
		sent:      map[string][]string{},
	}
}

// Host returns the services bundle.
func (h *Host) Host() cmd.Host {
	return cmd.Host{Permissions: h, Directory: h, Output: h, Scheduler: h.Scheduler, Events: h}
}

// Registry registers handlers in the dev environment and unregisters them
// when the test ends.
func (h *Host) Registry(t *testing.T, handlers ...cmd.Handler) *cmd.Registry {
	t.Helper()
	reg := cmd.NewRegistry(h.Host(), cmd.WithEnv(cmd.Dev))
	reg.Add(handlers...)
	require.NoError(t, reg.RegisterAll())
	t.Cleanup(reg.UnregisterAll)
	return reg
}

// Dispatcher is Registry plus a dispatcher with default options.
func (h *Host) Dispatcher(t *testing.T, handlers ...cmd.Handler) *cmd.Dispatcher {
	t.Helper()
	return cmd.NewDispatcher(h.Registry(t, handlers...))
}

// Run dispatches line and waits for it to finish.
func (h *Host) Run(t *testing.T, d *cmd.Dispatcher, a cmd.Actor, line string) error {
	t.Helper()
	inv := d.Run(context.Background(), a, line)
	select {
	case <-inv.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%q did not finish", line)
	}
	return inv.Err()
}

// Grant gives a the listed grants; wildcards work as in permission files.
func (h *Host) Grant(a cmd.Actor, grants ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grants[a.ID] = append(h.grants[a.ID], grants...)
}

// SetOnline changes whether a is reachable.
func (h *Host) SetOnline(a cmd.Actor, online bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline[a.ID] = !online
}

// Replies returns the messages sent to the actor with id.
func (h *Host) Replies(id string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent[id]...)
}

// Last returns the latest message sent to the actor with id.
func (h *Host) Last(t *testing.T, id string) string {
	t.Helper()
	r := h.Replies(id)
	require.NotEmpty(t, r, "nothing sent to %s", id)
	return r[len(r)-1]
}

// Broadcasts returns every broadcast message.
func (h *Host) Broadcasts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.broadcasts...)
}

// Emit delivers a presence event to attached listeners.
func (h *Host) Emit(ev any) {
	h.mu.Lock()
	listeners := append([]any(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
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

func (h *Host) HasPermission(a cmd.Actor, perm string) bool {
	if a.ID == Console.ID {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return permfile.Allows(h.grants[a.ID], perm)
}

func (h *Host) Lookup(id string) (cmd.Actor, bool) {
	for _, a := range h.actors {
		if a.ID == id {
			return a, true
		}
	}
	return cmd.Actor{}, false
}

func (h *Host) Online(a cmd.Actor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.offline[a.ID]
}

func (h *Host) Actors() []cmd.Actor { return h.actors }

func (h *Host) Send(to cmd.Actor, msg string) { h.SendTo(to.ID, msg) }

func (h *Host) SendTo(id string, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent[id] = append(h.sent[id], chat.Strip(msg))
}

func (h *Host) Broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, chat.Strip(msg))
}

func (h *Host) Console(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.console = append(h.console, msg)
}

func (h *Host) AddHandler(fn any) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
	idx := len(h.listeners) - 1
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listeners[idx] = nil
	}
}
