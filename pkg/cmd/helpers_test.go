package cmd

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type sentMsg struct {
	to  string
	msg string
}

// testHost implements every Host service in memory.
type testHost struct {
	mu        sync.Mutex
	perms     map[string]map[string]bool
	actors    []Actor
	offline   map[string]bool
	sent      []sentMsg
	console   []string
	broadcast []string
	listeners []any
	detached  int
	redirects []string
}

func newTestHost(actors ...Actor) *testHost {
	return &testHost{
		perms:   map[string]map[string]bool{},
		actors:  actors,
		offline: map[string]bool{},
	}
}

func (h *testHost) host() Host {
	return Host{Permissions: h, Directory: h, Output: h, Redirector: h, Events: h}
}

func (h *testHost) grant(a Actor, perms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.perms[a.ID] == nil {
		h.perms[a.ID] = map[string]bool{}
	}
	for _, p := range perms {
		h.perms[a.ID][p] = true
	}
}

func (h *testHost) HasPermission(a Actor, perm string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perms[a.ID][perm]
}

func (h *testHost) Lookup(id string) (Actor, bool) {
	for _, a := range h.actors {
		if a.ID == id {
			return a, true
		}
	}
	return Actor{}, false
}

func (h *testHost) Online(a Actor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.offline[a.ID]
}

func (h *testHost) Actors() []Actor { return h.actors }

func (h *testHost) Send(to Actor, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentMsg{to: to.ID, msg: msg})
}

func (h *testHost) SendTo(id string, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentMsg{to: id, msg: msg})
}

func (h *testHost) Broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast = append(h.broadcast, msg)
}

func (h *testHost) Console(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.console = append(h.console, msg)
}

func (h *testHost) Redirect(_ context.Context, a Actor, target, alias string, args []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redirects = append(h.redirects, target+":"+alias)
	return nil
}

func (h *testHost) AddHandler(fn any) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.detached++
	}
}

// replies returns every message sent to the actor with id.
func (h *testHost) replies(id string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, s := range h.sent {
		if s.to == id {
			out = append(out, s.msg)
		}
	}
	return out
}

func (h *testHost) lastReply(t *testing.T, id string) string {
	t.Helper()
	r := h.replies(id)
	require.NotEmpty(t, r, "no reply sent to %s", id)
	return r[len(r)-1]
}

// stub is a Handler whose type is distinct per K, so several can share a
// registry.
type stub[K any] struct {
	spec        Spec
	shutdowns   int
	shutdownErr error
	listeners   []any
}

func (s *stub[K]) Spec() Spec { return s.spec }

func (s *stub[K]) Shutdown() error {
	s.shutdowns++
	return s.shutdownErr
}

func (s *stub[K]) Listeners() []any { return s.listeners }

type (
	kindA struct{}
	kindB struct{}
	kindC struct{}
	kindD struct{}
)

func newStub[K any](spec Spec) *stub[K] { return &stub[K]{spec: spec} }

var (
	alice  = Actor{ID: "u1", Name: "Alice", Interactive: true}
	steve  = Actor{ID: "u2", Name: "Steve", Interactive: true}
	stella = Actor{ID: "u3", Name: "Stella", Interactive: true}
	server = Actor{ID: "console", Name: "CONSOLE"}
)

// setup registers handlers and returns a dispatcher over them.
func setup(t *testing.T, h *testHost, handlers ...Handler) (*Registry, *Dispatcher) {
	t.Helper()
	reg := NewRegistry(h.host())
	reg.Add(handlers...)
	require.NoError(t, reg.RegisterAll())
	return reg, NewDispatcher(reg)
}

func noop(context.Context, *Invocation) error { return nil }
