package cmd

import (
	"reflect"
	"strings"
	"sync"

	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/cooldown"
)

// State is the lifecycle of one dispatch attempt.
type State int

const (
	Resolving State = iota
	Executing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "resolving"
	}
}

// Invocation is the transient state of a single dispatch: who ran what,
// with which tokens, and how it ended. Handlers receive it in Run.
type Invocation struct {
	reg     *Registry
	entry   *entry
	route   *route
	actor   Actor
	alias   string
	line    string
	raw     []string
	values  []any
	async   bool
	tab     bool
	usage   string
	onStart []func() error

	suggestions []string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newInvocation(reg *Registry, e *entry, actor Actor, alias, line string, args []string, tab bool) *Invocation {
	return &Invocation{
		reg:   reg,
		entry: e,
		actor: actor,
		alias: alias,
		line:  line,
		raw:   args,
		tab:   tab,
		done:  make(chan struct{}),
	}
}

// Actor returns the invoking actor.
func (inv *Invocation) Actor() Actor { return inv.actor }

// Alias returns the alias the command was invoked with.
func (inv *Invocation) Alias() string { return inv.alias }

// Line returns the raw input line.
func (inv *Invocation) Line() string { return inv.line }

// Args returns the tokens after the alias.
func (inv *Invocation) Args() []string { return inv.raw }

// ArgsString returns the tokens after the alias joined by spaces.
func (inv *Invocation) ArgsString() string { return strings.Join(inv.raw, " ") }

// Host returns the hosting services.
func (inv *Invocation) Host() Host { return inv.reg.host }

// Registry returns the registry that owns the handler.
func (inv *Invocation) Registry() *Registry { return inv.reg }

// Handler returns the invoked handler, or nil for an unknown alias.
func (inv *Invocation) Handler() Handler {
	if inv.entry == nil {
		return nil
	}
	return inv.entry.handler
}

// Async reports whether the handler runs on a scheduler worker.
func (inv *Invocation) Async() bool { return inv.async }

// Label returns the &-formatted reply prefix of the handler.
func (inv *Invocation) Label() string {
	if inv.entry == nil {
		return ""
	}
	return inv.entry.prefix
}

// Usage returns the usage line of the matched (or closest) path.
func (inv *Invocation) Usage() string { return inv.usage }

// Pattern returns the pattern of the matched path.
func (inv *Invocation) Pattern() string {
	if inv.route == nil {
		return ""
	}
	return inv.route.path.Pattern
}

// Cooldowns returns the invoking actor's cooldown ledger.
func (inv *Invocation) Cooldowns() *cooldown.Ledger {
	return inv.reg.cooldowns.Of(inv.actor.ID)
}

// HasPermission reports whether the invoking actor holds perm. An empty
// permission is always held.
func (inv *Invocation) HasPermission(perm string) bool {
	return hasPermission(inv.reg.host, inv.actor, perm)
}

// Value returns the resolved value of the i-th parameter (0-indexed).
func (inv *Invocation) Value(i int) any {
	if i < 0 || i >= len(inv.values) {
		return nil
	}
	return inv.values[i]
}

// Reply sends msg to the invoking actor. Non-interactive actors receive it
// with formatting codes stripped.
func (inv *Invocation) Reply(msg string) {
	out := inv.reg.host.Output
	if out == nil {
		return
	}
	if !inv.actor.Interactive {
		msg = chat.Strip(msg)
	}
	out.Send(inv.actor, msg)
}

// Tell replies with the handler's label in front of msg.
func (inv *Invocation) Tell(msg string) {
	inv.Reply(inv.Label() + msg)
}

// RequireInteractive fails unless the actor is interactive.
func (inv *Invocation) RequireInteractive() error {
	if !inv.actor.Interactive {
		return cmderr.MustBeInteractive()
	}
	return nil
}

// State returns the current lifecycle state.
func (inv *Invocation) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Err returns the failure, once the invocation has finished.
func (inv *Invocation) Err() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.err
}

// Done is closed when the invocation reaches Succeeded or Failed.
func (inv *Invocation) Done() <-chan struct{} { return inv.done }

// OnExecute registers fn to run after arguments resolve and before the
// handler starts. A non-nil error aborts the invocation.
func (inv *Invocation) OnExecute(fn func() error) {
	inv.onStart = append(inv.onStart, fn)
}

func (inv *Invocation) setState(s State) {
	inv.mu.Lock()
	inv.state = s
	inv.mu.Unlock()
}

// finish records the outcome. It reports false if already finished.
func (inv *Invocation) finish(err error) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state == Succeeded || inv.state == Failed {
		return false
	}
	inv.err = err
	if err != nil {
		inv.state = Failed
	} else {
		inv.state = Succeeded
	}
	close(inv.done)
	return true
}

// named returns the value of the parameter called name.
func (inv *Invocation) named(name string) (any, bool) {
	if inv.route == nil {
		return nil, false
	}
	for _, p := range inv.route.params {
		if p.name == name && p.index < len(inv.values) {
			return inv.values[p.index], true
		}
	}
	return nil, false
}

// ArgOf returns the resolved value of the parameter called name as T.
func ArgOf[T any](inv *Invocation, name string) (T, bool) {
	var zero T
	v, ok := inv.named(name)
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// MustArg is ArgOf for parameters the handler knows are present. A missing or
// differently typed value panics with a type mismatch, which the dispatcher
// reports as the path's usage.
func MustArg[T any](inv *Invocation, name string) T {
	v, ok := inv.named(name)
	if !ok {
		panic(cmderr.TypeMismatch("no parameter %q", name))
	}
	t, ok := v.(T)
	if !ok {
		panic(cmderr.TypeMismatch("parameter %q is %s, not %s", name, reflect.TypeOf(v), reflect.TypeFor[T]()))
	}
	return t
}
