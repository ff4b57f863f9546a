package cmd

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/tasks"
)

// Actor is an entity that issues or is targeted by commands. Interactive
// actors are people in a session; the operator console is not interactive.
type Actor struct {
	ID          string
	Name        string
	Interactive bool
}

// IsZero reports whether a is the empty actor.
func (a Actor) IsZero() bool { return a.ID == "" }

func (a Actor) String() string { return a.Name }

// Permissions is the host's permission oracle.
type Permissions interface {
	HasPermission(a Actor, perm string) bool
}

// Directory resolves actors known to the host.
type Directory interface {
	// Lookup returns the actor with the given id.
	Lookup(id string) (Actor, bool)
	// Online reports whether a is currently reachable.
	Online(a Actor) bool
	// Actors lists every known actor.
	Actors() []Actor
}

// Output delivers formatted (&-coded) text. The framework never writes to
// a transport directly.
type Output interface {
	Send(to Actor, msg string)
	SendTo(id string, msg string)
	Broadcast(msg string)
	// Console mirrors a message to the operator. Implementations receive
	// text already stripped of formatting codes.
	Console(msg string)
}

// Redirector forwards a command the handler could not route to another
// owner, named by the handler's Fallback.
type Redirector interface {
	Redirect(ctx context.Context, a Actor, target, alias string, args []string) error
}

// EventHost attaches listeners. AddHandler returns a function that detaches
// the listener again. Every host understands func(Joined) and func(Left);
// other handler shapes are host specific.
type EventHost interface {
	AddHandler(fn any) func()
}

// Joined is delivered when an actor comes online.
type Joined struct{ Actor Actor }

// Left is delivered when an actor goes offline.
type Left struct{ Actor Actor }

// Scheduler is the subset of *tasks.Scheduler the framework and handlers use.
type Scheduler interface {
	Sync(fn tasks.Func, opts ...tasks.TaskOption) uuid.UUID
	Async(fn tasks.Func, opts ...tasks.TaskOption) uuid.UUID
	Wait(delay int64, fn tasks.Func, opts ...tasks.TaskOption) uuid.UUID
	WaitAsync(delay int64, fn tasks.Func, opts ...tasks.TaskOption) uuid.UUID
	Cancel(id uuid.UUID) bool
	Pending() []tasks.Info
	Active() []tasks.Info
}

var _ Scheduler = (*tasks.Scheduler)(nil)

// Host bundles the services a hosting process supplies. Redirector and
// Events are optional.
type Host struct {
	Permissions Permissions
	Directory   Directory
	Output      Output
	Scheduler   Scheduler
	Redirector  Redirector
	Events      EventHost
}

// MatchActor resolves partial against candidates. It tries, in order: an id
// match (so uuid strings and raw ids work), an exact name, a name prefix and
// a name substring, all case-insensitive. Within each pass the first
// candidate wins.
func MatchActor(candidates []Actor, partial string) (Actor, error) {
	input := strings.TrimSpace(partial)
	if input == "" {
		return Actor{}, cmderr.ActorNotFound(partial)
	}
	lower := strings.ToLower(input)

	passes := []func(Actor) bool{
		func(c Actor) bool { return strings.EqualFold(c.ID, input) },
		func(c Actor) bool { return strings.EqualFold(c.Name, input) },
		func(c Actor) bool { return strings.HasPrefix(strings.ToLower(c.Name), lower) },
		func(c Actor) bool { return strings.Contains(strings.ToLower(c.Name), lower) },
	}
	for _, match := range passes {
		for _, c := range candidates {
			if match(c) {
				return c, nil
			}
		}
	}
	return Actor{}, cmderr.ActorNotFound(input)
}
