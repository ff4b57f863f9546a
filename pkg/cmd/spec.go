// Package cmd is a declarative command-dispatch core. Handlers describe
// their aliases and argument shapes as plain data (Spec, Path, Arg); the
// Registry builds a routing table from those declarations and the Dispatcher
// turns raw input lines into typed, policy-checked handler calls.
//
// How lines arrive and where replies go (a terminal, a chat service) is
// defined by the Host an adapter supplies.
package cmd

import (
	"context"
	"reflect"
)

// Self as an Arg default resolves to the invoking actor.
const Self = "self"

// Handler is a command: identity, aliases and paths, all declared in Spec.
type Handler interface {
	Spec() Spec
}

// Shutdowner is implemented by handlers that hold resources. Shutdown is
// called on unregister; its error is logged, never propagated.
type Shutdowner interface {
	Shutdown() error
}

// Listener is implemented by handlers that also react to host events. Each
// returned value is passed to the host's EventHost.AddHandler on register.
type Listener interface {
	Listeners() []any
}

// RunFunc executes a resolved path.
type RunFunc func(ctx context.Context, inv *Invocation) error

// Spec declares a handler.
type Spec struct {
	// Name labels replies. Defaults to the first alias, capitalized.
	Name string
	// Aliases are matched case-insensitively. The first is the primary name.
	Aliases []string
	// Prefix overrides the &-formatted reply prefix derived from Name.
	Prefix string
	// Permission is required for every path.
	Permission   string
	Environments []Env
	Disabled     bool
	// Async runs every path on a scheduler worker.
	Async bool
	// Fallback names the Redirector target used when no path matches.
	Fallback string
	// DoubleSlash registers aliases as "/alias", so "//alias" reaches it.
	DoubleSlash bool
	Paths       []Path
	// Converters and Completers are discovered before any handler registers.
	Converters []Converter
	Completers []Completer
}

// Path is one argument shape of a handler, like a subcommand signature.
//
// Pattern is a space separated list of segments:
//
//	literal     must equal the token (case-insensitive)
//	(a|b)       one of several literals
//	<name>      required parameter
//	[name]      optional parameter
//	<name...>   the rest of the line as one string
//
// A final parameter whose Arg has Elem set consumes every remaining token.
type Path struct {
	Pattern      string
	Description  string
	Permission   string
	Environments []Env
	Disabled     bool
	Async        bool
	// Interactive paths reject non-interactive callers.
	Interactive bool
	Cooldown    *Cooldown
	// Args configure parameters by name. Parameters without an entry are strings.
	Args []Arg
	Run  RunFunc
}

// Arg configures a single parameter.
type Arg struct {
	Name string
	// Type is the parameter type. nil means string, or []Elem when Elem is set.
	Type reflect.Type
	// Default is used when the token is absent. Self means the invoking actor.
	Default    string
	Permission string
	// Context is the 1-indexed position of an earlier parameter whose value
	// is passed to this parameter's converter.
	Context int
	// Converter and Completer pick the registry entry for another type.
	Converter reflect.Type
	Completer reflect.Type
	// Elem is the element type of a multi-token parameter.
	Elem         reflect.Type
	Min          *float64
	Max          *float64
	MinMaxBypass string
	Regex        string
	StripColor   bool
}

// Cooldown rate-limits a path per actor. Label defaults to one derived from
// the handler and path.
type Cooldown struct {
	Ticks  int64
	Label  string
	Bypass string
}

// TypeOf returns the reflect.Type of T, for use in Arg declarations.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Bound returns a pointer to v, for Arg.Min and Arg.Max.
func Bound(v float64) *float64 { return &v }
