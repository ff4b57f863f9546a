// Package cmderr defines the closed set of failures a command dispatch can end
// with, and the single classification function the dispatcher uses to turn
// any error into a reply.
//
// Faults are raised near their point of detection as *Error values and left
// to unwind; handlers do not need to catch common validation faults.
package cmderr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the type of command failure.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingArgument
	KindInvalidInput
	KindNoPermission
	KindActorNotFound
	KindActorUnavailable
	KindMustBeInteractive
	KindCommand
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindMissingArgument:
		return "missing argument"
	case KindInvalidInput:
		return "invalid input"
	case KindNoPermission:
		return "no permission"
	case KindActorNotFound:
		return "actor not found"
	case KindActorUnavailable:
		return "actor unavailable"
	case KindMustBeInteractive:
		return "must be interactive"
	case KindCommand:
		return "command"
	case KindTypeMismatch:
		return "type mismatch"
	default:
		return "internal error"
	}
}

// Error is a structured, user-facing command failure.
type Error struct {
	Kind    Kind
	Message string
	// Payload is an optional &-formatted message shown instead of Message.
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Text()
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Text returns the payload if one is set, otherwise the plain message.
func (e *Error) Text() string {
	if e.Payload != "" {
		return e.Payload
	}
	return e.Message
}

// Structured reports whether the failure may be shown to the caller verbatim.
func (e *Error) Structured() bool {
	return e.Kind != KindInternal && e.Kind != KindTypeMismatch
}

// Verify Error implements the error interface.
var _ error = (*Error)(nil)

// MissingArgument is returned when a required token was absent and no default applied.
func MissingArgument(name string) *Error {
	msg := "Missing argument"
	if name != "" {
		msg += " " + name
	}
	return &Error{Kind: KindMissingArgument, Message: msg}
}

// InvalidInput is returned when a token failed a regex, bounds or format check.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NoPermission is returned when the actor lacks a required permission.
func NoPermission(extra string) *Error {
	msg := "You don't have permission to do that!"
	if strings.TrimSpace(extra) != "" {
		msg += " " + extra
	}
	return &Error{Kind: KindNoPermission, Message: msg}
}

// ActorNotFound is returned when a name or id does not resolve to a known actor.
func ActorNotFound(input string) *Error {
	return &Error{Kind: KindActorNotFound, Message: fmt.Sprintf("Player %s not found", input)}
}

// ActorUnavailable is returned when a resolved actor is not currently reachable.
func ActorUnavailable(name string) *Error {
	return &Error{Kind: KindActorUnavailable, Message: fmt.Sprintf("%s is not online", name)}
}

// MustBeInteractive is returned when a non-interactive caller runs an
// interactive-only command or argument.
func MustBeInteractive() *Error {
	return &Error{Kind: KindMustBeInteractive, Message: "You must be in-game to use this command"}
}

// Wrap turns an arbitrary failure into an internal error, keeping the cause
// for diagnostics. Structured errors are returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// TypeMismatch is returned by argument plumbing when a parameter shape does
// not fit the value produced for it.
func TypeMismatch(format string, args ...any) *Error {
	return &Error{Kind: KindTypeMismatch, Message: "type mismatch: " + fmt.Sprintf(format, args...)}
}

// New returns a user-facing failure with a plain message.
func New(message string) *Error {
	return &Error{Kind: KindCommand, Message: message}
}

// Newf is New with formatting.
func Newf(format string, args ...any) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Formatted returns a user-facing failure carrying a &-formatted payload.
func Formatted(payload string) *Error {
	return &Error{Kind: KindCommand, Message: payload, Payload: payload}
}

// Is reports whether err is a structured failure of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
