// Package middleware holds dispatch policies hosts add on top of the
// built-in ones.
package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/rs/zerolog"
)

// MaintenanceMessage is shown to actors turned away by WithMaintenance.
const MaintenanceMessage = "Commands are paused for maintenance, try again later"

// Switch is a concurrency-safe on/off flag.
type Switch struct {
	on     atomic.Bool
	reason atomic.Pointer[string]
}

// Enable turns the switch on. reason may be empty.
func (s *Switch) Enable(reason string) {
	s.reason.Store(&reason)
	s.on.Store(true)
}

func (s *Switch) Disable() {
	s.on.Store(false)
	s.reason.Store(nil)
}

func (s *Switch) Enabled() bool { return s.on.Load() }

// Reason returns the reason given to Enable, if any.
func (s *Switch) Reason() string {
	if r := s.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// WithMaintenance rejects every command while sw is on, unless the actor
// holds bypass.
func WithMaintenance(sw *Switch, bypass string) cmd.Middleware {
	return func(next cmd.Next) cmd.Next {
		return func(ctx context.Context, inv *cmd.Invocation) error {
			if sw.Enabled() && !inv.HasPermission(bypass) {
				if r := sw.Reason(); r != "" {
					return cmderr.New(MaintenanceMessage + " (" + r + ")")
				}
				return cmderr.New(MaintenanceMessage)
			}
			return next(ctx, inv)
		}
	}
}

// WithCommandLogger logs every command that passed the earlier policies.
func WithCommandLogger(log zerolog.Logger) cmd.Middleware {
	return func(next cmd.Next) cmd.Next {
		return func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := next(ctx, inv)

			ev := log.Debug()
			if err != nil {
				ev = log.Info().Err(err)
			}
			ev.Str("actor", inv.Actor().Name).
				Str("alias", inv.Alias()).
				Str("pattern", inv.Pattern()).
				Bool("async", inv.Async()).
				Dur("took", time.Since(start)).
				Msg("command")
			return err
		}
	}
}
