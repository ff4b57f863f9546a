package cmd

import (
	"context"
	"time"

	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/cooldown"
	"github.com/keshon/cmdmux/pkg/throttle"
)

// Next runs an invocation that has passed every earlier policy.
type Next func(ctx context.Context, inv *Invocation) error

// Middleware wraps dispatch with a policy check (permission, cooldown,
// logging). The wrapped Next is called only if the policy passes.
type Middleware func(Next) Next

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(n Next, mws ...Middleware) Next {
	for i := len(mws) - 1; i >= 0; i-- {
		n = mws[i](n)
	}
	return n
}

func hasPermission(h Host, a Actor, perm string) bool {
	if perm == "" {
		return true
	}
	if h.Permissions == nil {
		return false
	}
	return h.Permissions.HasPermission(a, perm)
}

// ────────────────────────────────────────────────────────────────
// BUILT-IN POLICIES
// ────────────────────────────────────────────────────────────────

// RequirePermission checks the handler and path permissions.
func RequirePermission() Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, inv *Invocation) error {
			if !inv.HasPermission(inv.entry.spec.Permission) {
				return cmderr.NoPermission("")
			}
			if !inv.HasPermission(inv.route.path.Permission) {
				return cmderr.NoPermission("")
			}
			return next(ctx, inv)
		}
	}
}

// RequireInteractive rejects non-interactive actors on interactive paths.
func RequireInteractive() Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, inv *Invocation) error {
			if inv.route.path.Interactive {
				if err := inv.RequireInteractive(); err != nil {
					return err
				}
			}
			return next(ctx, inv)
		}
	}
}

// Flood limits how often an interactive actor may run commands. The
// operator console is never limited.
func Flood(lim *throttle.Limiter) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, inv *Invocation) error {
			if lim != nil && inv.actor.Interactive && !lim.Allow(inv.actor.ID) {
				return cmderr.New("You are sending commands too fast, slow down")
			}
			return next(ctx, inv)
		}
	}
}

// EnforceCooldown rejects invocations whose path is on cooldown for the
// actor. The cooldown is checked before arguments resolve and committed
// atomically right before the handler starts, so a failed resolution never
// costs the actor a cooldown.
func EnforceCooldown(store *cooldown.Store) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, inv *Invocation) error {
			cd := inv.route.path.Cooldown
			if cd == nil || cd.Ticks <= 0 || (cd.Bypass != "" && inv.HasPermission(cd.Bypass)) {
				return next(ctx, inv)
			}

			ledger := store.Of(inv.actor.ID)
			label := inv.route.cooldown
			ok, err := ledger.Check(label)
			if err != nil {
				return err
			}
			if !ok {
				return onCooldown(ledger, label)
			}

			inv.OnExecute(func() error {
				ok, err := ledger.CheckAndSet(label, cd.Ticks)
				if err != nil {
					return err
				}
				if !ok {
					return onCooldown(ledger, label)
				}
				return nil
			})
			return next(ctx, inv)
		}
	}
}

func onCooldown(ledger *cooldown.Ledger, label string) error {
	left, _ := ledger.Remaining(label)
	return cmderr.Formatted("You can run this command again in &e" + formatWait(left))
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
