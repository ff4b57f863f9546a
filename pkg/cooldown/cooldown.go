// Package cooldown tracks per-actor, per-label cooldown expiry.
//
// Labels are arbitrary strings matching ^[\w:#-]+$. Durations are expressed
// in ticks; one tick is TickDuration of wall-clock time. Nothing here is
// persisted: a restart clears every cooldown.
package cooldown

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/rs/zerolog"
)

// TickDuration is the wall-clock length of one scheduler tick.
const TickDuration = 50 * time.Millisecond

var validLabel = regexp.MustCompile(`^[\w:#-]+$`)

// Duration converts ticks to wall-clock time.
func Duration(ticks int64) time.Duration {
	return time.Duration(ticks) * TickDuration
}

// Ticks converts a wall-clock duration to whole ticks, rounding up.
func Ticks(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + TickDuration - 1) / TickDuration)
}

// checkLabel validates label. Spaces are rejected rather than rewritten so
// that "a b" and "a_b" never silently share a cooldown.
func checkLabel(label string) (string, error) {
	if !validLabel.MatchString(label) {
		return "", cmderr.InvalidInput("type `%s` must match regex %s", label, validLabel.String())
	}
	return label, nil
}

// Validate reports whether label is usable as a cooldown label.
func Validate(label string) error {
	_, err := checkLabel(label)
	return err
}

// Store owns one Ledger per actor.
type Store struct {
	ledgers sync.Map // actor id -> *Ledger
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the janitor.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Of returns the ledger for actorID, creating it if absent.
func (s *Store) Of(actorID string) *Ledger {
	if l, ok := s.ledgers.Load(actorID); ok {
		return l.(*Ledger)
	}
	l, _ := s.ledgers.LoadOrStore(actorID, &Ledger{entries: make(map[string]time.Time), now: s.now})
	return l.(*Ledger)
}

// Forget drops every cooldown held for actorID.
func (s *Store) Forget(actorID string) {
	s.ledgers.Delete(actorID)
}

// Sweep removes elapsed entries from every ledger and returns how many were dropped.
func (s *Store) Sweep() int {
	removed := 0
	s.ledgers.Range(func(_, v any) bool {
		removed += v.(*Ledger).sweep()
		return true
	})
	return removed
}

// RunJanitor sweeps expired cooldowns every interval until ctx is done.
// Expired entries are already treated as elapsed on read; sweeping only
// bounds memory.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("cleared expired cooldowns")
			}
		}
	}
}

// Ledger is the cooldown state of a single actor. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// Exists reports whether a cooldown is recorded for label, elapsed or not.
func (l *Ledger) Exists(label string) (bool, error) {
	label, err := checkLabel(label)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[label]
	return ok, nil
}

// Get returns the expiry of label, if one is recorded.
func (l *Ledger) Get(label string) (time.Time, bool, error) {
	label, err := checkLabel(label)
	if err != nil {
		return time.Time{}, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[label]
	return exp, ok, nil
}

// Check reports whether the actor is off cooldown for label.
func (l *Ledger) Check(label string) (bool, error) {
	label, err := checkLabel(label)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offCooldown(label), nil
}

// CheckAndSet atomically checks label and, if off cooldown, starts a new
// cooldown of ticks. Zero ticks always succeeds and records nothing.
func (l *Ledger) CheckAndSet(label string, ticks int64) (bool, error) {
	label, err := checkLabel(label)
	if err != nil {
		return false, err
	}
	if ticks == 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.offCooldown(label) {
		return false, nil
	}
	l.entries[label] = l.now().Add(Duration(ticks))
	return true, nil
}

// Create starts a cooldown of ticks for label, overwriting any existing one.
func (l *Ledger) Create(label string, ticks int64) error {
	label, err := checkLabel(label)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[label] = l.now().Add(Duration(ticks))
	return nil
}

// Clear removes the cooldown for label.
func (l *Ledger) Clear(label string) error {
	label, err := checkLabel(label)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, label)
	return nil
}

// Remaining returns how long until label comes off cooldown, or zero.
func (l *Ledger) Remaining(label string) (time.Duration, error) {
	label, err := checkLabel(label)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[label]
	if !ok {
		return 0, nil
	}
	if d := exp.Sub(l.now()); d > 0 {
		return d, nil
	}
	return 0, nil
}

// offCooldown must be called with l.mu held.
func (l *Ledger) offCooldown(label string) bool {
	exp, ok := l.entries[label]
	return !ok || exp.Before(l.now())
}

func (l *Ledger) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for label, exp := range l.entries {
		if exp.Before(now) {
			delete(l.entries, label)
			removed++
		}
	}
	return removed
}
