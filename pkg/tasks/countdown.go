package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repeating is a restartable periodic task. Each run is scheduled interval
// ticks after the previous one finished, so runs never overlap.
type Repeating struct {
	s        *Scheduler
	interval int64
	async    bool
	fn       Func
	opts     []TaskOption

	mu sync.Mutex
	id uuid.UUID
}

// NewRepeating prepares a periodic task. Nothing runs until Start.
func NewRepeating(s *Scheduler, interval int64, async bool, fn Func, opts ...TaskOption) *Repeating {
	return &Repeating{s: s, interval: interval, async: async, fn: fn, opts: opts}
}

// Start schedules the first run interval ticks from now. Calling Start on a
// running Repeating returns the existing handle.
func (r *Repeating) Start() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != uuid.Nil && (r.s.IsQueued(r.id) || r.s.IsRunning(r.id)) {
		return r.id
	}
	if r.async {
		r.id = r.s.RepeatAsync(r.interval, r.interval, r.fn, r.opts...)
	} else {
		r.id = r.s.Repeat(r.interval, r.interval, r.fn, r.opts...)
	}
	return r.id
}

// Stop cancels future runs.
func (r *Repeating) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != uuid.Nil {
		r.s.Cancel(r.id)
		r.id = uuid.Nil
	}
}

// Running reports whether a run is scheduled or executing.
func (r *Repeating) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id != uuid.Nil && (r.s.IsQueued(r.id) || r.s.IsRunning(r.id))
}

// CountdownConfig describes a Countdown. Duration is in ticks. Callbacks are
// optional and run on the main goroutine.
type CountdownConfig struct {
	Duration int64
	// DoZero fires OnTick (and OnSecond) one last time with 0 remaining.
	DoZero     bool
	OnStart    func()
	OnTick     func(remaining int64)
	OnSecond   func(remaining int64)
	OnComplete func()
}

// Countdown fires a callback every tick until Duration ticks have passed.
type Countdown struct {
	cfg     CountdownConfig
	s       *Scheduler
	perSec  int64
	ticks   int64
	seconds int64

	mu sync.Mutex
	id uuid.UUID
}

// Countdown starts a countdown. A negative Duration starts nothing.
func (s *Scheduler) Countdown(cfg CountdownConfig) *Countdown {
	c := &Countdown{cfg: cfg, s: s, perSec: max(int64(time.Second/s.tick), 1)}
	if cfg.Duration < 0 {
		return c
	}
	if cfg.OnStart != nil {
		cfg.OnStart()
	}

	c.mu.Lock()
	c.id = s.Repeat(1, 1, c.step)
	c.mu.Unlock()
	return c
}

// ID returns the handle of the underlying repeating task.
func (c *Countdown) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Stop cancels the countdown without firing OnComplete.
func (c *Countdown) Stop() {
	c.s.Cancel(c.ID())
}

func (c *Countdown) step(context.Context) error {
	if c.ticks == c.cfg.Duration {
		if c.cfg.DoZero {
			c.iteration()
		}
		c.Stop()
		if c.cfg.OnComplete != nil {
			c.cfg.OnComplete()
		}
		return nil
	}
	c.iteration()
	return nil
}

func (c *Countdown) iteration() {
	if c.ticks%c.perSec == 0 {
		if c.cfg.OnSecond != nil {
			c.cfg.OnSecond(c.cfg.Duration/c.perSec - c.seconds)
		}
		c.seconds++
	}
	if c.cfg.OnTick != nil {
		c.cfg.OnTick(c.cfg.Duration - c.ticks)
	}
	c.ticks++
}
