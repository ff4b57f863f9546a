// Package tasks is the host scheduler used by command dispatch.
//
// A Scheduler owns one "main" goroutine, on which synchronous tasks run one at
// a time in submission order, and a bounded pool of workers for asynchronous
// tasks. Tasks may run now, after a delay, or periodically. Delays and periods
// are expressed in ticks (see WithTick).
//
//	s := tasks.New(tasks.WithWorkers(4))
//	_ = s.Start(ctx)
//	defer s.Stop()
//
//	id := s.RepeatAsync(0, 20, func(ctx context.Context) error {
//	    // runs roughly once a second until cancelled
//	    return nil
//	}, tasks.Named("refresh"))
//
//	// later...
//	s.Cancel(id)
//
// Every task is identified by a uuid handle. Cancelling is best-effort: a task
// already running sees its context cancelled but is not interrupted.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTick is the wall-clock length of one tick.
const DefaultTick = 50 * time.Millisecond

const queueSize = 256

// Func is a unit of work. ctx is cancelled when the task is cancelled or the
// scheduler stops.
type Func func(ctx context.Context) error

// StatusReporter receives lifecycle events for named tasks.
// Example messages:
//
//	running:refresh
//	error:refresh:failed to connect
//	done:refresh
type StatusReporter func(string)

// ErrStarted is returned by Start when the scheduler is already running.
var ErrStarted = errors.New("scheduler already started")

// Info describes a scheduled task.
type Info struct {
	ID        uuid.UUID
	Name      string
	Async     bool
	Repeating bool
	Running   bool
}

type state int

const (
	stateQueued state = iota
	stateRunning
)

type task struct {
	id        uuid.UUID
	seq       uint64
	name      string
	fn        Func
	async     bool
	period    time.Duration
	state     state
	cancelled bool
	timer     *time.Timer
	cancel    context.CancelFunc
	onCancel  func()
}

func (t *task) info() Info {
	return Info{
		ID:        t.id,
		Name:      t.name,
		Async:     t.async,
		Repeating: t.period > 0,
		Running:   t.state == stateRunning,
	}
}

// TaskOption configures a single task.
type TaskOption func(*task)

// Named labels a task. Named tasks are reported to the StatusReporter.
func Named(name string) TaskOption {
	return func(t *task) { t.name = name }
}

// OnCancel sets fn to be called if the task is cancelled, by Cancel or
// Stop, while it is still waiting to run. fn is not called for a task that
// is already running; that task sees its context cancelled instead.
func OnCancel(fn func()) TaskOption {
	return func(t *task) { t.onCancel = fn }
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the size of the asynchronous worker pool.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTick sets the wall-clock length of one tick.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the logger for task failures and rejected submissions.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithReporter sets the lifecycle callback for named tasks.
func WithReporter(r StatusReporter) Option {
	return func(s *Scheduler) { s.reporter = r }
}

// Scheduler runs tasks on a main goroutine and a worker pool.
// It is safe for concurrent use.
type Scheduler struct {
	tick     time.Duration
	workers  int
	log      zerolog.Logger
	reporter StatusReporter

	mu    sync.Mutex
	tasks map[uuid.UUID]*task
	seq   uint64
	ctx   context.Context
	stop  context.CancelFunc
	main  chan *task
	pool  chan *task
	wg    sync.WaitGroup
}

// New creates a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tick:    DefaultTick,
		workers: 1,
		log:     zerolog.Nop(),
		tasks:   make(map[uuid.UUID]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick returns the wall-clock length of one tick.
func (s *Scheduler) Tick() time.Duration { return s.tick }

// Start launches the main goroutine and the worker pool. They run until Stop
// is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil && s.ctx.Err() == nil {
		return ErrStarted
	}

	s.ctx, s.stop = context.WithCancel(ctx)
	s.main = make(chan *task, queueSize)
	s.pool = make(chan *task, queueSize)

	s.wg.Add(1 + s.workers)
	go s.loop(s.ctx, s.main)
	for i := 0; i < s.workers; i++ {
		go s.loop(s.ctx, s.pool)
	}
	return nil
}

// Stop cancels every task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.stop()
	var hooks []func()
	for id, t := range s.tasks {
		if hook := s.drop(t); hook != nil {
			hooks = append(hooks, hook)
		}
		delete(s.tasks, id)
	}
	s.ctx = nil
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	s.wg.Wait()
}

// Running reports whether the scheduler accepts tasks.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil && s.ctx.Err() == nil
}

// Sync runs fn on the main goroutine as soon as possible.
func (s *Scheduler) Sync(fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, false, 0, 0, opts)
}

// Wait runs fn on the main goroutine after delay ticks.
func (s *Scheduler) Wait(delay int64, fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, false, delay, 0, opts)
}

// Repeat runs fn on the main goroutine after delay ticks, then again period
// ticks after each run finishes.
func (s *Scheduler) Repeat(delay, period int64, fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, false, delay, max(period, 1), opts)
}

// Async runs fn on a worker as soon as one is free.
func (s *Scheduler) Async(fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, true, 0, 0, opts)
}

// WaitAsync runs fn on a worker after delay ticks.
func (s *Scheduler) WaitAsync(delay int64, fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, true, delay, 0, opts)
}

// RepeatAsync is Repeat on the worker pool.
func (s *Scheduler) RepeatAsync(delay, period int64, fn Func, opts ...TaskOption) uuid.UUID {
	return s.submit(fn, true, delay, max(period, 1), opts)
}

// Cancel removes a task. It reports false if the handle is unknown or the
// task already finished.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	hook := s.drop(t)
	delete(s.tasks, id)
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true
}

// CancelAll cancels every handle in ids.
func (s *Scheduler) CancelAll(ids ...uuid.UUID) {
	for _, id := range ids {
		s.Cancel(id)
	}
}

// IsQueued reports whether the task is waiting to run.
func (s *Scheduler) IsQueued(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.state == stateQueued
}

// IsRunning reports whether the task is executing right now.
func (s *Scheduler) IsRunning(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.state == stateRunning
}

// Pending lists tasks waiting to run, oldest first.
func (s *Scheduler) Pending() []Info {
	return s.list(stateQueued)
}

// Active lists tasks currently executing, oldest first.
func (s *Scheduler) Active() []Info {
	return s.list(stateRunning)
}

func (s *Scheduler) list(st state) []Info {
	s.mu.Lock()
	matched := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.state == st {
			matched = append(matched, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]Info, len(matched))
	for i, t := range matched {
		out[i] = t.info()
	}
	return out
}

func (s *Scheduler) ticks(n int64) time.Duration {
	return time.Duration(n) * s.tick
}

func (s *Scheduler) submit(fn Func, async bool, delay, period int64, opts []TaskOption) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil || s.ctx.Err() != nil {
		s.log.Warn().Bool("async", async).Msg("attempted to schedule task while stopped")
		return uuid.Nil
	}

	s.seq++
	t := &task{
		id:     uuid.New(),
		seq:    s.seq,
		fn:     fn,
		async:  async,
		period: s.ticks(period),
	}
	for _, opt := range opts {
		opt(t)
	}
	s.tasks[t.id] = t
	s.arm(t, s.ticks(delay))
	return t.id
}

// arm queues t after the given delay. Must be called with s.mu held.
func (s *Scheduler) arm(t *task, after time.Duration) {
	t.state = stateQueued
	ch, done := s.main, s.ctx.Done()
	if t.async {
		ch = s.pool
	}
	if after <= 0 {
		push(ch, done, t)
		return
	}
	t.timer = time.AfterFunc(after, func() { push(ch, done, t) })
}

// drop cancels t and returns its OnCancel hook if t never started. The
// hook must be called after s.mu is released. Must be called with s.mu held.
func (s *Scheduler) drop(t *task) func() {
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.state == stateQueued {
		return t.onCancel
	}
	return nil
}

func push(ch chan<- *task, done <-chan struct{}, t *task) {
	select {
	case ch <- t:
	default:
		// queue full; hand off without blocking the caller, which may be
		// the consumer of ch
		go func() {
			select {
			case ch <- t:
			case <-done:
			}
		}()
	}
}

func (s *Scheduler) loop(ctx context.Context, ch <-chan *task) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			s.run(ctx, t)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	s.mu.Lock()
	if t.cancelled {
		s.mu.Unlock()
		return
	}
	t.state = stateRunning
	t.timer = nil
	tctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	s.mu.Unlock()

	s.report(t, "running:"+t.name)
	err := call(tctx, t.fn)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("task", t.name).Str("id", t.id.String()).Msg("task failed")
		s.report(t, "error:"+t.name+":"+err.Error())
	} else {
		s.report(t, "done:"+t.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.cancel = nil
	if t.cancelled || t.period <= 0 || s.ctx == nil || s.ctx.Err() != nil {
		delete(s.tasks, t.id)
		return
	}
	s.arm(t, t.period)
}

func (s *Scheduler) report(t *task, msg string) {
	if s.reporter != nil && t.name != "" {
		s.reporter(msg)
	}
}

func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
