package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/tasks"
	"github.com/keshon/cmdmux/pkg/throttle"
)

// InternalErrorMessage is the only reply an actor sees for an internal error.
const InternalErrorMessage = "&cAn internal error occurred while attempting to execute this command"

// ErrUnknownCommand is the Err of an invocation whose alias is not registered.
var ErrUnknownCommand = errors.New("unknown command")

// ErrEmptyLine is the Err of an invocation of a blank line.
var ErrEmptyLine = errors.New("empty command line")

// Record is one audited command execution.
type Record struct {
	Time     time.Time
	Actor    Actor
	Command  string
	Alias    string
	Line     string
	Pattern  string
	Async    bool
	Outcome  string
	Error    string
	Duration time.Duration
}

// Auditor stores records of run-context executions. Completions are never
// audited.
type Auditor interface {
	Record(ctx context.Context, r Record) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMiddleware appends policies after the built-in ones.
func WithMiddleware(mws ...Middleware) DispatcherOption {
	return func(d *Dispatcher) { d.extra = append(d.extra, mws...) }
}

// WithAuditor records every run-context execution.
func WithAuditor(a Auditor) DispatcherOption {
	return func(d *Dispatcher) { d.auditor = a }
}

// WithFloodLimit throttles interactive actors.
func WithFloodLimit(l *throttle.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.flood = l }
}

// WithClock replaces time.Now for audit timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher turns input lines into handler calls.
type Dispatcher struct {
	reg     *Registry
	extra   []Middleware
	auditor Auditor
	flood   *throttle.Limiter
	now     func() time.Time
	chain   Next
}

// NewDispatcher builds a dispatcher over reg. Built-in policies run in this
// order: flood limit, permissions, interactive-only, cooldown; then any
// WithMiddleware policies; then argument resolution and the handler.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	mws := []Middleware{
		Flood(d.flood),
		RequirePermission(),
		RequireInteractive(),
		EnforceCooldown(reg.cooldowns),
	}
	d.chain = Apply(d.execute, append(mws, d.extra...)...)
	return d
}

// Registry returns the registry the dispatcher routes through.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// split tokenizes line. keepEmpty appends an empty token for a trailing
// space, which completion treats as a new, empty partial.
func split(line string, keepEmpty bool) []string {
	tokens := strings.Fields(line)
	if keepEmpty && len(tokens) > 0 && strings.HasSuffix(line, " ") {
		tokens = append(tokens, "")
	}
	return tokens
}

// Run dispatches line for actor in run context. Synchronous handlers have
// finished when Run returns; asynchronous ones are signalled through the
// returned invocation's Done channel.
func (d *Dispatcher) Run(ctx context.Context, actor Actor, line string) *Invocation {
	tokens := split(line, false)
	if len(tokens) == 0 {
		inv := newInvocation(d.reg, nil, actor, "", line, nil, false)
		inv.finish(ErrEmptyLine)
		return inv
	}

	alias := d.reg.redirect(tokens[0])
	e := d.reg.lookup(alias)
	inv := newInvocation(d.reg, e, actor, strings.ToLower(alias), line, tokens[1:], false)
	if e == nil {
		d.unknownCommand(inv)
		return inv
	}

	env := d.reg.env
	inv.route = selectRoute(e.routes, inv.raw, env)
	if inv.route == nil {
		d.noRoute(ctx, inv)
		return inv
	}
	inv.usage = e.usage(inv.alias, inv.route)
	inv.async = e.spec.Async || inv.route.path.Async

	if d.reg.debug {
		d.reg.log.Debug().
			Str("actor", actor.Name).
			Str("handler", e.name).
			Str("pattern", inv.route.path.Pattern).
			Bool("async", inv.async).
			Msg("dispatching")
	}

	started := d.now()
	err := d.safeChain(ctx, inv)
	if errors.Is(err, errHandedOff) {
		return inv
	}
	d.complete(ctx, inv, err, started)
	return inv
}

// errHandedOff signals that execution continues on a scheduler worker.
var errHandedOff = errors.New("handed off to worker")

func (d *Dispatcher) safeChain(ctx context.Context, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return d.chain(ctx, inv)
}

// execute is the innermost Next: resolve, commit deferred policy state,
// then run the handler inline or on a worker.
func (d *Dispatcher) execute(ctx context.Context, inv *Invocation) error {
	values, err := inv.resolve()
	if err != nil {
		return err
	}
	inv.values = values

	for _, fn := range inv.onStart {
		if err := fn(); err != nil {
			return err
		}
	}

	sched := d.reg.host.Scheduler
	if !inv.async || sched == nil {
		inv.setState(Executing)
		return callRun(ctx, inv)
	}

	started := d.now()
	id := sched.Async(func(wctx context.Context) error {
		inv.setState(Executing)
		d.complete(wctx, inv, callRun(wctx, inv), started)
		return nil
	}, tasks.Named("cmd:"+inv.entry.name), tasks.OnCancel(func() {
		d.complete(ctx, inv, errCancelled(), started)
	}))
	if id == uuid.Nil {
		return cmderr.Wrap(errors.New("scheduler rejected async command"))
	}
	return errHandedOff
}

// errCancelled is the failure of an async command whose task was cancelled
// before a worker picked it up.
func errCancelled() error {
	return &cmderr.Error{Kind: cmderr.KindCommand, Message: "Command cancelled before it ran", Err: context.Canceled}
}

func callRun(ctx context.Context, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return inv.route.path.Run(ctx, inv)
}

// complete replies on failure, audits, then marks inv finished so Done
// observers see every side effect.
func (d *Dispatcher) complete(ctx context.Context, inv *Invocation, err error, started time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = d.fail(inv, err).String()
	}
	d.audit(ctx, inv, outcome, err, started)
	inv.finish(err)
}

// fail replies to a run-context failure. Every reply is also mirrored,
// without formatting, to the operator console.
func (d *Dispatcher) fail(inv *Invocation, err error) cmderr.Outcome {
	outcome, ce := cmderr.Classify(err)
	prefix := inv.Label()

	var msg string
	switch outcome {
	case cmderr.OutcomeUsage:
		msg = prefix + "&c" + inv.usageOrUnknown()
	case cmderr.OutcomePayload:
		msg = prefix + "&c" + ce.Payload
	case cmderr.OutcomeMessage:
		msg = prefix + "&c" + ce.Message
	default:
		msg = InternalErrorMessage
		d.reg.log.Error().
			Err(err).
			Str("actor", inv.actor.Name).
			Str("handler", inv.entryName()).
			Str("alias", inv.alias).
			Str("line", inv.line).
			Msg("command failed")
	}

	if d.reg.debug {
		d.reg.log.Debug().Err(err).Str("outcome", outcome.String()).Str("actor", inv.actor.Name).Msg("handling command exception")
	}

	inv.Reply(msg)
	if out := d.reg.host.Output; out != nil && inv.actor.Interactive {
		out.Console(inv.actor.Name + ": " + chat.Strip(msg))
	}
	return outcome
}

func (d *Dispatcher) audit(ctx context.Context, inv *Invocation, outcome string, err error, started time.Time) {
	if d.auditor == nil || inv.entry == nil {
		return
	}
	rec := Record{
		Time:     started,
		Actor:    inv.actor,
		Command:  inv.entry.name,
		Alias:    inv.alias,
		Line:     inv.line,
		Pattern:  inv.Pattern(),
		Async:    inv.async,
		Outcome:  outcome,
		Duration: d.now().Sub(started),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if aerr := d.auditor.Record(ctx, rec); aerr != nil {
		d.reg.log.Warn().Err(aerr).Str("handler", inv.entry.name).Msg("failed to record command")
	}
}

func (d *Dispatcher) unknownCommand(inv *Invocation) {
	msg := "&cUnknown command"
	if s := suggest(inv.alias, d.reg.Aliases(), 3); len(s) > 0 {
		msg += ". Did you mean &e/" + strings.Join(s, "&c, &e/") + "&c?"
	}
	inv.Reply(msg)
	inv.finish(ErrUnknownCommand)
}

// noRoute handles input no path matched: redirect to the fallback owner if
// one is declared, otherwise reply with the closest path's usage.
func (d *Dispatcher) noRoute(ctx context.Context, inv *Invocation) {
	e := inv.entry
	if e.spec.Fallback != "" && d.reg.host.Redirector != nil {
		err := d.reg.host.Redirector.Redirect(ctx, inv.actor, e.spec.Fallback, inv.alias, inv.raw)
		d.complete(ctx, inv, err, d.now())
		return
	}

	if closest := closestRoute(e.routes, inv.raw, d.reg.env); closest != nil {
		inv.usage = e.usage(inv.alias, closest)
	} else if len(inv.raw) > 0 {
		inv.suggestions = suggest(inv.raw[0], firstLiterals(e.routes, d.reg.env), 3)
	}
	d.complete(ctx, inv, cmderr.MissingArgument(""), d.now())
}

func (inv *Invocation) usageOrUnknown() string {
	if inv.usage != "" {
		return inv.usage
	}
	msg := "Unknown subcommand"
	if len(inv.suggestions) > 0 {
		msg += ". Did you mean &e" + strings.Join(inv.suggestions, "&c, &e") + "&c?"
	}
	return msg
}

func (inv *Invocation) entryName() string {
	if inv.entry == nil {
		return ""
	}
	return inv.entry.name
}

// ────────────────────────────────────────────────────────────────
// COMPLETION
// ────────────────────────────────────────────────────────────────

// Complete returns completions for the last token of line in tab context.
// It never changes cooldowns or audits. Permission failures are silent;
// other user-facing failures are replied to the actor only.
func (d *Dispatcher) Complete(ctx context.Context, actor Actor, line string) []string {
	tokens := split(line, true)
	if len(tokens) == 0 {
		tokens = []string{""}
	}

	if len(tokens) == 1 {
		return d.completeAlias(actor, tokens[0])
	}

	alias := d.reg.redirect(tokens[0])
	e := d.reg.lookup(alias)
	if e == nil {
		return nil
	}
	inv := newInvocation(d.reg, e, actor, strings.ToLower(alias), line, tokens[1:], true)
	if !inv.HasPermission(e.spec.Permission) {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	for _, r := range e.routes {
		if !r.usable(d.reg.env) || !inv.HasPermission(r.path.Permission) {
			continue
		}
		candidates, err := d.completeRoute(inv, r)
		if err != nil {
			d.tabFail(inv, err)
			return nil
		}
		for _, c := range candidates {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func (d *Dispatcher) completeAlias(actor Actor, partial string) []string {
	lower := strings.ToLower(partial)
	var out []string
	for _, alias := range d.reg.Aliases() {
		if !strings.HasPrefix(alias, lower) {
			continue
		}
		e := d.reg.lookup(alias)
		if e != nil && hasPermission(d.reg.host, actor, e.spec.Permission) {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// completeRoute walks r over every token but the last and completes the
// segment the last token falls on.
func (d *Dispatcher) completeRoute(inv *Invocation, r *route) (out []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, recovered(rec)
		}
	}()

	args := inv.raw
	before, partial := args[:len(args)-1], args[len(args)-1]

	i := 0
	for _, s := range r.segs {
		if s.isLiteral() {
			if i == len(before) {
				return filterPrefix(s.literals, partial), nil
			}
			if !s.matches(before[i]) {
				return nil, nil
			}
			i++
			continue
		}
		if i == len(before) || s.param.multi() {
			return d.completeParam(inv, r, s.param, before, partial)
		}
		i++
	}
	return nil, nil
}

func (d *Dispatcher) completeParam(inv *Invocation, r *route, p *param, before []string, partial string) ([]string, error) {
	if p.arg.Permission != "" && !inv.HasPermission(p.arg.Permission) {
		return nil, cmderr.NoPermission("")
	}
	complete, ok := d.reg.completers.get(p.completerType())
	if !ok {
		return nil, nil
	}

	var context any
	if p.arg.Context > 0 {
		inv.route = r
		bindings := r.bind(before)
		prior := make([]any, len(r.params))
		for _, q := range r.params[:p.arg.Context] {
			v, err := inv.resolveParam(q, bindings[q.index], prior)
			if err != nil {
				break
			}
			prior[q.index] = v
		}
		context = prior[p.arg.Context-1]
	}

	out, err := complete(inv, partial, context)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// tabFail handles a completion failure: permission failures are dropped,
// user-facing failures go to the actor only, anything else is logged.
func (d *Dispatcher) tabFail(inv *Invocation, err error) {
	if cmderr.Is(err, cmderr.KindNoPermission) {
		return
	}
	outcome, ce := cmderr.Classify(err)
	switch outcome {
	case cmderr.OutcomePayload, cmderr.OutcomeMessage:
		inv.Reply(inv.Label() + "&c" + ce.Text())
	default:
		d.reg.log.Error().Err(err).Str("handler", inv.entryName()).Str("line", inv.line).Msg("tab completion failed")
	}
}

// String renders an invocation for logs.
func (inv *Invocation) String() string {
	return fmt.Sprintf("%s: /%s %s", inv.actor.Name, inv.alias, inv.ArgsString())
}
