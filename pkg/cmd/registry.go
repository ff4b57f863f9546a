package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cooldown"
	"github.com/rs/zerolog"
)

// entry is a registered handler with its compiled routes.
type entry struct {
	handler Handler
	typ     reflect.Type
	spec    Spec
	name    string
	prefix  string
	aliases []string
	routes  []*route
	detach  []func()
}

// usage renders the usage line of r as invoked through alias.
func (e *entry) usage(alias string, r *route) string {
	u := strings.TrimSpace("Correct usage: /" + alias + " " + r.path.Pattern)
	if r.path.Description != "" {
		u += " &7- " + r.path.Description
	}
	return u
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnv sets the deployment environment handlers are filtered by.
func WithEnv(env Env) Option {
	return func(r *Registry) { r.env = env }
}

// WithLogger sets the registry and dispatch logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithDebug logs every dispatch decision at debug level.
func WithDebug(debug bool) Option {
	return func(r *Registry) { r.debug = debug }
}

// WithCooldowns shares a cooldown store with the registry.
func WithCooldowns(s *cooldown.Store) Option {
	return func(r *Registry) { r.cooldowns = s }
}

// Registry owns the set of known handler types, the active handler
// instances and the alias map. Registration and unregistration happen at
// startup and shutdown; lookups may run concurrently with each other.
type Registry struct {
	host      Host
	env       Env
	log       zerolog.Logger
	debug     bool
	cooldowns *cooldown.Store

	converters *table[ConvertFunc]
	completers *table[CompleteFunc]

	mu        sync.RWMutex
	known     []Handler
	active    map[reflect.Type]*entry
	aliases   map[string]*entry
	redirects map[string]string
}

// NewRegistry returns an empty registry bound to host.
func NewRegistry(host Host, opts ...Option) *Registry {
	r := &Registry{
		host:       host,
		log:        zerolog.Nop(),
		converters: newTable[ConvertFunc](),
		completers: newTable[CompleteFunc](),
		active:     make(map[reflect.Type]*entry),
		aliases:    make(map[string]*entry),
		redirects:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cooldowns == nil {
		r.cooldowns = cooldown.NewStore(cooldown.WithLogger(r.log))
	}
	return r
}

// Env returns the deployment environment.
func (r *Registry) Env() Env { return r.env }

// Host returns the hosting services.
func (r *Registry) Host() Host { return r.host }

// Cooldowns returns the cooldown store.
func (r *Registry) Cooldowns() *cooldown.Store { return r.cooldowns }

// Logger returns the registry logger.
func (r *Registry) Logger() zerolog.Logger { return r.log }

// Add remembers handlers for RegisterAll. Adding a second handler of the
// same type replaces the first.
func (r *Registry) Add(handlers ...Handler) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range handlers {
		typ := reflect.TypeOf(h)
		replaced := false
		for i, k := range r.known {
			if reflect.TypeOf(k) == typ {
				r.known[i] = h
				replaced = true
				break
			}
		}
		if !replaced {
			r.known = append(r.known, h)
		}
	}
	return r
}

// RegisterAll discovers converters and completers of every known handler,
// then registers each one. A handler that fails to register is logged and
// skipped; the joined errors are returned.
//
// RegisterAll panics if any handler is already registered.
func (r *Registry) RegisterAll() error {
	r.mu.RLock()
	busy := len(r.active) > 0
	known := append([]Handler(nil), r.known...)
	r.mu.RUnlock()
	if busy {
		panic("cmd: RegisterAll called while commands are registered; call UnregisterAll first")
	}

	specs := make([]Spec, len(known))
	for i, h := range known {
		specs[i] = h.Spec()
	}
	r.discover(specs)

	r.log.Debug().Int("count", len(known)).Msg("registering commands")
	var errs []error
	for i, h := range known {
		if err := r.register(h, specs[i]); err != nil {
			r.log.Error().Err(err).Str("handler", handlerName(h, specs[i])).Msg("error while registering command")
			errs = append(errs, err)
		}
	}
	r.log.Info().Int("count", len(r.Commands())).Msg("registered commands")
	return errors.Join(errs...)
}

// Register adds h to the known set, discovers its converters and
// completers, and registers it. Registering a handler type that is already
// registered panics.
func (r *Registry) Register(h Handler) error {
	r.Add(h)
	spec := h.Spec()

	r.mu.RLock()
	empty := len(r.active) == 0
	r.mu.RUnlock()
	if empty {
		r.discover(nil)
	}
	r.discoverSpec(spec)
	return r.register(h, spec)
}

// discover resets both tables and fills them: the built-in base set first,
// then each spec in order. Later entries for a type replace earlier ones.
func (r *Registry) discover(specs []Spec) {
	r.converters.reset()
	r.completers.reset()
	for _, c := range baseConverters() {
		r.converters.put(c.Type, c.Convert)
	}
	for _, c := range baseCompleters() {
		r.completers.put(c.Type, c.Complete)
	}
	for _, s := range specs {
		r.discoverSpec(s)
	}
}

func (r *Registry) discoverSpec(s Spec) {
	for _, c := range s.Converters {
		r.converters.put(c.Type, c.Convert)
	}
	for _, c := range s.Completers {
		r.completers.put(c.Type, c.Complete)
	}
}

// canEnable reports whether a handler should be registered in env.
func canEnable(s Spec, env Env) bool {
	if s.Disabled {
		return false
	}
	if len(s.Aliases) > 0 && strings.HasPrefix(s.Aliases[0], "_") {
		return false
	}
	return Applies(s.Environments, env)
}

func (r *Registry) register(h Handler, spec Spec) error {
	name := handlerName(h, spec)
	if !canEnable(spec, r.env) {
		r.log.Debug().Str("handler", name).Str("env", r.env.String()).Msg("skipping command")
		return nil
	}

	typ := reflect.TypeOf(h)
	r.mu.RLock()
	_, dup := r.active[typ]
	r.mu.RUnlock()
	if dup {
		panic(fmt.Sprintf("cmd: handler %s already registered", typ))
	}

	e, err := r.compile(h, spec, name)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r.mu.Lock()
	for _, alias := range e.aliases {
		if owner, taken := r.aliases[alias]; taken {
			r.mu.Unlock()
			return fmt.Errorf("register %s: alias %q already owned by %s", name, alias, owner.name)
		}
	}
	for _, alias := range e.aliases {
		r.aliases[alias] = e
	}
	r.active[typ] = e
	r.mu.Unlock()

	if l, ok := h.(Listener); ok {
		if r.host.Events == nil {
			r.log.Warn().Str("handler", name).Msg("handler has listeners but host has no event bus")
		} else {
			for _, fn := range l.Listeners() {
				e.detach = append(e.detach, r.host.Events.AddHandler(fn))
			}
		}
	}

	r.log.Debug().Str("handler", name).Strs("aliases", e.aliases).Int("paths", len(e.routes)).Msg("registered command")
	return nil
}

// compile validates spec and builds its routes. Every parameter must have
// a converter, so misconfiguration fails here rather than at call time.
func (r *Registry) compile(h Handler, spec Spec, name string) (*entry, error) {
	if len(spec.Aliases) == 0 {
		return nil, errors.New("no aliases declared")
	}

	e := &entry{handler: h, typ: reflect.TypeOf(h), spec: spec, name: name}
	e.prefix = spec.Prefix
	if e.prefix == "" {
		e.prefix = chat.Prefix(name)
	}

	for _, alias := range spec.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" || strings.ContainsAny(alias, " \t") {
			return nil, fmt.Errorf("invalid alias %q", alias)
		}
		if spec.DoubleSlash {
			alias = "/" + alias
		}
		e.aliases = append(e.aliases, alias)
	}

	for i, p := range spec.Paths {
		if p.Run == nil {
			return nil, fmt.Errorf("path %q has no Run", p.Pattern)
		}
		segs, params, err := parsePattern(p.Pattern, p.Args)
		if err != nil {
			return nil, err
		}
		rt := &route{path: p, pos: i, segs: segs, params: params}
		for _, s := range segs {
			if s.isLiteral() {
				rt.literals++
			}
		}
		for _, prm := range params {
			if _, ok := r.converters.get(prm.converterType()); !ok {
				return nil, fmt.Errorf("path %q: no converter registered for %s", p.Pattern, typeName(prm.converterType()))
			}
		}
		if p.Cooldown != nil {
			rt.cooldown = p.Cooldown.Label
			if rt.cooldown == "" {
				rt.cooldown = defaultCooldownLabel(name, rt)
			}
			if err := cooldown.Validate(rt.cooldown); err != nil {
				return nil, fmt.Errorf("path %q: cooldown: %w", p.Pattern, err)
			}
		}
		e.routes = append(e.routes, rt)
	}
	return e, nil
}

// Unregister removes the handler of h's type: its aliases, its listeners,
// then its Shutdown hook. Shutdown errors are logged.
func (r *Registry) Unregister(h Handler) {
	typ := reflect.TypeOf(h)
	r.mu.Lock()
	e, ok := r.active[typ]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.active, typ)
	for _, alias := range e.aliases {
		if r.aliases[alias] == e {
			delete(r.aliases, alias)
		}
	}
	r.mu.Unlock()

	for _, detach := range e.detach {
		detach()
	}
	if s, ok := e.handler.(Shutdowner); ok {
		if err := s.Shutdown(); err != nil {
			r.log.Error().Err(err).Str("handler", e.name).Msg("error while shutting down command")
		}
	}
	r.log.Debug().Str("handler", e.name).Msg("unregistered command")
}

// UnregisterAll unregisters every active handler. A panic in one handler's
// shutdown does not stop the rest.
func (r *Registry) UnregisterAll() {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().Interface("panic", rec).Str("handler", e.name).Msg("error while unregistering command")
				}
			}()
			r.Unregister(e.handler)
		}()
	}
}

// Lookup returns the handler owning alias (case-insensitive).
func (r *Registry) Lookup(alias string) (Handler, bool) {
	e := r.lookup(alias)
	if e == nil {
		return nil, false
	}
	return e.handler, true
}

// Name returns the label of h, as shown in replies and usages.
func (r *Registry) Name(h Handler) string {
	r.mu.RLock()
	e, ok := r.active[reflect.TypeOf(h)]
	r.mu.RUnlock()
	if ok {
		return e.name
	}
	return handlerName(h, h.Spec())
}

func (r *Registry) lookup(alias string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aliases[strings.ToLower(alias)]
}

// Commands returns every registered handler, sorted by name.
func (r *Registry) Commands() []Handler {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	out := make([]Handler, len(entries))
	for i, e := range entries {
		out[i] = e.handler
	}
	return out
}

// Aliases lists every registered alias key, sorted.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Converter returns the conversion function registered for t.
func (r *Registry) Converter(t reflect.Type) (ConvertFunc, bool) {
	return r.converters.get(t)
}

// Completer returns the completion function registered for t.
func (r *Registry) Completer(t reflect.Type) (CompleteFunc, bool) {
	return r.completers.get(t)
}

// Usage is one path of a handler as shown in help output.
type Usage struct {
	Command     string
	Alias       string
	Pattern     string
	Description string
}

func (u Usage) String() string {
	s := strings.TrimSpace("/" + u.Alias + " " + u.Pattern)
	if u.Description != "" {
		s += " &7- " + u.Description
	}
	return s
}

// Usages lists the paths a may run, grouped by handler name.
func (r *Registry) Usages(a Actor) []Usage {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var out []Usage
	for _, e := range entries {
		if !hasPermission(r.host, a, e.spec.Permission) {
			continue
		}
		for _, rt := range e.routes {
			if !rt.usable(r.env) || !hasPermission(r.host, a, rt.path.Permission) {
				continue
			}
			out = append(out, Usage{
				Command:     e.name,
				Alias:       e.aliases[0],
				Pattern:     rt.path.Pattern,
				Description: rt.path.Description,
			})
		}
	}
	return out
}

var redirectPattern = regexp.MustCompile(`^(/){1,2}[\w\-]+$`)

// Redirect rewrites invocations of from to to. Both must look like
// "/alias" or "//alias".
func (r *Registry) Redirect(from, to string) error {
	if !redirectPattern.MatchString(from) || !redirectPattern.MatchString(to) {
		return fmt.Errorf("invalid redirect %q -> %q", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[strings.ToLower(from)] = strings.ToLower(to)
	return nil
}

// Redirects returns a copy of the redirect table.
func (r *Registry) Redirects() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.redirects))
	for k, v := range r.redirects {
		out[k] = v
	}
	return out
}

func (r *Registry) redirect(alias string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if to, ok := r.redirects["/"+strings.ToLower(alias)]; ok {
		return strings.TrimPrefix(to, "/")
	}
	return alias
}

// handlerName is the label of a handler: Spec.Name, else its first alias
// capitalized.
func handlerName(h Handler, s Spec) string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Aliases) > 0 && s.Aliases[0] != "" {
		a := s.Aliases[0]
		return strings.ToUpper(a[:1]) + a[1:]
	}
	return strings.TrimSuffix(reflect.TypeOf(h).String(), "Command")
}
