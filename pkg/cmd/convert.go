package cmd

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keshon/cmdmux/pkg/cmderr"
)

// ConvertFunc turns one raw token into a typed value. context is the value
// of the parameter named by Arg.Context, or nil.
type ConvertFunc func(inv *Invocation, token string, context any) (any, error)

// CompleteFunc lists candidate completions for a partial token.
type CompleteFunc func(inv *Invocation, partial string, context any) ([]string, error)

// Converter registers a ConvertFunc for a type.
type Converter struct {
	Type    reflect.Type
	Convert ConvertFunc
}

// Completer registers a CompleteFunc for a type.
type Completer struct {
	Type     reflect.Type
	Complete CompleteFunc
}

// ConverterFor adapts a typed conversion function.
func ConverterFor[T any](fn func(inv *Invocation, token string, context any) (T, error)) Converter {
	return Converter{
		Type: reflect.TypeFor[T](),
		Convert: func(inv *Invocation, token string, context any) (any, error) {
			v, err := fn(inv, token, context)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// CompleterFor registers fn as the completer for T.
func CompleterFor[T any](fn CompleteFunc) Completer {
	return Completer{Type: reflect.TypeFor[T](), Complete: fn}
}

// table maps types to functions. Reads and inserts may run concurrently;
// a later insert for the same type wins.
type table[F any] struct {
	mu sync.RWMutex
	m  map[reflect.Type]F
}

func newTable[F any]() *table[F] {
	return &table[F]{m: make(map[reflect.Type]F)}
}

func (t *table[F]) put(typ reflect.Type, fn F) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[typ] = fn
}

func (t *table[F]) get(typ reflect.Type) (F, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.m[typ]
	return fn, ok
}

func (t *table[F]) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m = make(map[reflect.Type]F)
}

var (
	stringType   = reflect.TypeFor[string]()
	actorType    = reflect.TypeFor[Actor]()
	durationType = reflect.TypeFor[time.Duration]()
)

// baseConverters are discovered before any handler's, so handlers may
// override them.
func baseConverters() []Converter {
	return []Converter{
		ConverterFor(func(_ *Invocation, token string, _ any) (string, error) {
			return token, nil
		}),
		ConverterFor(func(_ *Invocation, token string, _ any) (int, error) {
			v, err := strconv.Atoi(token)
			if err != nil {
				return 0, cmderr.InvalidInput("`%s` is not a valid number", token)
			}
			return v, nil
		}),
		ConverterFor(func(_ *Invocation, token string, _ any) (int64, error) {
			v, err := strconv.ParseInt(token, 10, 64)
			if err != nil {
				return 0, cmderr.InvalidInput("`%s` is not a valid number", token)
			}
			return v, nil
		}),
		ConverterFor(func(_ *Invocation, token string, _ any) (float64, error) {
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return 0, cmderr.InvalidInput("`%s` is not a valid number", token)
			}
			return v, nil
		}),
		ConverterFor(func(_ *Invocation, token string, _ any) (bool, error) {
			return parseBool(token)
		}),
		ConverterFor(func(_ *Invocation, token string, _ any) (time.Duration, error) {
			if secs, err := strconv.ParseFloat(token, 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
			d, err := time.ParseDuration(token)
			if err != nil {
				return 0, cmderr.InvalidInput("`%s` is not a valid duration", token)
			}
			return d, nil
		}),
		ConverterFor(convertActor),
	}
}

func baseCompleters() []Completer {
	return []Completer{
		CompleterFor[bool](func(_ *Invocation, partial string, _ any) ([]string, error) {
			return filterPrefix([]string{"true", "false"}, partial), nil
		}),
		CompleterFor[Actor](completeActor),
	}
}

func parseBool(token string) (bool, error) {
	switch strings.ToLower(token) {
	case "true", "yes", "y", "on", "enable", "enabled", "1":
		return true, nil
	case "false", "no", "n", "off", "disable", "disabled", "0":
		return false, nil
	}
	return false, cmderr.InvalidInput("`%s` is not a valid boolean", token)
}

// convertActor resolves a name or id to a reachable actor.
func convertActor(inv *Invocation, token string, _ any) (Actor, error) {
	dir := inv.Host().Directory
	if dir == nil {
		return Actor{}, cmderr.ActorNotFound(token)
	}
	if strings.EqualFold(token, Self) && !inv.Actor().IsZero() {
		return inv.Actor(), nil
	}
	a, err := MatchActor(dir.Actors(), token)
	if err != nil {
		return Actor{}, err
	}
	if !dir.Online(a) {
		return Actor{}, cmderr.ActorUnavailable(a.Name)
	}
	return a, nil
}

func completeActor(inv *Invocation, partial string, _ any) ([]string, error) {
	dir := inv.Host().Directory
	if dir == nil {
		return nil, nil
	}
	var names []string
	for _, a := range dir.Actors() {
		if dir.Online(a) {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return filterPrefix(names, partial), nil
}

func filterPrefix(options []string, partial string) []string {
	lower := strings.ToLower(partial)
	var out []string
	for _, o := range options {
		if strings.HasPrefix(strings.ToLower(o), lower) {
			out = append(out, o)
		}
	}
	return out
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprint(t)
}
