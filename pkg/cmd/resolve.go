package cmd

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

// resolve converts the bound tokens of every parameter, left to right.
func (inv *Invocation) resolve() ([]any, error) {
	r := inv.route
	bindings := r.bind(inv.raw)
	values := make([]any, len(r.params))

	for _, p := range r.params {
		v, err := inv.resolveParam(p, bindings[p.index], values)
		if err != nil {
			return nil, err
		}
		values[p.index] = v
	}
	return values, nil
}

func (inv *Invocation) resolveParam(p *param, b binding, resolved []any) (any, error) {
	a := p.arg
	tokens := b.tokens

	if !b.present {
		switch {
		case a.Default == Self:
			if inv.actor.IsZero() || !inv.actor.Interactive {
				return nil, cmderr.MissingArgument(p.name)
			}
			if p.arg.Elem != nil {
				return inv.collect(p, []any{inv.actor})
			}
			return inv.actor, nil
		case a.Default != "":
			tokens = []string{a.Default}
		case p.optional:
			return reflect.Zero(p.typ).Interface(), nil
		default:
			return nil, cmderr.MissingArgument(p.name)
		}
	} else if a.Permission != "" && !inv.HasPermission(a.Permission) {
		return nil, cmderr.NoPermission("")
	}

	if p.rest {
		tokens = []string{strings.Join(tokens, " ")}
	}

	var context any
	if a.Context > 0 {
		context = resolved[a.Context-1]
	}

	convert, ok := inv.reg.converters.get(p.converterType())
	if !ok {
		return nil, cmderr.Wrap(fmt.Errorf("no converter registered for %s", typeName(p.converterType())))
	}

	items := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		if a.StripColor {
			tok = chat.Strip(tok)
		}
		if p.re != nil && !p.re.MatchString(tok) {
			return nil, cmderr.InvalidInput("%s must match regex %s", p.name, a.Regex)
		}
		v, err := safeConvert(convert, inv, tok, context)
		if err != nil {
			return nil, err
		}
		if err := inv.checkBounds(p, v); err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	if p.arg.Elem != nil {
		return inv.collect(p, items)
	}
	return assign(p, items[0])
}

// collect builds the slice value of a multi-token parameter.
func (inv *Invocation) collect(p *param, items []any) (any, error) {
	out := reflect.MakeSlice(p.typ, 0, len(items))
	for _, it := range items {
		v := reflect.ValueOf(it)
		if !v.IsValid() || !v.Type().AssignableTo(p.typ.Elem()) {
			return nil, cmderr.TypeMismatch("%s: cannot use %T as %s", p.name, it, p.typ.Elem())
		}
		out = reflect.Append(out, v)
	}
	return out.Interface(), nil
}

// assign checks that v fits the declared parameter type.
func assign(p *param, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Zero(p.typ).Interface(), nil
	}
	if rv.Type().AssignableTo(p.typ) {
		return v, nil
	}
	if rv.Type().ConvertibleTo(p.typ) && sameKindFamily(rv.Kind(), p.typ.Kind()) {
		return rv.Convert(p.typ).Interface(), nil
	}
	return nil, cmderr.TypeMismatch("%s: cannot use %s as %s", p.name, rv.Type(), p.typ)
}

func sameKindFamily(a, b reflect.Kind) bool {
	_, an := numeric(a)
	_, bn := numeric(b)
	return (an && bn) || a == b
}

func (inv *Invocation) checkBounds(p *param, v any) error {
	a := p.arg
	if a.Min == nil && a.Max == nil {
		return nil
	}
	n, ok := toFloat(v)
	if !ok {
		return nil
	}
	if a.MinMaxBypass != "" && inv.HasPermission(a.MinMaxBypass) {
		return nil
	}
	if a.Min != nil && n < *a.Min {
		return cmderr.InvalidInput("%s must be at least %s", p.name, formatBound(*a.Min))
	}
	if a.Max != nil && n > *a.Max {
		return cmderr.InvalidInput("%s must be at most %s", p.name, formatBound(*a.Max))
	}
	return nil
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func numeric(k reflect.Kind) (float bool, ok bool) {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return false, true
	case reflect.Float32, reflect.Float64:
		return true, true
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// safeConvert runs a converter, turning panics and foreign errors into
// internal errors that keep the cause.
func safeConvert(fn ConvertFunc, inv *Invocation, token string, context any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	v, err = fn(inv, token, context)
	if err != nil {
		return nil, cmderr.Wrap(err)
	}
	return v, nil
}

// recovered converts a panic value to an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return cmderr.Wrap(err)
	}
	return cmderr.Wrap(fmt.Errorf("panic: %v", r))
}
