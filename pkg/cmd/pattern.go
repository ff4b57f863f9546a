package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// segment is one element of a parsed Path pattern: either a set of literal
// alternatives or a parameter slot.
type segment struct {
	literals []string
	param    *param
}

func (s segment) isLiteral() bool { return s.param == nil }

func (s segment) matches(token string) bool {
	for _, lit := range s.literals {
		if strings.EqualFold(lit, token) {
			return true
		}
	}
	return false
}

// param is a compiled parameter slot.
type param struct {
	index    int
	name     string
	optional bool
	// rest joins every remaining token into a single value.
	rest bool
	arg  Arg
	typ  reflect.Type
	re   *regexp.Regexp
}

// multi reports whether the slot consumes every remaining token.
func (p *param) multi() bool { return p.rest || p.arg.Elem != nil }

// converterType is the registry key used to convert each token.
func (p *param) converterType() reflect.Type {
	switch {
	case p.arg.Converter != nil:
		return p.arg.Converter
	case p.arg.Elem != nil:
		return p.arg.Elem
	default:
		return p.typ
	}
}

func (p *param) completerType() reflect.Type {
	if p.arg.Completer != nil {
		return p.arg.Completer
	}
	return p.converterType()
}

var paramName = regexp.MustCompile(`^[A-Za-z_][\w-]*$`)

// parsePattern splits a pattern into segments and binds Arg declarations to
// parameter slots by name.
func parsePattern(pattern string, args []Arg) ([]segment, []*param, error) {
	var segs []segment
	var params []*param
	seen := map[string]bool{}

	for _, field := range strings.Fields(pattern) {
		switch {
		case strings.HasPrefix(field, "(") && strings.HasSuffix(field, ")"):
			var alts []string
			for _, alt := range strings.Split(field[1:len(field)-1], "|") {
				if alt = strings.TrimSpace(alt); alt != "" {
					alts = append(alts, strings.ToLower(alt))
				}
			}
			if len(alts) == 0 {
				return nil, nil, fmt.Errorf("pattern %q: empty alternatives %q", pattern, field)
			}
			segs = append(segs, segment{literals: alts})

		case isParam(field):
			p := &param{index: len(params), optional: field[0] == '['}
			name := field[1 : len(field)-1]
			if strings.HasSuffix(name, "...") {
				p.rest = true
				name = strings.TrimSuffix(name, "...")
			}
			if !paramName.MatchString(name) {
				return nil, nil, fmt.Errorf("pattern %q: invalid parameter name %q", pattern, name)
			}
			if seen[name] {
				return nil, nil, fmt.Errorf("pattern %q: duplicate parameter %q", pattern, name)
			}
			seen[name] = true
			p.name = name
			params = append(params, p)
			segs = append(segs, segment{param: p})

		case strings.ContainsAny(field, "<>[]()|"):
			return nil, nil, fmt.Errorf("pattern %q: malformed segment %q", pattern, field)

		default:
			segs = append(segs, segment{literals: []string{strings.ToLower(field)}})
		}
	}

	for _, a := range args {
		var p *param
		for _, candidate := range params {
			if candidate.name == a.Name {
				p = candidate
				break
			}
		}
		if p == nil {
			return nil, nil, fmt.Errorf("pattern %q: arg %q has no parameter", pattern, a.Name)
		}
		p.arg = a
	}

	for i, s := range segs {
		if !s.isLiteral() && s.param.multi() && i != len(segs)-1 {
			return nil, nil, fmt.Errorf("pattern %q: nothing may follow %q", pattern, s.param.name)
		}
	}

	for _, p := range params {
		if err := p.compile(params); err != nil {
			return nil, nil, fmt.Errorf("pattern %q: parameter %q: %w", pattern, p.name, err)
		}
	}
	return segs, params, nil
}

func isParam(field string) bool {
	if len(field) < 3 {
		return false
	}
	return (field[0] == '<' && field[len(field)-1] == '>') ||
		(field[0] == '[' && field[len(field)-1] == ']')
}

func (p *param) compile(all []*param) error {
	a := &p.arg
	a.Name = p.name

	switch {
	case a.Type != nil:
		p.typ = a.Type
	case a.Elem != nil:
		p.typ = reflect.SliceOf(a.Elem)
	default:
		p.typ = stringType
	}

	if a.Elem != nil && p.typ.Kind() != reflect.Slice {
		return fmt.Errorf("elem %s set on non-slice type %s", a.Elem, p.typ)
	}
	if p.rest && a.Elem != nil {
		return errors.New("rest parameter cannot also declare elem")
	}
	if a.Context != 0 && (a.Context < 1 || a.Context > p.index) {
		return fmt.Errorf("context %d must reference an earlier parameter", a.Context)
	}
	if a.Default == Self && p.converterType() != actorType {
		return fmt.Errorf("default %q requires an actor parameter, got %s", Self, p.typ)
	}
	if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
		return fmt.Errorf("min %v exceeds max %v", *a.Min, *a.Max)
	}
	if a.Regex != "" {
		re, err := regexp.Compile(a.Regex)
		if err != nil {
			return fmt.Errorf("regex: %w", err)
		}
		p.re = re
	}
	return nil
}
