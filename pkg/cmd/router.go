package cmd

import (
	"regexp"
	"sort"
	"strings"
)

// route is a compiled Path.
type route struct {
	path     Path
	pos      int
	segs     []segment
	params   []*param
	literals int
	cooldown string
}

func (r *route) usable(env Env) bool {
	return !r.path.Disabled && Applies(r.path.Environments, env)
}

// binding is the raw input bound to one parameter.
type binding struct {
	tokens  []string
	present bool
}

// match reports whether tokens fit the route structurally and how many
// parameter slots were left without a token.
func (r *route) match(tokens []string) (ok bool, unfilled int) {
	i := 0
	for _, s := range r.segs {
		switch {
		case s.isLiteral():
			if i >= len(tokens) || !s.matches(tokens[i]) {
				return false, 0
			}
			i++
		case s.param.multi():
			if i >= len(tokens) {
				unfilled++
			}
			i = len(tokens)
		default:
			if i < len(tokens) {
				i++
			} else {
				unfilled++
			}
		}
	}
	return i == len(tokens), unfilled
}

// bind assigns tokens to parameters. The route must match tokens.
func (r *route) bind(tokens []string) []binding {
	out := make([]binding, len(r.params))
	i := 0
	for _, s := range r.segs {
		switch {
		case s.isLiteral():
			i++
		case s.param.multi():
			if i < len(tokens) {
				out[s.param.index] = binding{tokens: tokens[i:], present: true}
			}
			i = len(tokens)
		default:
			if i < len(tokens) {
				out[s.param.index] = binding{tokens: tokens[i : i+1], present: true}
				i++
			}
		}
	}
	return out
}

// overlap counts literal segments equal to the token at the same position.
func (r *route) overlap(tokens []string) int {
	n := 0
	for i, s := range r.segs {
		if i >= len(tokens) {
			break
		}
		if s.isLiteral() && s.matches(tokens[i]) {
			n++
		}
	}
	return n
}

// selectRoute picks the most specific usable route matching tokens. Ties
// go to the route with more literal segments, then the one with fewer
// unfilled parameter slots, then the one declared first.
func selectRoute(routes []*route, tokens []string, env Env) *route {
	var best *route
	bestUnfilled := 0
	for _, r := range routes {
		if !r.usable(env) {
			continue
		}
		ok, unfilled := r.match(tokens)
		if !ok {
			continue
		}
		if best == nil ||
			r.literals > best.literals ||
			(r.literals == best.literals && unfilled < bestUnfilled) {
			best, bestUnfilled = r, unfilled
		}
	}
	return best
}

// closestRoute returns the usable route sharing the most literal segments
// with tokens, or nil when none share any.
func closestRoute(routes []*route, tokens []string, env Env) *route {
	var best *route
	bestOverlap := 0
	for _, r := range routes {
		if !r.usable(env) {
			continue
		}
		if n := r.overlap(tokens); n > bestOverlap {
			best, bestOverlap = r, n
		}
	}
	return best
}

var cooldownUnsafe = regexp.MustCompile(`[^\w:#-]+`)

// defaultCooldownLabel derives a ledger label from the handler and the
// route's literal segments.
func defaultCooldownLabel(name string, r *route) string {
	parts := []string{"command", strings.ToLower(name)}
	for _, s := range r.segs {
		if s.isLiteral() {
			parts = append(parts, s.literals[0])
		}
	}
	return cooldownUnsafe.ReplaceAllString(strings.Join(parts, ":"), "_")
}

// levenshtein calculates the edit distance between two strings.
func levenshtein(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

type suggestion struct {
	name     string
	distance int
}

// suggest returns up to limit names within edit distance 3 of input, closest first.
func suggest(input string, names []string, limit int) []string {
	const maxDistance = 3

	seen := map[string]bool{}
	var found []suggestion
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if d := levenshtein(input, name); d > 0 && d <= maxDistance {
			found = append(found, suggestion{name: name, distance: d})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		return found[i].name < found[j].name
	})
	if len(found) > limit {
		found = found[:limit]
	}

	out := make([]string, len(found))
	for i, s := range found {
		out[i] = s.name
	}
	return out
}

// firstLiterals lists the alternatives of every usable route that starts
// with a literal segment.
func firstLiterals(routes []*route, env Env) []string {
	var out []string
	for _, r := range routes {
		if r.usable(env) && len(r.segs) > 0 && r.segs[0].isLiteral() {
			out = append(out, r.segs[0].literals...)
		}
	}
	return out
}
