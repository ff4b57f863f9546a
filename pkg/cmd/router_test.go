package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileRoutes(t *testing.T, patterns ...string) []*route {
	t.Helper()
	reg := NewRegistry(newTestHost().host())
	reg.discover(nil)
	spec := Spec{Aliases: []string{"x"}}
	for _, p := range patterns {
		spec.Paths = append(spec.Paths, Path{Pattern: p, Run: noop})
	}
	e, err := reg.compile(newStub[kindA](spec), spec, "X")
	require.NoError(t, err)
	return e.routes
}

func pattern(r *route) string {
	if r == nil {
		return "<nil>"
	}
	return r.path.Pattern
}

func TestParsePattern(t *testing.T) {
	segs, params, err := parsePattern("set (volume|vol) <amount> [reason...]", nil)
	require.NoError(t, err)
	require.Len(t, segs, 4)
	assert.Equal(t, []string{"set"}, segs[0].literals)
	assert.Equal(t, []string{"volume", "vol"}, segs[1].literals)
	require.Len(t, params, 2)
	assert.Equal(t, "amount", params[0].name)
	assert.False(t, params[0].optional)
	assert.Equal(t, "reason", params[1].name)
	assert.True(t, params[1].optional)
	assert.True(t, params[1].rest)
	assert.Equal(t, stringType, params[1].typ)
}

func TestParsePattern_Errors(t *testing.T) {
	tests := []struct {
		pattern string
		args    []Arg
		want    string
	}{
		{"<rest...> tail", nil, "nothing may follow"},
		{"<a> <a>", nil, "duplicate parameter"},
		{"<1bad>", nil, "invalid parameter name"},
		{"<open", nil, "malformed segment"},
		{"a|b", nil, "malformed segment"},
		{"()", nil, "empty alternatives"},
		{"<a>", []Arg{{Name: "b"}}, `arg "b" has no parameter`},
		{"<a> <b>", []Arg{{Name: "a", Context: 1}}, "must reference an earlier parameter"},
		{"<a> <b>", []Arg{{Name: "b", Context: 2}}, "must reference an earlier parameter"},
		{"<a>", []Arg{{Name: "a", Default: Self}}, "requires an actor parameter"},
		{"<a>", []Arg{{Name: "a", Min: Bound(5), Max: Bound(1)}}, "min 5 exceeds max 1"},
		{"<a>", []Arg{{Name: "a", Regex: "("}}, "regex"},
		{"<a>", []Arg{{Name: "a", Type: TypeOf[int](), Elem: TypeOf[int]()}}, "non-slice"},
		{"<a...>", []Arg{{Name: "a", Elem: TypeOf[int]()}}, "rest parameter cannot also declare elem"},
		{"<a> <b>", []Arg{{Name: "a", Elem: TypeOf[int]()}}, "nothing may follow"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.want, func(t *testing.T) {
			_, _, err := parsePattern(tt.pattern, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelectRoute_PrefersMoreLiterals(t *testing.T) {
	routes := compileRoutes(t, "<target>", "list", "set <amount>", "set max")

	tests := []struct {
		input string
		want  string
	}{
		{"list", "list"},
		{"steve", "<target>"},
		{"set 10", "set <amount>"},
		{"set max", "set max"},
		{"SET MAX", "set max"},
		{"", "<target>"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, pattern(selectRoute(routes, strings.Fields(tt.input), Prod)))
		})
	}
}

func TestSelectRoute_NeverPicksLessSpecific(t *testing.T) {
	// Every declaration order must give the same answer.
	orders := [][]string{
		{"give <who> <item>", "give all <item>"},
		{"give all <item>", "give <who> <item>"},
	}
	for _, order := range orders {
		routes := compileRoutes(t, order...)
		assert.Equal(t, "give all <item>", pattern(selectRoute(routes, []string{"give", "all", "apple"}, Prod)))
		assert.Equal(t, "give <who> <item>", pattern(selectRoute(routes, []string{"give", "bob", "apple"}, Prod)))
	}
}

func TestSelectRoute_TieBreak(t *testing.T) {
	t.Run("fewer unfilled slots", func(t *testing.T) {
		routes := compileRoutes(t, "add <a> [b] [c]", "add <a> [b]")
		assert.Equal(t, "add <a> [b]", pattern(selectRoute(routes, []string{"add", "1"}, Prod)))
		assert.Equal(t, "add <a> [b]", pattern(selectRoute(routes, []string{"add", "1", "2"}, Prod)))
		assert.Equal(t, "add <a> [b] [c]", pattern(selectRoute(routes, []string{"add", "1", "2", "3"}, Prod)))
	})

	t.Run("declaration order", func(t *testing.T) {
		routes := compileRoutes(t, "kick <who>", "kick <reason...>")
		assert.Equal(t, "kick <who>", pattern(selectRoute(routes, []string{"kick", "bob"}, Prod)))

		routes = compileRoutes(t, "kick <reason...>", "kick <who>")
		assert.Equal(t, "kick <reason...>", pattern(selectRoute(routes, []string{"kick", "bob"}, Prod)))
	})
}

func TestSelectRoute_SkipsUnusable(t *testing.T) {
	routes := compileRoutes(t, "list", "<target>")
	routes[0].path.Disabled = true
	assert.Equal(t, "<target>", pattern(selectRoute(routes, []string{"list"}, Prod)))

	routes[0].path.Disabled = false
	routes[0].path.Environments = []Env{Dev}
	assert.Equal(t, "<target>", pattern(selectRoute(routes, []string{"list"}, Prod)))
	assert.Equal(t, "list", pattern(selectRoute(routes, []string{"list"}, Dev)))
}

func TestSelectRoute_ExtraTokensDoNotMatch(t *testing.T) {
	routes := compileRoutes(t, "get", "set <v>")
	assert.Nil(t, selectRoute(routes, []string{"get", "now"}, Prod))
	assert.Nil(t, selectRoute(routes, []string{"set", "1", "2"}, Prod))
}

func TestSelectRoute_MultiConsumesRest(t *testing.T) {
	routes := compileRoutes(t, "say <msg...>")
	r := selectRoute(routes, []string{"say", "hello", "there"}, Prod)
	require.NotNil(t, r)
	b := r.bind([]string{"say", "hello", "there"})
	assert.Equal(t, []string{"hello", "there"}, b[0].tokens)
	assert.True(t, b[0].present)
}

func TestClosestRoute(t *testing.T) {
	routes := compileRoutes(t, "set <amount>", "mute <who>", "get")
	assert.Equal(t, "set <amount>", pattern(closestRoute(routes, []string{"set", "1", "2"}, Prod)))
	assert.Nil(t, closestRoute(routes, []string{"bogus"}, Prod))
}

func TestSuggest(t *testing.T) {
	names := []string{"teleport", "tp", "time", "weather", "tpa"}
	assert.Equal(t, []string{"tp", "tpa", "time"}, suggest("tpp", names, 3))
	assert.Equal(t, []string{"teleport"}, suggest("telport", names, 3))
	assert.Empty(t, suggest("zzzzzzzz", names, 3))
	assert.Empty(t, suggest("tp", []string{"tp"}, 3), "exact match is not a suggestion")
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("Abc", "aBC"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("kitten", "sitten"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 3, levenshtein("abc", ""))
	// distances count characters, not bytes
	assert.Equal(t, 1, levenshtein("привет", "приветы"))
	assert.Equal(t, 1, levenshtein("naïve", "naive"))
	assert.Equal(t, 0, levenshtein("ÜBER", "über"))
}

func TestDefaultCooldownLabel(t *testing.T) {
	routes := compileRoutes(t, "home set <name>", "<x>")
	assert.Equal(t, "command:home:home:set", defaultCooldownLabel("Home", routes[0]))
	assert.Equal(t, "command:my_cmd", defaultCooldownLabel("My Cmd", routes[1]))
}

func TestFirstLiterals(t *testing.T) {
	routes := compileRoutes(t, "(add|plus) <a>", "<x>", "clear")
	assert.Equal(t, []string{"add", "plus", "clear"}, firstLiterals(routes, Prod))
}
