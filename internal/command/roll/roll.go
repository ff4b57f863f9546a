package roll

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
)

var (
	tokenRegex = regexp.MustCompile(`(?i)(\d*d\d+|\d+|[+\-*/])`)
	diceRegex  = regexp.MustCompile(`(?i)^(\d*)d(\d+)$`)
	validOps   = map[string]bool{"+": true, "-": true, "*": true, "/": true}
)

const (
	maxDice  = 100
	maxSides = 1000
)

type term struct {
	value int
	desc  string
	op    string
}

// Result is an evaluated formula.
type Result struct {
	Total  int
	Detail string
}

// Command rolls dice formulas like 2d20+1d6-2.
type Command struct {
	intN func(n int) int
}

func New() *Command { return &Command{intN: rand.IntN} }

func (c *Command) Spec() cmd.Spec {
	return cmd.Spec{
		Name:       "Roll",
		Aliases:    []string{"roll", "dice"},
		Permission: "cmd.roll",
		Paths: []cmd.Path{{
			Pattern:     "<formula...>",
			Description: "Roll dice like 2d20+1d6-2",
			Async:       true,
			Cooldown:    &cmd.Cooldown{Ticks: 20, Bypass: "cmd.bypass"},
			Run:         c.run,
		}},
	}
}

func (c *Command) run(_ context.Context, inv *cmd.Invocation) error {
	formula := strings.ReplaceAll(cmd.MustArg[string](inv, "formula"), " ", "")
	res, err := c.Evaluate(formula)
	if err != nil {
		return err
	}
	inv.Tell(fmt.Sprintf("&7%s &8= &f%s &8= &e&l%d", formula, res.Detail, res.Total))
	return nil
}

// Evaluate rolls formula. Multiplication and division bind to the term on
// their left before sums are taken.
func (c *Command) Evaluate(formula string) (Result, error) {
	tokens := tokenRegex.FindAllString(formula, -1)
	if len(tokens) == 0 {
		return Result{}, cmderr.New("Can't parse your formula. Try something like 2d6+1d4*2-3")
	}

	var terms []term
	currentOp := "+"
	for _, token := range tokens {
		if validOps[token] {
			currentOp = token
			continue
		}
		val, desc, err := c.evaluateToken(token)
		if err != nil {
			return Result{}, cmderr.Newf("Failed to evaluate %s: %v", token, err)
		}
		terms = append(terms, term{value: val, desc: desc, op: currentOp})
	}
	if len(terms) == 0 {
		return Result{}, cmderr.New("Can't parse your formula. Try something like 2d6+1d4*2-3")
	}

	var merged []term
	for _, t := range terms {
		if t.op != "*" && t.op != "/" {
			merged = append(merged, t)
			continue
		}
		if len(merged) == 0 {
			return Result{}, cmderr.New("Can't multiply or divide by nothing")
		}
		prev := merged[len(merged)-1]
		merged = merged[:len(merged)-1]

		newVal := prev.value * t.value
		if t.op == "/" {
			if t.value == 0 {
				return Result{}, cmderr.New("Can't divide by zero")
			}
			newVal = prev.value / t.value
		}
		merged = append(merged, term{
			value: newVal,
			desc:  fmt.Sprintf("%s %s %s", prev.desc, t.op, t.desc),
			op:    prev.op,
		})
	}

	total := 0
	var details []string
	for _, t := range merged {
		if len(details) > 0 {
			details = append(details, " "+t.op+" ")
		}
		details = append(details, t.desc)
		if t.op == "-" {
			total -= t.value
		} else {
			total += t.value
		}
	}
	return Result{Total: total, Detail: strings.Join(details, "")}, nil
}

func (c *Command) evaluateToken(token string) (int, string, error) {
	matches := diceRegex.FindStringSubmatch(token)
	if matches == nil {
		num, err := strconv.Atoi(token)
		if err != nil {
			return 0, "", fmt.Errorf("not a number or dice")
		}
		return num, strconv.Itoa(num), nil
	}

	count := 1
	if matches[1] != "" {
		n, err := strconv.Atoi(matches[1])
		if err != nil || n < 1 {
			return 0, "", fmt.Errorf("invalid dice count")
		}
		count = n
	}
	sides, err := strconv.Atoi(matches[2])
	if err != nil || sides < 2 {
		return 0, "", fmt.Errorf("invalid dice sides")
	}
	if count > maxDice || sides > maxSides {
		return 0, "", fmt.Errorf("too big, max %d dice, %d sides", maxDice, maxSides)
	}

	var sum int
	rolls := make([]string, count)
	for i := range count {
		r := c.intN(sides) + 1
		sum += r
		rolls[i] = strconv.Itoa(r)
	}
	return sum, fmt.Sprintf("%s[%s]", strings.ToLower(token), strings.Join(rolls, ", ")), nil
}
