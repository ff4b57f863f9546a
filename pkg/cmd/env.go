package cmd

import (
	"fmt"
	"strings"
)

// Env is a deployment environment. Handlers and paths may restrict
// themselves to a subset of environments.
type Env int

const (
	Prod Env = iota
	Test
	Dev
)

func (e Env) String() string {
	switch e {
	case Dev:
		return "dev"
	case Test:
		return "test"
	default:
		return "prod"
	}
}

// ParseEnv parses "dev", "test" or "prod" (case-insensitive).
func ParseEnv(s string) (Env, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return Dev, nil
	case "test", "staging":
		return Test, nil
	case "prod", "production", "":
		return Prod, nil
	}
	return Prod, fmt.Errorf("unknown environment %q", s)
}

// UnmarshalText lets Env be used directly in env-tagged config structs.
func (e *Env) UnmarshalText(text []byte) error {
	v, err := ParseEnv(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Applies reports whether cur is one of envs. An empty list applies everywhere.
func Applies(envs []Env, cur Env) bool {
	if len(envs) == 0 {
		return true
	}
	for _, e := range envs {
		if e == cur {
			return true
		}
	}
	return false
}
