package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/keshon/cmdmux/pkg/tasks"
)

// Command broadcasts a countdown to everyone. Only one runs at a time.
type Command struct {
	sched *tasks.Scheduler

	mu      sync.Mutex
	running *tasks.Countdown
}

func New(s *tasks.Scheduler) *Command {
	return &Command{sched: s}
}

func (c *Command) Spec() cmd.Spec {
	return cmd.Spec{
		Aliases:    []string{"countdown"},
		Permission: "cmd.countdown",
		Paths: []cmd.Path{
			{
				Pattern:     "<seconds>",
				Description: "Count down to zero for everyone",
				Args: []cmd.Arg{{
					Name: "seconds",
					Type: cmd.TypeOf[int](),
					Min:  cmd.Bound(1),
					Max:  cmd.Bound(300),
				}},
				Run: c.start,
			},
			{
				Pattern:     "stop",
				Description: "Stop the running countdown",
				Run:         c.stop,
			},
		},
	}
}

func (c *Command) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		c.running.Stop()
		c.running = nil
	}
	return nil
}

func (c *Command) start(_ context.Context, inv *cmd.Invocation) error {
	seconds := cmd.MustArg[int](inv, "seconds")
	out := inv.Host().Output
	label := inv.Label()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return cmderr.New("A countdown is already running")
	}

	var cd *tasks.Countdown
	cd = c.sched.Countdown(tasks.CountdownConfig{
		Duration: int64(seconds) * int64(time.Second/c.sched.Tick()),
		OnSecond: func(remaining int64) {
			out.Broadcast(fmt.Sprintf("%s&e%d...", label, remaining))
		},
		OnComplete: func() {
			out.Broadcast(label + "&a&lGo!")
			c.mu.Lock()
			if c.running == cd {
				c.running = nil
			}
			c.mu.Unlock()
		},
	})
	c.running = cd
	inv.Tell(fmt.Sprintf("&7Started a &f%ds &7countdown", seconds))
	return nil
}

func (c *Command) stop(_ context.Context, inv *cmd.Invocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running == nil {
		return cmderr.New("No countdown is running")
	}
	c.running.Stop()
	c.running = nil
	inv.Host().Output.Broadcast(inv.Label() + "&cCountdown cancelled by " + inv.Actor().Name)
	return nil
}
