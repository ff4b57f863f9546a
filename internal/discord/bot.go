// Package discord hosts commands on Discord. Messages starting with the
// command prefix are dispatched; a "?" right after the prefix asks for
// completions instead.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/throttle"
	"github.com/rs/zerolog"
)

// Grants resolves the grant list of an actor. Role names are passed as
// extra groups.
type Grants interface {
	Grants(a cmd.Actor, extraGroups ...string) []string
}

// Options configures a Bot.
type Options struct {
	Token  string
	Prefix string
	Grants Grants
	Logger zerolog.Logger
	// SendRate and SendBurst pace messages per channel.
	SendRate  float64
	SendBurst int
}

// Bot is a Discord host. It implements every cmd.Host service except the
// scheduler.
type Bot struct {
	dg     *discordgo.Session
	prefix string
	grants Grants
	log    zerolog.Logger
	pace   *throttle.Limiter
	retry  throttle.RetryConfig
	outbox chan outgoing

	mu       sync.RWMutex
	disp     *cmd.Dispatcher
	members  map[string]*discordgo.Member
	channels map[string]string
	served   map[string]bool
}

var (
	_ cmd.Permissions = (*Bot)(nil)
	_ cmd.Directory   = (*Bot)(nil)
	_ cmd.Output      = (*Bot)(nil)
	_ cmd.Redirector  = (*Bot)(nil)
	_ cmd.EventHost   = (*Bot)(nil)
)

// New creates the session. Nothing connects until Run.
func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("discord: missing token")
	}
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return newBot(dg, opts), nil
}

func newBot(dg *discordgo.Session, opts Options) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 1
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 5
	}
	b := &Bot{
		dg:       dg,
		prefix:   opts.Prefix,
		grants:   opts.Grants,
		log:      opts.Logger,
		pace:     throttle.NewLimiter(opts.SendRate, opts.SendBurst),
		retry:    throttle.DefaultRetryConfig(),
		outbox:   make(chan outgoing, outboxSize),
		members:  make(map[string]*discordgo.Member),
		channels: make(map[string]string),
		served:   make(map[string]bool),
	}
	b.retry.Classifier = statusOf
	b.retry.Logger = &b.log
	return b
}

// Host bundles the bot's services with s.
func (b *Bot) Host(s cmd.Scheduler) cmd.Host {
	return cmd.Host{
		Permissions: b,
		Directory:   b,
		Output:      b,
		Scheduler:   s,
		Redirector:  b,
		Events:      b,
	}
}

// Attach sets the dispatcher messages are run through.
func (b *Bot) Attach(d *cmd.Dispatcher) {
	b.mu.Lock()
	b.disp = d
	b.mu.Unlock()
}

func (b *Bot) dispatcher() *cmd.Dispatcher {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disp
}

// Run connects and serves until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(ctx, s, m)
	})

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.pump(ctx)

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) onMessageCreate(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	line, complete, ok := parseLine(m.Content, b.prefix)
	if !ok {
		return
	}
	d := b.dispatcher()
	if d == nil {
		return
	}

	actor := b.remember(m)
	if complete {
		options := d.Complete(ctx, actor, line)
		if len(options) == 0 {
			b.SendTo(actor.ID, "No completions")
			return
		}
		b.SendTo(actor.ID, strings.Join(options, ", "))
		return
	}
	d.Run(ctx, actor, line)
}

// remember records where the author wrote from, so replies go back there.
func (b *Bot) remember(m *discordgo.MessageCreate) cmd.Actor {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[m.Author.ID] = m.ChannelID
	if m.GuildID != "" {
		b.served[m.ChannelID] = true
	}
	if m.Member != nil {
		member := *m.Member
		member.User = m.Author
		member.GuildID = m.GuildID
		b.members[m.Author.ID] = &member
	}
	return actorOf(m.Author)
}

// parseLine extracts the command line from a message. complete reports a
// completion request ("!?tp ste").
func parseLine(content, prefix string) (line string, complete, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimLeft(content, " "), prefix)
	if !found {
		return "", false, false
	}
	if q, isQ := strings.CutPrefix(rest, "?"); isQ {
		return q, true, true
	}
	if strings.TrimSpace(rest) == "" || strings.HasPrefix(rest, " ") {
		return "", false, false
	}
	return rest, false, true
}

// AddHandler attaches fn to the session. Presence listeners are fed from
// member add and remove events; any other fn must be a discordgo handler.
func (b *Bot) AddHandler(fn any) func() {
	switch f := fn.(type) {
	case func(cmd.Joined):
		return b.dg.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
			if e.Member != nil && e.User != nil {
				f(cmd.Joined{Actor: actorOf(e.User)})
			}
		})
	case func(cmd.Left):
		return b.dg.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
			if e.Member != nil && e.User != nil {
				b.forget(e.User.ID)
				f(cmd.Left{Actor: actorOf(e.User)})
			}
		})
	}
	return b.dg.AddHandler(fn)
}

func (b *Bot) forget(id string) {
	b.mu.Lock()
	delete(b.members, id)
	delete(b.channels, id)
	b.mu.Unlock()
}

// Redirect runs target with the original arguments as the same actor.
func (b *Bot) Redirect(ctx context.Context, a cmd.Actor, target, alias string, args []string) error {
	d := b.dispatcher()
	if d == nil {
		return errors.New("discord: no dispatcher attached")
	}
	name := strings.TrimLeft(target, "/")
	if name == "" || strings.EqualFold(name, strings.TrimLeft(alias, "/")) {
		return fmt.Errorf("discord: invalid redirect %q from %q", target, alias)
	}
	d.Run(ctx, a, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil
}
