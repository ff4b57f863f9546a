package discord

import (
	"context"
	"errors"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/cmdmux/pkg/chat"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/throttle"
)

const (
	outboxSize = 256
	// maxMessage is Discord's content limit in characters.
	maxMessage = 2000
)

type outgoing struct {
	channelID string
	// userID is set instead of channelID for direct messages.
	userID string
	text   string
}

// Send replies in the channel the actor last wrote in, or by DM.
func (b *Bot) Send(to cmd.Actor, msg string) {
	b.SendTo(to.ID, msg)
}

func (b *Bot) SendTo(id string, msg string) {
	b.mu.RLock()
	channelID := b.channels[id]
	b.mu.RUnlock()

	if channelID != "" {
		b.enqueue(outgoing{channelID: channelID, text: msg})
		return
	}
	b.enqueue(outgoing{userID: id, text: msg})
}

// Broadcast posts msg to every guild channel a command was run in.
func (b *Bot) Broadcast(msg string) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.served))
	for id := range b.served {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		b.enqueue(outgoing{channelID: id, text: msg})
	}
}

// Console writes to the process log; the bot has no operator terminal.
func (b *Bot) Console(msg string) {
	b.log.Info().Str("source", "console").Msg(msg)
}

func (b *Bot) enqueue(o outgoing) {
	o.text = clip(chat.Strip(o.text))
	if o.text == "" {
		return
	}
	select {
	case b.outbox <- o:
	default:
		b.log.Warn().Str("channel", o.channelID).Str("user", o.userID).Msg("outbox full, message dropped")
	}
}

// pump delivers queued messages in order until ctx is done.
func (b *Bot) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-b.outbox:
			if err := b.deliver(ctx, o); err != nil && ctx.Err() == nil {
				b.log.Error().Err(err).Str("channel", o.channelID).Str("user", o.userID).Msg("failed to send message")
			}
		}
	}
}

func (b *Bot) deliver(ctx context.Context, o outgoing) error {
	if o.channelID == "" {
		ch, err := b.dg.UserChannelCreate(o.userID)
		if err != nil {
			return err
		}
		o.channelID = ch.ID
	}

	cfg := b.retry
	cfg.Limiter = b.pace
	cfg.Key = o.channelID
	return throttle.Retry(ctx, cfg, func() error {
		_, err := b.dg.ChannelMessageSend(o.channelID, o.text)
		return err
	})
}

// statusOf reads the HTTP status of a failed REST call, for retry decisions.
func statusOf(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxMessage {
		return s
	}
	return string(r[:maxMessage-1]) + "…"
}
