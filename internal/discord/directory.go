package discord

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/cmdmux/pkg/cmd"
)

func actorOf(u *discordgo.User) cmd.Actor {
	return cmd.Actor{ID: u.ID, Name: u.Username, Interactive: true}
}

func (b *Bot) guilds() []*discordgo.Guild {
	st := b.dg.State
	st.RLock()
	defer st.RUnlock()
	return append([]*discordgo.Guild(nil), st.Guilds...)
}

// member returns the freshest known member record of a user.
func (b *Bot) member(id string) *discordgo.Member {
	b.mu.RLock()
	cached := b.members[id]
	b.mu.RUnlock()

	if cached != nil {
		if m, err := b.dg.State.Member(cached.GuildID, id); err == nil {
			return m
		}
		return cached
	}
	for _, g := range b.guilds() {
		if m, err := b.dg.State.Member(g.ID, id); err == nil {
			return m
		}
	}
	return nil
}

func (b *Bot) Lookup(id string) (cmd.Actor, bool) {
	m := b.member(id)
	if m == nil || m.User == nil {
		return cmd.Actor{}, false
	}
	return actorOf(m.User), true
}

// Online uses presence where the gateway reports it and falls back to
// guild membership.
func (b *Bot) Online(a cmd.Actor) bool {
	member := false
	for _, g := range b.guilds() {
		if p, err := b.dg.State.Presence(g.ID, a.ID); err == nil {
			return p.Status != discordgo.StatusOffline && p.Status != discordgo.StatusInvisible
		}
		if _, err := b.dg.State.Member(g.ID, a.ID); err == nil {
			member = true
		}
	}
	return member
}

// Actors lists the members of every guild, once each, sorted by name.
func (b *Bot) Actors() []cmd.Actor {
	seen := map[string]bool{}
	var out []cmd.Actor

	st := b.dg.State
	st.RLock()
	for _, g := range st.Guilds {
		for _, m := range g.Members {
			if m.User == nil || m.User.Bot || seen[m.User.ID] {
				continue
			}
			seen[m.User.ID] = true
			out = append(out, actorOf(m.User))
		}
	}
	st.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
