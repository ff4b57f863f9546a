package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/cmdmux/internal/permfile"
	"github.com/keshon/cmdmux/pkg/cmd"
)

// HasPermission grants everything to guild owners and administrators.
// Everyone else is checked against the grant file, with their role names
// as extra groups.
func (b *Bot) HasPermission(a cmd.Actor, perm string) bool {
	member := b.member(a.ID)
	if member != nil {
		guild, _ := b.dg.State.Guild(member.GuildID)
		if isAdministrator(guild, member, b.role) {
			return true
		}
	}
	if b.grants == nil {
		return perm == ""
	}
	return permfile.Allows(b.grants.Grants(a, b.roleNames(member)...), perm)
}

// isAdministrator reports whether member owns guild or holds a role with
// the administrator permission.
func isAdministrator(guild *discordgo.Guild, member *discordgo.Member, role func(guildID, roleID string) *discordgo.Role) bool {
	if guild == nil || member == nil || member.User == nil {
		return false
	}
	if member.User.ID == guild.OwnerID {
		return true
	}
	for _, id := range member.Roles {
		if r := role(guild.ID, id); r != nil && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}

func (b *Bot) role(guildID, roleID string) *discordgo.Role {
	r, err := b.dg.State.Role(guildID, roleID)
	if err != nil {
		return nil
	}
	return r
}

func (b *Bot) roleNames(member *discordgo.Member) []string {
	if member == nil {
		return nil
	}
	var names []string
	for _, id := range member.Roles {
		if r := b.role(member.GuildID, id); r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}
