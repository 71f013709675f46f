// Package discord adapts a discordgo session to the router, the role
// synchronizer, and the leveling producer.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"guildkit/core"
)

// Session is the subset of *discordgo.Session used here.
type Session interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// ErrUnknownRole is returned by RoleName for roles missing from the guild.
var ErrUnknownRole = errors.New("unknown role")

// Gateway implements rolesync.MembershipGateway over the Discord REST API.
type Gateway struct {
	session Session
}

func NewGateway(s Session) *Gateway { return &Gateway{session: s} }

func (g *Gateway) MemberRoles(ctx context.Context, guild core.GuildID, member core.MemberID) ([]core.RoleID, error) {
	m, err := g.session.GuildMember(string(guild), string(member), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	out := make([]core.RoleID, 0, len(m.Roles))
	for _, r := range m.Roles {
		out = append(out, core.RoleID(r))
	}
	return out, nil
}

// AddRoles grants each role with its own request; Discord has no batch grant.
// Every role is attempted and the failures are joined.
func (g *Gateway) AddRoles(ctx context.Context, guild core.GuildID, member core.MemberID, roles []core.RoleID) error {
	var errs []error
	for _, r := range roles {
		if err := g.session.GuildMemberRoleAdd(string(guild), string(member), string(r), discordgo.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("add role %s: %w", r, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) RemoveRoles(ctx context.Context, guild core.GuildID, member core.MemberID, roles []core.RoleID) error {
	var errs []error
	for _, r := range roles {
		if err := g.session.GuildMemberRoleRemove(string(guild), string(member), string(r), discordgo.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("remove role %s: %w", r, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) RoleName(ctx context.Context, guild core.GuildID, role core.RoleID) (string, error) {
	roles, err := g.session.GuildRoles(string(guild), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch roles: %w", err)
	}
	for _, r := range roles {
		if r.ID == string(role) {
			return r.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRole, role)
}

func (g *Gateway) SendMessage(ctx context.Context, channel core.ChannelID, content string) error {
	if _, err := g.session.ChannelMessageSend(string(channel), content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
