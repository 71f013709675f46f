package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"guildkit/core"
	"guildkit/interaction"
)

// EventFromInteraction converts component and modal interactions. Other
// interaction types (slash commands, autocomplete, pings) report false.
func EventFromInteraction(s Session, i *discordgo.InteractionCreate) (*interaction.Event, bool) {
	if i == nil || i.Interaction == nil {
		return nil, false
	}
	ev := &interaction.Event{
		Guild:     core.GuildID(i.GuildID),
		Channel:   core.ChannelID(i.ChannelID),
		Responder: &Responder{session: s, interaction: i.Interaction},
		Raw:       i,
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev.CustomID = data.CustomID
		ev.Values = data.Values
		ev.Origin = interaction.OriginSelectMenu
		if data.ComponentType == discordgo.ButtonComponent {
			ev.Origin = interaction.OriginButton
		}
	case discordgo.InteractionModalSubmit:
		ev.CustomID = i.ModalSubmitData().CustomID
		ev.Origin = interaction.OriginModal
	default:
		return nil, false
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		ev.Member = core.MemberID(i.Member.User.ID)
	case i.User != nil:
		ev.Member = core.MemberID(i.User.ID)
	}
	return ev, true
}

// Responder answers an interaction with an ephemeral message.
type Responder struct {
	session     Session
	interaction *discordgo.Interaction
}

func (r *Responder) RespondEphemeral(ctx context.Context, content string) error {
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
}

// InteractionHandler returns a discordgo event handler feeding router.
// discordgo runs each handler call on its own goroutine.
func InteractionHandler(router *interaction.Router) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ev, ok := EventFromInteraction(s, i)
		if !ok {
			return
		}
		router.Dispatch(context.Background(), ev)
	}
}
