package reactroles

import (
	"context"

	"herald/service"

	"github.com/bwmarrin/discordgo"
)

// Reattacher restores the listeners of a stored react-role message
type Reattacher interface {
	Reattach(ctx context.Context, channelID, messageID int64) error
}

// Feature handles the /reactrole command
type Feature struct {
	reactRoles   service.ReactRoleService
	reattacher   Reattacher
	staffRoleIDs []int64
}

// NewFeature creates a new react-role feature instance
func NewFeature(reactRoles service.ReactRoleService, reattacher Reattacher, staffRoleIDs []int64) *Feature {
	return &Feature{
		reactRoles:   reactRoles,
		reattacher:   reattacher,
		staffRoleIDs: staffRoleIDs,
	}
}

// HandleCommand routes react-role subcommands to their handlers
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handle(s, i)
}

// Command returns the slash command definition
func Command() *discordgo.ApplicationCommand {
	target := func() []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message_id",
				Description: "ID or link of the message",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "Role to bind",
				Required:    true,
			},
		}
	}

	channel := &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "Channel of the message (defaults to this one)",
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}

	emoji := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "emoji",
		Description: "Emoji members react with",
		Required:    true,
	}

	return &discordgo.ApplicationCommand{
		Name:        "reactrole",
		Description: "Grant roles from reactions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Bind an emoji on a message to a role",
				Options:     append(append(target(), emoji), channel),
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Unbind a role from a message",
				Options:     append(target(), channel),
			},
		},
	}
}
