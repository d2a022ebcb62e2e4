package verification

import (
	"herald/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /verification command
type Feature struct {
	verification service.VerificationService
	staffRoleIDs []int64
}

// NewFeature creates a new verification feature instance
func NewFeature(verification service.VerificationService, staffRoleIDs []int64) *Feature {
	return &Feature{
		verification: verification,
		staffRoleIDs: staffRoleIDs,
	}
}

// HandleCommand routes verification subcommands to their handlers
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handle(s, i)
}

// Command returns the slash command definition
func Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "verification",
		Description: "Manage the verification prompt",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "post",
				Description: "Post the verify button",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Channel to post in (defaults to this one)",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Delete the verify button",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show where the verify button is posted",
			},
		},
	}
}
