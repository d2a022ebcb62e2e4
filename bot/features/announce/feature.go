package announce

import (
	"herald/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /announce command
type Feature struct {
	announcer    service.AnnounceService
	staffRoleIDs []int64
}

// NewFeature creates a new announce feature instance
func NewFeature(announcer service.AnnounceService, staffRoleIDs []int64) *Feature {
	return &Feature{
		announcer:    announcer,
		staffRoleIDs: staffRoleIDs,
	}
}

// HandleCommand posts the announcement described by the command options
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handle(s, i)
}

// Command returns the slash command definition
func Command() *discordgo.ApplicationCommand {
	perms := int64(discordgo.PermissionManageChannels)
	return &discordgo.ApplicationCommand{
		Name:                     "announce",
		Description:              "Send an announcement embed to a channel",
		DefaultMemberPermissions: &perms,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel to announce in",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
				Required:     true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "Announcement title",
				MaxLength:   256,
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: `Message body, up to 4096 characters. Type \n for a line break.`,
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "roles",
				Description: "Roles to ping, e.g. @Role1, @Role2",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "users",
				Description: "Users to ping, e.g. @User1, @User2",
			},
			{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "attachment",
				Description: "Image or GIF shown in the embed",
			},
		},
	}
}
