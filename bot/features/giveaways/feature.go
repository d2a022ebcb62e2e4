package giveaways

import (
	"time"

	"herald/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /giveaway command
type Feature struct {
	giveaways    service.GiveawayService
	staffRoleIDs []int64
	now          func() time.Time
}

// NewFeature creates a new giveaways feature instance
func NewFeature(giveaways service.GiveawayService, staffRoleIDs []int64) *Feature {
	return &Feature{
		giveaways:    giveaways,
		staffRoleIDs: staffRoleIDs,
		now:          time.Now,
	}
}

// HandleCommand routes giveaway subcommands to their handlers
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handle(s, i)
}

// Command returns the slash command definition
func Command() *discordgo.ApplicationCommand {
	minWinners := float64(1)
	minZero := float64(0)
	prizeMin, prizeMax := 2, 50

	duration := func() []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days", MinValue: &minZero, MaxValue: service.MaxGiveawayDays},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "hours", Description: "Hours", MinValue: &minZero, MaxValue: service.MaxGiveawayHours},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "minutes", Description: "Minutes", MinValue: &minZero, MaxValue: service.MaxGiveawayMinutes},
		}
	}

	target := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "message_id",
			Description: "ID or link of the giveaway message",
			Required:    true,
		},
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel of the giveaway (defaults to this one)",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	}

	startOptions := append([]*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "prize",
			Description: "What is being given away",
			Required:    true,
			MinLength:   &prizeMin,
			MaxLength:   prizeMax,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "winners",
			Description: "Number of winners",
			Required:    true,
			MinValue:    &minWinners,
		},
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Channel to post the giveaway in (defaults to this one)",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	}, duration()...)

	return &discordgo.ApplicationCommand{
		Name:        "giveaway",
		Description: "Run giveaways",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Start a giveaway",
				Options:     startOptions,
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Cancel a giveaway without picking winners",
				Options:     target,
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "extend",
				Description: "Set a new end time for a giveaway, counted from now",
				Options:     append(append([]*discordgo.ApplicationCommandOption{}, target...), duration()...),
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List running giveaways",
			},
		},
	}
}
