package giveaways

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"herald/bot/common"
	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.HasStaffAccess(i.Member, f.staffRoleIDs) {
		common.RespondWithError(s, i, "You need a staff role to manage giveaways.")
		return
	}

	sub, opts := common.SubcommandOptions(i.ApplicationCommandData())
	channelID, _ := strconv.ParseInt(i.ChannelID, 10, 64)

	if err := common.DeferResponse(s, i, true); err != nil {
		log.WithError(err).Error("Failed to defer giveaway command")
		return
	}

	ctx := context.Background()
	if sub == "list" {
		embed, err := f.list(ctx)
		if err != nil {
			common.HandleError(s, i, err, true)
			return
		}
		common.FollowUpWithEmbed(s, i, embed, true)
		return
	}

	var (
		message string
		err     error
	)
	switch sub {
	case "start":
		message, err = f.start(ctx, channelID, opts)
	case "delete":
		message, err = f.delete(ctx, channelID, opts)
	case "extend":
		message, err = f.extend(ctx, channelID, opts)
	default:
		err = common.NewUserError("Unknown subcommand.", fmt.Sprintf("unknown giveaway subcommand %q", sub))
	}

	if err != nil {
		common.HandleError(s, i, err, true)
		return
	}
	common.FollowUpWithSuccess(s, i, message, true)
}

func (f *Feature) start(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	channelID := defaultChannel
	if id, ok := opts.Snowflake("channel"); ok {
		channelID = id
	}

	duration, err := service.GiveawayDuration(opts.Int("days", 0), opts.Int("hours", 0), opts.Int("minutes", 0))
	if err != nil {
		return "", common.FromServiceError(err, "invalid giveaway duration")
	}

	g, err := f.giveaways.CreateGiveaway(ctx, channelID, opts.String("prize"), opts.Int("winners", 1), f.now().Add(duration))
	if err != nil {
		return "", common.FromServiceError(err, "failed to start giveaway")
	}

	return fmt.Sprintf("Giveaway for **%s** started in <#%d>, ending %s.",
		g.Prize, g.ChannelID, common.FormatDiscordTimestamp(g.Deadline, "R")), nil
}

func (f *Feature) target(defaultChannel int64, opts common.Options) (models.MessageKey, error) {
	messageID, ok := opts.Snowflake("message_id")
	if !ok {
		return models.MessageKey{}, common.NewUserError("That is not a valid message ID or link.", "bad giveaway message id")
	}

	channelID := defaultChannel
	if id, ok := opts.Snowflake("channel"); ok {
		channelID = id
	}
	return models.MessageKey{ChannelID: channelID, MessageID: messageID}, nil
}

func (f *Feature) delete(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	key, err := f.target(defaultChannel, opts)
	if err != nil {
		return "", err
	}

	if err := f.giveaways.DeleteGiveaway(ctx, key); err != nil {
		return "", common.FromServiceError(err, "failed to delete giveaway")
	}
	return "Giveaway deleted.", nil
}

func (f *Feature) extend(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	key, err := f.target(defaultChannel, opts)
	if err != nil {
		return "", err
	}

	duration, err := service.GiveawayDuration(opts.Int("days", 0), opts.Int("hours", 0), opts.Int("minutes", 0))
	if err != nil {
		return "", common.FromServiceError(err, "invalid giveaway duration")
	}

	g, err := f.giveaways.ExtendGiveaway(ctx, key, f.now().Add(duration))
	if err != nil {
		return "", common.FromServiceError(err, "failed to extend giveaway")
	}
	return fmt.Sprintf("Giveaway for **%s** now ends %s.", g.Prize, common.FormatDiscordTimestamp(g.Deadline, "R")), nil
}

func (f *Feature) list(ctx context.Context) (*discordgo.MessageEmbed, error) {
	giveaways, err := f.giveaways.ListGiveaways(ctx)
	if err != nil {
		return nil, common.FromServiceError(err, "failed to list giveaways")
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎉 Running giveaways (%d)", len(giveaways)),
		Color: common.ColorPrimary,
	}
	if len(giveaways) == 0 {
		embed.Description = "No giveaways are running."
		return embed, nil
	}

	now := f.now()
	var b strings.Builder
	for n, g := range giveaways {
		if n == common.MaxListedGiveaways {
			fmt.Fprintf(&b, "...and %d more", len(giveaways)-n)
			break
		}
		line := fmt.Sprintf("**%s** in <#%d>: %d winner(s), ends %s (%s), message `%d`\n",
			g.Prize, g.ChannelID, g.WinnerCount,
			common.FormatDiscordTimestamp(g.Deadline, "R"),
			service.FormatRemaining(g.Deadline, now),
			g.MessageID)
		if b.Len()+len(line) > common.MaxEmbedDescription-32 {
			fmt.Fprintf(&b, "...and %d more", len(giveaways)-n)
			break
		}
		b.WriteString(line)
	}
	embed.Description = b.String()
	return embed, nil
}
