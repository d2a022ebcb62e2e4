package reactroles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"herald/bot/common"
	"herald/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.HasStaffAccess(i.Member, f.staffRoleIDs) {
		common.RespondWithError(s, i, "You need a staff role to manage reaction roles.")
		return
	}

	sub, opts := common.SubcommandOptions(i.ApplicationCommandData())
	channelID, _ := strconv.ParseInt(i.ChannelID, 10, 64)

	if err := common.DeferResponse(s, i, true); err != nil {
		log.WithError(err).Error("Failed to defer reactrole command")
		return
	}

	ctx := context.Background()
	var (
		message string
		err     error
	)
	switch sub {
	case "add":
		message, err = f.add(ctx, channelID, opts)
	case "remove":
		message, err = f.remove(ctx, channelID, opts)
	default:
		err = common.NewUserError("Unknown subcommand.", fmt.Sprintf("unknown reactrole subcommand %q", sub))
	}

	if err != nil {
		common.HandleError(s, i, err, true)
		return
	}
	common.FollowUpWithSuccess(s, i, message, true)
}

func (f *Feature) target(defaultChannel int64, opts common.Options) (models.MessageKey, int64, error) {
	messageID, ok := opts.Snowflake("message_id")
	if !ok {
		return models.MessageKey{}, 0, common.NewUserError("That is not a valid message ID or link.", "bad reactrole message id")
	}
	roleID, ok := opts.Snowflake("role")
	if !ok {
		return models.MessageKey{}, 0, common.NewUserError("Please pick a role.", "missing reactrole role")
	}

	channelID := defaultChannel
	if id, ok := opts.Snowflake("channel"); ok {
		channelID = id
	}
	return models.MessageKey{ChannelID: channelID, MessageID: messageID}, roleID, nil
}

func (f *Feature) add(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	key, roleID, err := f.target(defaultChannel, opts)
	if err != nil {
		return "", err
	}

	created, err := f.reactRoles.AddBinding(ctx, key.ChannelID, key.MessageID, opts.String("emoji"), roleID)
	if err != nil {
		return "", common.FromServiceError(err, "failed to add reaction role")
	}

	if !created {
		// Binding already stored; make sure its listeners are live in this process
		if err := f.reattacher.Reattach(ctx, key.ChannelID, key.MessageID); err != nil {
			return "", common.FromServiceError(err, "failed to reattach reaction role")
		}
		return fmt.Sprintf("%s already grants <@&%d> on that message.", opts.String("emoji"), roleID), nil
	}
	return fmt.Sprintf("Reacting with %s now grants <@&%d>.", strings.TrimSpace(opts.String("emoji")), roleID), nil
}

func (f *Feature) remove(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	key, roleID, err := f.target(defaultChannel, opts)
	if err != nil {
		return "", err
	}

	removed, err := f.reactRoles.RemoveBinding(ctx, key.ChannelID, key.MessageID, roleID)
	if err != nil {
		return "", common.FromServiceError(err, "failed to remove reaction role")
	}

	emojis := make([]string, len(removed))
	for n, b := range removed {
		emojis[n] = b.Emoji
	}
	return fmt.Sprintf("<@&%d> is no longer granted by %s.", roleID, strings.Join(emojis, ", ")), nil
}
