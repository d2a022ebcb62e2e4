package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"herald/bot/common"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.HasStaffAccess(i.Member, f.staffRoleIDs) {
		common.RespondWithError(s, i, "You need a staff role to manage verification.")
		return
	}

	sub, opts := common.SubcommandOptions(i.ApplicationCommandData())
	channelID, _ := strconv.ParseInt(i.ChannelID, 10, 64)

	if err := common.DeferResponse(s, i, true); err != nil {
		log.WithError(err).Error("Failed to defer verification command")
		return
	}

	ctx := context.Background()
	var (
		message string
		err     error
	)
	switch sub {
	case "post":
		message, err = f.post(ctx, channelID, opts)
	case "remove":
		message, err = f.remove(ctx)
	case "status":
		message, err = f.status(ctx)
	default:
		err = common.NewUserError("Unknown subcommand.", fmt.Sprintf("unknown verification subcommand %q", sub))
	}

	if err != nil {
		common.HandleError(s, i, err, true)
		return
	}
	common.FollowUpWithSuccess(s, i, message, true)
}

func (f *Feature) post(ctx context.Context, defaultChannel int64, opts common.Options) (string, error) {
	channelID := defaultChannel
	if id, ok := opts.Snowflake("channel"); ok {
		channelID = id
	}

	prompt, err := f.verification.PostPrompt(ctx, channelID)
	if err != nil {
		botErr := common.FromServiceError(err, "failed to post verification prompt")
		if errors.Is(err, service.ErrDuplicateKey) {
			botErr.UserMessage = "A verification prompt is already posted. Remove it first."
		}
		return "", botErr
	}

	key, _ := prompt.Key()
	return fmt.Sprintf("Verification prompt posted in <#%d>.", key.ChannelID), nil
}

func (f *Feature) remove(ctx context.Context) (string, error) {
	if err := f.verification.ClearVerificationPrompt(ctx); err != nil {
		botErr := common.FromServiceError(err, "failed to remove verification prompt")
		if errors.Is(err, service.ErrNotFound) {
			botErr.UserMessage = "No verification prompt is posted."
		}
		return "", botErr
	}
	return "Verification prompt removed.", nil
}

func (f *Feature) status(ctx context.Context) (string, error) {
	prompt, err := f.verification.GetPrompt(ctx)
	if err != nil {
		return "", common.FromServiceError(err, "failed to read verification prompt")
	}

	key, ok := prompt.Key()
	if !ok {
		return "No verification prompt is posted.", nil
	}
	return fmt.Sprintf("Verification prompt is live in <#%d> (message `%d`).", key.ChannelID, key.MessageID), nil
}
