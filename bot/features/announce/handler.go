package announce

import (
	"context"
	"fmt"

	"herald/bot/common"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.HasStaffAccess(i.Member, f.staffRoleIDs) {
		common.RespondWithError(s, i, "You need a staff role to send announcements.")
		return
	}

	if err := common.DeferResponse(s, i, true); err != nil {
		log.WithError(err).Error("Failed to defer announce command")
		return
	}

	message, err := f.announce(context.Background(), i.ApplicationCommandData())
	if err != nil {
		common.HandleError(s, i, err, true)
		return
	}
	common.FollowUpWithSuccess(s, i, message, true)
}

func (f *Feature) announce(ctx context.Context, data discordgo.ApplicationCommandInteractionData) (string, error) {
	opts := make(common.Options, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}

	channelID, ok := opts.Snowflake("channel")
	if !ok {
		return "", common.NewUserError("Channel is required.", "announce without a channel")
	}

	req := service.AnnouncementRequest{
		Title:   opts.String("title"),
		Message: opts.String("message"),
		Roles:   opts.String("roles"),
		Users:   opts.String("users"),
	}
	if attachment := resolvedAttachment(data, opts); attachment != nil {
		req.AttachmentURL = attachment.URL
		req.AttachmentType = attachment.ContentType
	}

	if _, err := f.announcer.Announce(ctx, channelID, req); err != nil {
		return "", common.FromServiceError(err, "failed to send announcement")
	}
	return fmt.Sprintf("Announcement sent to <#%d>.", channelID), nil
}

// resolvedAttachment looks up the uploaded file an attachment option refers to
func resolvedAttachment(data discordgo.ApplicationCommandInteractionData, opts common.Options) *discordgo.MessageAttachment {
	opt, ok := opts["attachment"]
	if !ok || data.Resolved == nil {
		return nil
	}
	id, ok := opt.Value.(string)
	if !ok {
		return nil
	}
	return data.Resolved.Attachments[id]
}
