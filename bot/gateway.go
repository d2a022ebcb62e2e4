package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
)

// reactionPageSize is the largest page Discord returns for reaction users
const reactionPageSize = 100

// restSession is the part of *discordgo.Session the gateway uses
type restSession interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveEmoji(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Gateway adapts a discordgo session to service.Gateway for a single guild
type Gateway struct {
	session restSession
	guildID string
}

// NewGateway creates a gateway bound to one guild
func NewGateway(session restSession, guildID string) *Gateway {
	return &Gateway{session: session, guildID: guildID}
}

var _ service.Gateway = (*Gateway)(nil)

// translateError maps discordgo failures onto the service error taxonomy
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage,
				discordgo.ErrCodeUnknownChannel,
				discordgo.ErrCodeUnknownMember,
				discordgo.ErrCodeUnknownRole,
				discordgo.ErrCodeUnknownEmoji:
				return fmt.Errorf("%s: %w: %v", op, service.ErrNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %v", op, service.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, service.ErrExternalUnavailable, err)
}

func snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// FetchMessage checks that a message still exists
func (g *Gateway) FetchMessage(ctx context.Context, channelID, messageID int64) error {
	_, err := g.session.ChannelMessage(snowflake(channelID), snowflake(messageID), discordgo.WithContext(ctx))
	return translateError(err, "fetch message")
}

// SendMessage posts an announcement and returns the new message ID
func (g *Gateway) SendMessage(ctx context.Context, channelID int64, msg *models.Announcement) (int64, error) {
	sent, err := g.session.ChannelMessageSendComplex(snowflake(channelID), toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return 0, translateError(err, "send message")
	}

	id, err := strconv.ParseInt(sent.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("send message: %w: bad message id %q", service.ErrExternalUnavailable, sent.ID)
	}
	return id, nil
}

// DeleteMessage deletes a message
func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	err := g.session.ChannelMessageDelete(snowflake(channelID), snowflake(messageID), discordgo.WithContext(ctx))
	return translateError(err, "delete message")
}

// React adds the bot's reaction to a message
func (g *Gateway) React(ctx context.Context, channelID, messageID int64, emoji string) error {
	err := g.session.MessageReactionAdd(snowflake(channelID), snowflake(messageID), emoji, discordgo.WithContext(ctx))
	return translateError(err, "add reaction")
}

// RemoveReaction removes every reaction with the emoji from a message
func (g *Gateway) RemoveReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	err := g.session.MessageReactionsRemoveEmoji(snowflake(channelID), snowflake(messageID), emoji, discordgo.WithContext(ctx))
	return translateError(err, "remove reaction")
}

// FetchReactionUsers pages through every user who reacted with the emoji
func (g *Gateway) FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji string) ([]models.Participant, error) {
	var (
		participants []models.Participant
		after        string
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch reactions: %w: %v", service.ErrExternalUnavailable, err)
		}

		users, err := g.session.MessageReactions(snowflake(channelID), snowflake(messageID), emoji, reactionPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, translateError(err, "fetch reactions")
		}

		for _, u := range users {
			id, err := strconv.ParseInt(u.ID, 10, 64)
			if err != nil {
				continue
			}
			participants = append(participants, models.Participant{UserID: id, Bot: u.Bot})
		}

		if len(users) < reactionPageSize {
			return participants, nil
		}
		after = users[len(users)-1].ID
	}
}

// MemberHasRole reports whether a member currently holds a role
func (g *Gateway) MemberHasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	member, err := g.session.GuildMember(g.guildID, snowflake(userID), discordgo.WithContext(ctx))
	if err != nil {
		return false, translateError(err, "fetch member")
	}

	want := snowflake(roleID)
	for _, r := range member.Roles {
		if r == want {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole adds a role to a member
func (g *Gateway) GrantRole(ctx context.Context, userID, roleID int64) error {
	err := g.session.GuildMemberRoleAdd(g.guildID, snowflake(userID), snowflake(roleID), discordgo.WithContext(ctx))
	return translateError(err, "grant role")
}

// RevokeRole removes a role from a member
func (g *Gateway) RevokeRole(ctx context.Context, userID, roleID int64) error {
	err := g.session.GuildMemberRoleRemove(g.guildID, snowflake(userID), snowflake(roleID), discordgo.WithContext(ctx))
	return translateError(err, "revoke role")
}

// toMessageSend renders an announcement. Only the listed roles and users may be pinged.
func toMessageSend(a *models.Announcement) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: a.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}

	for _, id := range a.MentionRoleIDs {
		send.AllowedMentions.Roles = append(send.AllowedMentions.Roles, snowflake(id))
	}
	for _, id := range a.MentionUserIDs {
		send.AllowedMentions.Users = append(send.AllowedMentions.Users, snowflake(id))
	}

	if a.Title != "" || a.Description != "" {
		embed := &discordgo.MessageEmbed{
			Title:       a.Title,
			Description: a.Description,
			Color:       a.Color,
		}
		if a.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: a.Footer}
		}
		if a.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: a.ImageURL}
		}
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}

	if a.Button != nil {
		button := discordgo.Button{
			CustomID: a.Button.CustomID,
			Label:    a.Button.Label,
			Style:    discordgo.SuccessButton,
		}
		if a.Button.Emoji != "" {
			button.Emoji = &discordgo.ComponentEmoji{Name: a.Button.Emoji}
		}
		send.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{button}},
		}
	}

	return send
}
