package bot

import (
	"context"
	"strconv"

	"herald/bot/common"
	"herald/listeners"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const inactiveButtonReply = "This button is no longer active."

// reactionEvent converts a reaction add or remove into a registry event.
// Returns false when the IDs cannot be parsed.
func reactionEvent(r *discordgo.MessageReaction, member *discordgo.Member, selfID string, added bool) (listeners.Event, bool) {
	channelID, err1 := strconv.ParseInt(r.ChannelID, 10, 64)
	messageID, err2 := strconv.ParseInt(r.MessageID, 10, 64)
	userID, err3 := strconv.ParseInt(r.UserID, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return listeners.Event{}, false
	}

	automated := r.UserID == selfID
	if member != nil && member.User != nil && member.User.Bot {
		automated = true
	}

	return listeners.Event{
		Kind:          listeners.KindReaction,
		ChannelID:     channelID,
		MessageID:     messageID,
		ActorID:       userID,
		Automated:     automated,
		Discriminator: r.Emoji.APIName(),
		Added:         added,
	}, true
}

// componentEvent converts a button click into a registry event
func componentEvent(i *discordgo.InteractionCreate) (listeners.Event, bool) {
	if i.Type != discordgo.InteractionMessageComponent || i.Message == nil {
		return listeners.Event{}, false
	}

	user := common.InteractionUser(i)
	if user == nil {
		return listeners.Event{}, false
	}

	channelID, err1 := strconv.ParseInt(i.ChannelID, 10, 64)
	messageID, err2 := strconv.ParseInt(i.Message.ID, 10, 64)
	userID, err3 := strconv.ParseInt(user.ID, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return listeners.Event{}, false
	}

	return listeners.Event{
		Kind:          listeners.KindComponent,
		ChannelID:     channelID,
		MessageID:     messageID,
		ActorID:       userID,
		Automated:     user.Bot,
		Discriminator: i.MessageComponentData().CustomID,
		Added:         true,
	}, true
}

func (b *Bot) handleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.Member != nil {
		b.rememberBot(r.Member.User)
	}
	ev, ok := reactionEvent(r.MessageReaction, r.Member, b.selfID(s), true)
	if !ok {
		return
	}
	b.recordEvent(EventKindReaction)
	b.registry.Dispatch(context.Background(), ev)
}

func (b *Bot) handleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	ev, ok := reactionEvent(r.MessageReaction, b.removalMember(s, r.MessageReaction), b.selfID(s), false)
	if !ok {
		return
	}
	b.recordEvent(EventKindReaction)
	b.registry.Dispatch(context.Background(), ev)
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := componentEvent(i)
	if !ok {
		return
	}
	b.recordEvent(EventKindComponent)

	// Role grants can take longer than the interaction deadline
	if err := common.DeferResponse(s, i, true); err != nil {
		log.WithError(err).Warn("Failed to defer component interaction")
		return
	}

	ev.Reply = func(ctx context.Context, content string) error {
		return common.FollowUpWithContent(s, i, content)
	}

	if b.registry.Dispatch(context.Background(), ev) == 0 {
		if err := common.FollowUpWithContent(s, i, inactiveButtonReply); err != nil {
			log.WithError(err).Warn("Failed to answer inactive component")
		}
	}
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.rememberBot(m.Author)
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.selfID(s) {
		return
	}

	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		return
	}
	sticky := b.sticky != nil && b.sticky.IsSticky(channelID)
	autoReact := b.autoReact != nil && b.autoReact.IsAutoReact(channelID)
	if !sticky && !autoReact {
		return
	}
	messageID, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return
	}
	b.recordEvent(EventKindMessage)

	ctx := context.Background()
	if autoReact {
		if err := b.autoReact.HandleMessage(ctx, channelID, messageID); err != nil {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"messageID": messageID,
				"error":     err,
			}).Warn("Failed to add automatic reactions")
		}
	}
	if sticky {
		if err := b.sticky.HandleMessage(ctx, channelID, messageID); err != nil {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"error":     err,
			}).Warn("Failed to repost sticky message")
		}
	}
}

// rememberBot records automated users seen on events that carry the user
func (b *Bot) rememberBot(u *discordgo.User) {
	if u != nil && u.Bot {
		b.knownBots.Store(u.ID, struct{}{})
	}
}

// removalMember finds the member behind a reaction removal, which Discord sends
// without one. Bots seen earlier or cached in state are reported as such.
func (b *Bot) removalMember(s *discordgo.Session, r *discordgo.MessageReaction) *discordgo.Member {
	if _, ok := b.knownBots.Load(r.UserID); ok {
		return &discordgo.Member{User: &discordgo.User{ID: r.UserID, Bot: true}}
	}
	if s != nil && s.State != nil && r.GuildID != "" {
		if m, err := s.State.Member(r.GuildID, r.UserID); err == nil {
			return m
		}
	}
	return nil
}

func (b *Bot) selfID(s *discordgo.Session) string {
	if s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}
