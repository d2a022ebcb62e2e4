package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession implements restSession over in-memory state
type fakeSession struct {
	messages  map[string]bool
	reactors  []*discordgo.User
	pageCalls []string
	roles     map[string][]string
	err       error
	lastSend  *discordgo.MessageSend
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages: make(map[string]bool),
		roles:    make(map[string][]string),
	}
}

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "error"},
	}
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.messages[messageID] {
		return nil, restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastSend = data
	return &discordgo.Message{ID: "9001", ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	return f.err
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return f.err
}

func (f *fakeSession) MessageReactionsRemoveEmoji(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return f.err
}

func (f *fakeSession) MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pageCalls = append(f.pageCalls, afterID)

	start := 0
	if afterID != "" {
		for i, u := range f.reactors {
			if u.ID == afterID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(f.reactors) {
		end = len(f.reactors)
	}
	return f.reactors[start:end], nil
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	roles, ok := f.roles[userID]
	if !ok {
		return nil, restError(http.StatusNotFound, discordgo.ErrCodeUnknownMember)
	}
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles}, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	return f.err
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown message", err: restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage), want: service.ErrNotFound},
		{name: "unknown channel", err: restError(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), want: service.ErrNotFound},
		{name: "plain 404", err: restError(http.StatusNotFound, 0), want: service.ErrNotFound},
		{name: "missing permissions", err: restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), want: service.ErrExternalUnavailable},
		{name: "server error", err: restError(http.StatusBadGateway, 0), want: service.ErrExternalUnavailable},
		{name: "transport", err: errors.New("connection reset"), want: service.ErrExternalUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err, "op"), tt.want)
		})
	}

	assert.NoError(t, translateError(nil, "op"))
}

func TestGateway_FetchMessage(t *testing.T) {
	session := newFakeSession()
	session.messages["20"] = true
	gw := NewGateway(session, "1")

	assert.NoError(t, gw.FetchMessage(context.Background(), 10, 20))
	assert.ErrorIs(t, gw.FetchMessage(context.Background(), 10, 21), service.ErrNotFound)

	session.err = errors.New("timeout")
	assert.ErrorIs(t, gw.FetchMessage(context.Background(), 10, 20), service.ErrExternalUnavailable)
}

func TestGateway_FetchReactionUsersPaginates(t *testing.T) {
	session := newFakeSession()
	for i := 1; i <= 250; i++ {
		session.reactors = append(session.reactors, &discordgo.User{ID: fmt.Sprint(i), Bot: i == 1})
	}
	gw := NewGateway(session, "1")

	participants, err := gw.FetchReactionUsers(context.Background(), 10, 20, "🎉")
	require.NoError(t, err)

	assert.Len(t, participants, 250)
	assert.Equal(t, []string{"", "100", "200"}, session.pageCalls)
	assert.Equal(t, models.Participant{UserID: 1, Bot: true}, participants[0])
	assert.Equal(t, models.Participant{UserID: 250}, participants[249])
}

func TestGateway_FetchReactionUsersExactPage(t *testing.T) {
	session := newFakeSession()
	for i := 1; i <= 100; i++ {
		session.reactors = append(session.reactors, &discordgo.User{ID: fmt.Sprint(i)})
	}
	gw := NewGateway(session, "1")

	participants, err := gw.FetchReactionUsers(context.Background(), 10, 20, "🎉")
	require.NoError(t, err)
	assert.Len(t, participants, 100)
	assert.Equal(t, []string{"", "100"}, session.pageCalls)
}

func TestGateway_Roles(t *testing.T) {
	session := newFakeSession()
	session.roles["5"] = []string{"77"}
	gw := NewGateway(session, "1")
	ctx := context.Background()

	has, err := gw.MemberHasRole(ctx, 5, 77)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = gw.MemberHasRole(ctx, 5, 78)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, gw.GrantRole(ctx, 5, 78))
	has, err = gw.MemberHasRole(ctx, 5, 78)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = gw.MemberHasRole(ctx, 6, 77)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGateway_SendMessage(t *testing.T) {
	session := newFakeSession()
	gw := NewGateway(session, "1")

	id, err := gw.SendMessage(context.Background(), 10, &models.Announcement{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)

	session.err = restError(http.StatusInternalServerError, 0)
	_, err = gw.SendMessage(context.Background(), 10, &models.Announcement{Content: "hi"})
	assert.ErrorIs(t, err, service.ErrExternalUnavailable)
}

func TestToMessageSend(t *testing.T) {
	t.Run("embed with restricted mentions", func(t *testing.T) {
		send := toMessageSend(&models.Announcement{
			Content:        "<@&42>",
			Title:          "🎉 GIVEAWAY ENDED 🎉",
			Description:    "**Winner(s):** <@7>",
			Color:          0x57F287,
			Footer:         "Ended",
			MentionRoleIDs: []int64{42},
			MentionUserIDs: []int64{7},
		})

		assert.Equal(t, "<@&42>", send.Content)
		require.Len(t, send.Embeds, 1)
		assert.Equal(t, "🎉 GIVEAWAY ENDED 🎉", send.Embeds[0].Title)
		assert.Equal(t, "Ended", send.Embeds[0].Footer.Text)
		assert.Empty(t, send.AllowedMentions.Parse)
		assert.Equal(t, []string{"42"}, send.AllowedMentions.Roles)
		assert.Equal(t, []string{"7"}, send.AllowedMentions.Users)
		assert.Empty(t, send.Components)
	})

	t.Run("plain content has no embed", func(t *testing.T) {
		send := toMessageSend(&models.Announcement{Content: "Stay on topic"})
		assert.Empty(t, send.Embeds)
		assert.Empty(t, send.AllowedMentions.Users)
	})

	t.Run("embed image", func(t *testing.T) {
		send := toMessageSend(&models.Announcement{
			Title:    "Patch notes",
			ImageURL: "https://cdn.example.com/banner.png",
		})

		require.Len(t, send.Embeds, 1)
		require.NotNil(t, send.Embeds[0].Image)
		assert.Equal(t, "https://cdn.example.com/banner.png", send.Embeds[0].Image.URL)
	})

	t.Run("button", func(t *testing.T) {
		send := toMessageSend(&models.Announcement{
			Title:  "Verify",
			Button: &models.AnnouncementButton{CustomID: service.VerifyButtonID, Label: "Verify", Emoji: "✅"},
		})

		require.Len(t, send.Components, 1)
		row, ok := send.Components[0].(discordgo.ActionsRow)
		require.True(t, ok)
		require.Len(t, row.Components, 1)
		button, ok := row.Components[0].(discordgo.Button)
		require.True(t, ok)
		assert.Equal(t, service.VerifyButtonID, button.CustomID)
		assert.Equal(t, "✅", button.Emoji.Name)
	})
}
