package bot

import (
	"context"
	"strconv"
	"testing"

	"herald/listeners"
	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionEvent(t *testing.T) {
	r := &discordgo.MessageReaction{
		UserID:    "101",
		ChannelID: "500",
		MessageID: "600",
		Emoji:     discordgo.Emoji{Name: "✅"},
	}

	ev, ok := reactionEvent(r, &discordgo.Member{User: &discordgo.User{ID: "101"}}, "1", true)
	require.True(t, ok)
	assert.Equal(t, listeners.Event{
		Kind:          listeners.KindReaction,
		ChannelID:     500,
		MessageID:     600,
		ActorID:       101,
		Discriminator: "✅",
		Added:         true,
	}, ev)

	t.Run("custom emoji uses API name", func(t *testing.T) {
		custom := *r
		custom.Emoji = discordgo.Emoji{ID: "123456", Name: "pepe"}
		ev, ok := reactionEvent(&custom, nil, "1", false)
		require.True(t, ok)
		assert.Equal(t, "pepe:123456", ev.Discriminator)
		assert.False(t, ev.Added)
	})

	t.Run("own reactions are automated", func(t *testing.T) {
		own := *r
		own.UserID = "1"
		ev, ok := reactionEvent(&own, nil, "1", true)
		require.True(t, ok)
		assert.True(t, ev.Automated)
	})

	t.Run("other bots are automated", func(t *testing.T) {
		ev, ok := reactionEvent(r, &discordgo.Member{User: &discordgo.User{ID: "101", Bot: true}}, "1", true)
		require.True(t, ok)
		assert.True(t, ev.Automated)
	})

	t.Run("bad ids", func(t *testing.T) {
		bad := *r
		bad.MessageID = "x"
		_, ok := reactionEvent(&bad, nil, "1", true)
		assert.False(t, ok)
	})
}

func TestRemovalMember(t *testing.T) {
	b := &Bot{}
	removal := &discordgo.MessageReaction{GuildID: "1", UserID: "202", ChannelID: "500", MessageID: "600", Emoji: discordgo.Emoji{Name: "✅"}}

	t.Run("unknown user", func(t *testing.T) {
		assert.Nil(t, b.removalMember(&discordgo.Session{}, removal))

		ev, ok := reactionEvent(removal, b.removalMember(&discordgo.Session{}, removal), "1", false)
		require.True(t, ok)
		assert.False(t, ev.Automated)
	})

	t.Run("bot seen on an earlier reaction", func(t *testing.T) {
		b.rememberBot(&discordgo.User{ID: "202", Bot: true})
		b.rememberBot(&discordgo.User{ID: "303"})
		b.rememberBot(nil)

		ev, ok := reactionEvent(removal, b.removalMember(nil, removal), "1", false)
		require.True(t, ok)
		assert.True(t, ev.Automated)

		human := *removal
		human.UserID = "303"
		assert.Nil(t, b.removalMember(nil, &human))
	})

	t.Run("bot cached in state", func(t *testing.T) {
		state := discordgo.NewState()
		require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "1"}))
		require.NoError(t, state.MemberAdd(&discordgo.Member{GuildID: "1", User: &discordgo.User{ID: "404", Bot: true}}))

		cached := *removal
		cached.UserID = "404"
		ev, ok := reactionEvent(&cached, (&Bot{}).removalMember(&discordgo.Session{State: state}, &cached), "1", false)
		require.True(t, ok)
		assert.True(t, ev.Automated)
	})
}

func TestComponentEvent(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "500",
		Message:   &discordgo.Message{ID: "600"},
		Member:    &discordgo.Member{User: &discordgo.User{ID: "101"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: service.VerifyButtonID},
	}}

	ev, ok := componentEvent(i)
	require.True(t, ok)
	assert.Equal(t, listeners.KindComponent, ev.Kind)
	assert.Equal(t, int64(500), ev.ChannelID)
	assert.Equal(t, int64(600), ev.MessageID)
	assert.Equal(t, int64(101), ev.ActorID)
	assert.Equal(t, service.VerifyButtonID, ev.Discriminator)
	assert.True(t, ev.Added)
	assert.False(t, ev.Automated)

	cmd := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: discordgo.InteractionApplicationCommand}}
	_, ok = componentEvent(cmd)
	assert.False(t, ok)
}

func TestHandleMessageCreate_AutoReact(t *testing.T) {
	gateway := service.NewFakeGateway()
	sticky := service.NewStickyService(service.NewMemoryStore().Factory(nil), gateway, []int64{500}, "Stay on topic")
	require.NoError(t, sticky.Initialize(context.Background()))
	b := &Bot{
		sticky:    sticky,
		autoReact: service.NewAutoReactService(gateway, []int64{500, 501}, []string{"❤️"}),
	}

	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: "1"}

	post := func(channelID int64, author *discordgo.User) models.MessageKey {
		messageID := gateway.AddMessage(channelID)
		b.handleMessageCreate(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        strconv.FormatInt(messageID, 10),
			ChannelID: strconv.FormatInt(channelID, 10),
			Author:    author,
		}})
		return models.MessageKey{ChannelID: channelID, MessageID: messageID}
	}

	human := &discordgo.User{ID: "101"}

	key := post(500, human)
	assert.Len(t, gateway.Reactions(key, "❤️"), 1)
	assert.Len(t, gateway.Sent(), 1, "sticky channel also gets its notice")

	key = post(501, human)
	assert.Len(t, gateway.Reactions(key, "❤️"), 1)
	assert.Len(t, gateway.Sent(), 1)

	key = post(501, &discordgo.User{ID: "202", Bot: true})
	assert.Empty(t, gateway.Reactions(key, "❤️"))

	key = post(502, human)
	assert.Empty(t, gateway.Reactions(key, "❤️"))
}
