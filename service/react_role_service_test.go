package service

import (
	"context"
	"testing"

	"herald/events"
	"herald/listeners"
	"herald/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reactRoleFixture struct {
	store    *MemoryStore
	gateway  *FakeGateway
	registry *listeners.Registry
	svc      *reactRoleService
	key      models.MessageKey
}

func newReactRoleFixture(t *testing.T) *reactRoleFixture {
	t.Helper()

	f := &reactRoleFixture{
		store:    NewMemoryStore(),
		gateway:  NewFakeGateway(),
		registry: listeners.NewRegistry(),
	}
	f.svc = NewReactRoleService(f.store.Factory(events.NewBus()), f.gateway, f.registry, nil).(*reactRoleService)
	f.key = models.MessageKey{ChannelID: testChannelID, MessageID: f.gateway.AddMessage(testChannelID)}
	return f
}

func (f *reactRoleFixture) react(userID int64, emoji string, added bool) int {
	return f.registry.Dispatch(context.Background(), listeners.Event{
		Kind:          listeners.KindReaction,
		ChannelID:     f.key.ChannelID,
		MessageID:     f.key.MessageID,
		ActorID:       userID,
		Discriminator: emoji,
		Added:         added,
	})
}

func (f *reactRoleFixture) storedBindings(t *testing.T) []models.ReactRoleBinding {
	t.Helper()

	uow := f.store.Factory(nil).Create()
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()

	msg, err := uow.ReactRoleRepository().GetByMessage(context.Background(), f.key)
	require.NoError(t, err)
	if msg == nil {
		return nil
	}
	return msg.Bindings
}

func TestAddBinding_Idempotent(t *testing.T) {
	f := newReactRoleFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, "✅", 10)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, " ✅ ", 10)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []models.ReactRoleBinding{{Emoji: "✅", RoleID: 10}}, f.storedBindings(t))
	assert.Equal(t, 1, f.registry.Count())

	reactions := f.gateway.Reactions(f.key, "✅")
	require.Len(t, reactions, 1)
	assert.True(t, reactions[0].Bot)
}

func TestAddBinding_NormalizesCustomEmoji(t *testing.T) {
	f := newReactRoleFixture(t)

	_, err := f.svc.AddBinding(context.Background(), f.key.ChannelID, f.key.MessageID, "<:pepe:123456>", 10)
	require.NoError(t, err)

	assert.Equal(t, []models.ReactRoleBinding{{Emoji: "pepe:123456", RoleID: 10}}, f.storedBindings(t))
}

func TestAddBinding_Validation(t *testing.T) {
	f := newReactRoleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, "  ", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, "✅", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Nil(t, f.storedBindings(t))
}

func TestAddBinding_MissingMessage(t *testing.T) {
	f := newReactRoleFixture(t)

	_, err := f.svc.AddBinding(context.Background(), testChannelID, 424242, "✅", 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.registry.Count())
}

func TestReactRoleListener_GrantsAndRevokes(t *testing.T) {
	f := newReactRoleFixture(t)

	_, err := f.svc.AddBinding(context.Background(), f.key.ChannelID, f.key.MessageID, "✅", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, f.react(101, "✅", true))
	assert.True(t, f.gateway.HasRole(101, 10))
	assert.Equal(t, 1, f.gateway.RoleMutations())

	// Already held, nothing to do
	f.react(101, "✅", true)
	assert.Equal(t, 1, f.gateway.RoleMutations())

	f.react(101, "✅", false)
	assert.False(t, f.gateway.HasRole(101, 10))
	assert.Equal(t, 2, f.gateway.RoleMutations())

	// Other emoji and automated actors are filtered out
	assert.Equal(t, 0, f.react(102, "🔥", true))
	assert.Equal(t, 0, f.registry.Dispatch(context.Background(), listeners.Event{
		Kind:          listeners.KindReaction,
		ChannelID:     f.key.ChannelID,
		MessageID:     f.key.MessageID,
		ActorID:       FakeBotUserID,
		Automated:     true,
		Discriminator: "✅",
		Added:         true,
	}))
	assert.Equal(t, 2, f.gateway.RoleMutations())
}

func TestReactRoleListener_GatewayFailureIsContained(t *testing.T) {
	f := newReactRoleFixture(t)

	_, err := f.svc.AddBinding(context.Background(), f.key.ChannelID, f.key.MessageID, "✅", 10)
	require.NoError(t, err)

	f.gateway.SetUnavailable(true)
	f.react(101, "✅", true)
	f.gateway.SetUnavailable(false)

	assert.False(t, f.gateway.HasRole(101, 10))

	f.react(102, "✅", true)
	assert.True(t, f.gateway.HasRole(102, 10))
}

func TestRemoveBinding_LastBindingDetachesListener(t *testing.T) {
	f := newReactRoleFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, "✅", 10)
	require.NoError(t, err)

	removed, err := f.svc.RemoveBinding(ctx, f.key.ChannelID, f.key.MessageID, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.ReactRoleBinding{{Emoji: "✅", RoleID: 10}}, removed)

	assert.Nil(t, f.storedBindings(t))
	assert.Equal(t, 0, f.registry.Count())
	assert.Empty(t, f.gateway.Reactions(f.key, "✅"))

	// Synthetic reaction events no longer mutate roles
	assert.Equal(t, 0, f.react(101, "✅", true))
	assert.Equal(t, 0, f.gateway.RoleMutations())
}

func TestRemoveBinding_KeepsSharedEmojiReaction(t *testing.T) {
	f := newReactRoleFixture(t)
	ctx := context.Background()

	for _, b := range []models.ReactRoleBinding{
		{Emoji: "✅", RoleID: 10},
		{Emoji: "✅", RoleID: 20},
		{Emoji: "🔥", RoleID: 10},
	} {
		_, err := f.svc.AddBinding(ctx, f.key.ChannelID, f.key.MessageID, b.Emoji, b.RoleID)
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.registry.Count())

	removed, err := f.svc.RemoveBinding(ctx, f.key.ChannelID, f.key.MessageID, 10)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	assert.Equal(t, []models.ReactRoleBinding{{Emoji: "✅", RoleID: 20}}, f.storedBindings(t))
	assert.Equal(t, 1, f.registry.Count())
	assert.NotEmpty(t, f.gateway.Reactions(f.key, "✅"))
	assert.Empty(t, f.gateway.Reactions(f.key, "🔥"))

	f.react(101, "✅", true)
	assert.True(t, f.gateway.HasRole(101, 20))
	assert.False(t, f.gateway.HasRole(101, 10))
}

func TestRemoveBinding_UnknownRole(t *testing.T) {
	f := newReactRoleFixture(t)

	_, err := f.svc.RemoveBinding(context.Background(), f.key.ChannelID, f.key.MessageID, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachAndDetachMessage(t *testing.T) {
	f := newReactRoleFixture(t)

	msg := &models.ReactRoleMessage{
		ChannelID: f.key.ChannelID,
		MessageID: f.key.MessageID,
		Bindings: []models.ReactRoleBinding{
			{Emoji: "✅", RoleID: 10},
			{Emoji: "🔥", RoleID: 20},
		},
	}

	f.svc.AttachMessage(msg)
	f.svc.AttachMessage(msg)
	assert.Equal(t, 2, f.registry.Count())

	assert.Equal(t, 2, f.svc.DetachMessage(f.key))
	assert.Equal(t, 0, f.registry.Count())
	assert.Equal(t, 0, f.svc.DetachMessage(f.key))
}
