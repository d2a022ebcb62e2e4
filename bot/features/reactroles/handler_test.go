package reactroles

import (
	"context"
	"fmt"
	"testing"

	"herald/bot/common"
	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReactRoleService struct {
	mock.Mock
}

func (m *mockReactRoleService) AddBinding(ctx context.Context, channelID, messageID int64, emoji string, roleID int64) (bool, error) {
	args := m.Called(ctx, channelID, messageID, emoji, roleID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReactRoleService) RemoveBinding(ctx context.Context, channelID, messageID int64, roleID int64) ([]models.ReactRoleBinding, error) {
	args := m.Called(ctx, channelID, messageID, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReactRoleBinding), args.Error(1)
}

func (m *mockReactRoleService) AttachMessage(msg *models.ReactRoleMessage) {
	m.Called(msg)
}

func (m *mockReactRoleService) DetachMessage(key models.MessageKey) int {
	return m.Called(key).Int(0)
}

type mockReattacher struct {
	mock.Mock
}

func (m *mockReattacher) Reattach(ctx context.Context, channelID, messageID int64) error {
	return m.Called(ctx, channelID, messageID).Error(0)
}

func options(emoji string) common.Options {
	opts := common.Options{
		"message_id": {Name: "message_id", Type: discordgo.ApplicationCommandOptionString, Value: "600"},
		"role":       {Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "42"},
	}
	if emoji != "" {
		opts["emoji"] = &discordgo.ApplicationCommandInteractionDataOption{Name: "emoji", Type: discordgo.ApplicationCommandOptionString, Value: emoji}
	}
	return opts
}

func TestAdd_NewBinding(t *testing.T) {
	svc := new(mockReactRoleService)
	reattacher := new(mockReattacher)
	f := NewFeature(svc, reattacher, nil)

	svc.On("AddBinding", mock.Anything, int64(500), int64(600), "✅", int64(42)).Return(true, nil)

	msg, err := f.add(context.Background(), 500, options("✅"))
	require.NoError(t, err)
	assert.Equal(t, "Reacting with ✅ now grants <@&42>.", msg)
	reattacher.AssertNotCalled(t, "Reattach", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdd_ExistingBindingReattaches(t *testing.T) {
	svc := new(mockReactRoleService)
	reattacher := new(mockReattacher)
	f := NewFeature(svc, reattacher, nil)

	svc.On("AddBinding", mock.Anything, int64(500), int64(600), "✅", int64(42)).Return(false, nil)
	reattacher.On("Reattach", mock.Anything, int64(500), int64(600)).Return(nil).Once()

	msg, err := f.add(context.Background(), 500, options("✅"))
	require.NoError(t, err)
	assert.Contains(t, msg, "already grants")
	reattacher.AssertExpectations(t)
}

func TestAdd_MissingMessage(t *testing.T) {
	svc := new(mockReactRoleService)
	f := NewFeature(svc, new(mockReattacher), nil)

	svc.On("AddBinding", mock.Anything, int64(500), int64(600), "✅", int64(42)).
		Return(false, fmt.Errorf("fetch message: %w", service.ErrNotFound))

	_, err := f.add(context.Background(), 500, options("✅"))
	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "That message or campaign no longer exists.", botErr.UserMessage)
}

func TestRemove(t *testing.T) {
	svc := new(mockReactRoleService)
	f := NewFeature(svc, new(mockReattacher), nil)

	svc.On("RemoveBinding", mock.Anything, int64(500), int64(600), int64(42)).
		Return([]models.ReactRoleBinding{{Emoji: "✅", RoleID: 42}, {Emoji: "🔥", RoleID: 42}}, nil)

	msg, err := f.remove(context.Background(), 500, options(""))
	require.NoError(t, err)
	assert.Equal(t, "<@&42> is no longer granted by ✅, 🔥.", msg)
}

func TestTarget_Validation(t *testing.T) {
	f := NewFeature(new(mockReactRoleService), new(mockReattacher), nil)

	_, _, err := f.target(500, common.Options{})
	assert.Error(t, err)

	opts := options("")
	delete(opts, "role")
	_, _, err = f.target(500, opts)
	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "Please pick a role.", botErr.UserMessage)
}
