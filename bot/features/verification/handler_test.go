package verification

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

type mockVerificationService struct {
	mock.Mock
}

func (m *mockVerificationService) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockVerificationService) PostPrompt(ctx context.Context, channelID int64) (*models.VerificationPrompt, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationPrompt), args.Error(1)
}

func (m *mockVerificationService) SetVerificationPrompt(ctx context.Context, channelID, messageID int64) (*models.VerificationPrompt, error) {
	args := m.Called(ctx, channelID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationPrompt), args.Error(1)
}

func (m *mockVerificationService) ClearVerificationPrompt(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockVerificationService) GetPrompt(ctx context.Context) (*models.VerificationPrompt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationPrompt), args.Error(1)
}

func (m *mockVerificationService) AttachPrompt(prompt *models.VerificationPrompt) {
	m.Called(prompt)
}

func livePrompt(channelID, messageID int64) *models.VerificationPrompt {
	return &models.VerificationPrompt{Present: true, ChannelID: &channelID, MessageID: &messageID}
}

func TestPost(t *testing.T) {
	svc := new(mockVerificationService)
	f := NewFeature(svc, nil)

	svc.On("PostPrompt", mock.Anything, int64(800)).Return(livePrompt(800, 900), nil)

	opts := common.Options{"channel": {Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "800"}}
	msg, err := f.post(context.Background(), 500, opts)
	require.NoError(t, err)
	assert.Equal(t, "Verification prompt posted in <#800>.", msg)
}

func TestPost_AlreadyPosted(t *testing.T) {
	svc := new(mockVerificationService)
	f := NewFeature(svc, nil)

	svc.On("PostPrompt", mock.Anything, int64(500)).Return(nil, fmt.Errorf("verification prompt: %w", service.ErrDuplicateKey))

	_, err := f.post(context.Background(), 500, common.Options{})
	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "A verification prompt is already posted. Remove it first.", botErr.UserMessage)
}

func TestRemove(t *testing.T) {
	svc := new(mockVerificationService)
	f := NewFeature(svc, nil)

	svc.On("ClearVerificationPrompt", mock.Anything).Return(nil).Once()
	msg, err := f.remove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Verification prompt removed.", msg)

	svc.On("ClearVerificationPrompt", mock.Anything).Return(fmt.Errorf("verification prompt: %w", service.ErrNotFound)).Once()
	_, err = f.remove(context.Background())
	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "No verification prompt is posted.", botErr.UserMessage)
}

func TestStatus(t *testing.T) {
	svc := new(mockVerificationService)
	f := NewFeature(svc, nil)

	svc.On("GetPrompt", mock.Anything).Return(&models.VerificationPrompt{}, nil).Once()
	msg, err := f.status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No verification prompt is posted.", msg)

	svc.On("GetPrompt", mock.Anything).Return(livePrompt(800, 900), nil).Once()
	msg, err = f.status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Verification prompt is live in <#800> (message `900`).", msg)
}
