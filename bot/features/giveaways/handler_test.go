package giveaways

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"herald/bot/common"
	"herald/models"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGiveawayService struct {
	mock.Mock
}

func (m *mockGiveawayService) CreateGiveaway(ctx context.Context, channelID int64, prize string, winnerCount int, deadline time.Time) (*models.Giveaway, error) {
	args := m.Called(ctx, channelID, prize, winnerCount, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *mockGiveawayService) DeleteGiveaway(ctx context.Context, key models.MessageKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockGiveawayService) ExtendGiveaway(ctx context.Context, key models.MessageKey, deadline time.Time) (*models.Giveaway, error) {
	args := m.Called(ctx, key, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *mockGiveawayService) ListGiveaways(ctx context.Context) ([]*models.Giveaway, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Giveaway), args.Error(1)
}

func (m *mockGiveawayService) ResolveGiveaway(ctx context.Context, key models.MessageKey) (*models.GiveawayResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GiveawayResult), args.Error(1)
}

func (m *mockGiveawayService) Arm(giveaway *models.Giveaway) {
	m.Called(giveaway)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestFeature(svc service.GiveawayService) *Feature {
	f := NewFeature(svc, []int64{900001})
	f.now = func() time.Time { return testNow }
	return f
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func channelOpt(v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: v}
}

func options(opts ...*discordgo.ApplicationCommandInteractionDataOption) common.Options {
	out := make(common.Options)
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

func TestStart(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	deadline := testNow.Add(26 * time.Hour)
	svc.On("CreateGiveaway", mock.Anything, int64(777), "Nitro", 2, deadline).
		Return(&models.Giveaway{ChannelID: 777, MessageID: 1, Prize: "Nitro", WinnerCount: 2, Deadline: deadline}, nil)

	msg, err := f.start(context.Background(), 500, options(
		strOpt("prize", "Nitro"), intOpt("winners", 2), channelOpt("777"), intOpt("days", 1), intOpt("hours", 2),
	))
	require.NoError(t, err)
	assert.Contains(t, msg, "**Nitro**")
	assert.Contains(t, msg, "<#777>")
	assert.Contains(t, msg, fmt.Sprintf("<t:%d:R>", deadline.Unix()))
	svc.AssertExpectations(t)
}

func TestStart_DefaultsToCurrentChannel(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	deadline := testNow.Add(30 * time.Minute)
	svc.On("CreateGiveaway", mock.Anything, int64(500), "Nitro", 1, deadline).
		Return(&models.Giveaway{ChannelID: 500, Prize: "Nitro", WinnerCount: 1, Deadline: deadline}, nil)

	_, err := f.start(context.Background(), 500, options(strOpt("prize", "Nitro"), intOpt("winners", 1), intOpt("minutes", 30)))
	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestStart_ZeroDurationIsRejected(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	_, err := f.start(context.Background(), 500, options(strOpt("prize", "Nitro"), intOpt("winners", 1)))

	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "Duration must be at least one minute", botErr.UserMessage)
	svc.AssertNotCalled(t, "CreateGiveaway", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_ValidationFromService(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	svc.On("CreateGiveaway", mock.Anything, int64(500), "x", 1, testNow.Add(time.Hour)).
		Return(nil, fmt.Errorf("%w: prize must be between 2 and 50 characters", service.ErrInvalidInput))

	_, err := f.start(context.Background(), 500, options(strOpt("prize", "x"), intOpt("winners", 1), intOpt("hours", 1)))

	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "Prize must be between 2 and 50 characters", botErr.UserMessage)
}

func TestDelete(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	key := models.MessageKey{ChannelID: 500, MessageID: 600}
	svc.On("DeleteGiveaway", mock.Anything, key).Return(nil).Once()
	svc.On("DeleteGiveaway", mock.Anything, models.MessageKey{ChannelID: 500, MessageID: 601}).
		Return(fmt.Errorf("giveaway: %w", service.ErrNotFound)).Once()

	msg, err := f.delete(context.Background(), 500, options(strOpt("message_id", "600")))
	require.NoError(t, err)
	assert.Equal(t, "Giveaway deleted.", msg)

	_, err = f.delete(context.Background(), 500, options(strOpt("message_id", "https://discord.com/channels/1/500/601")))
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.delete(context.Background(), 500, options(strOpt("message_id", "nope")))
	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "That is not a valid message ID or link.", botErr.UserMessage)

	svc.AssertExpectations(t)
}

func TestExtend(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	key := models.MessageKey{ChannelID: 800, MessageID: 600}
	deadline := testNow.Add(3 * time.Hour)
	svc.On("ExtendGiveaway", mock.Anything, key, deadline).
		Return(&models.Giveaway{ChannelID: 800, MessageID: 600, Prize: "Nitro", Deadline: deadline}, nil)

	msg, err := f.extend(context.Background(), 500, options(strOpt("message_id", "600"), channelOpt("800"), intOpt("hours", 3)))
	require.NoError(t, err)
	assert.Contains(t, msg, fmt.Sprintf("<t:%d:R>", deadline.Unix()))
	svc.AssertExpectations(t)
}

func TestList(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	svc.On("ListGiveaways", mock.Anything).Return([]*models.Giveaway{
		{ChannelID: 500, MessageID: 1, Prize: "Nitro", WinnerCount: 1, Deadline: testNow.Add(90 * time.Minute)},
		{ChannelID: 501, MessageID: 2, Prize: "Steam key", WinnerCount: 3, Deadline: testNow.Add(49 * time.Hour)},
	}, nil).Once()

	embed, err := f.list(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "🎉 Running giveaways (2)", embed.Title)
	assert.Contains(t, embed.Description, "**Nitro** in <#500>: 1 winner(s)")
	assert.Contains(t, embed.Description, "(1h 30m)")
	assert.Contains(t, embed.Description, "**Steam key** in <#501>: 3 winner(s)")
	assert.Contains(t, embed.Description, "(2d 1h)")
}

func TestList_Empty(t *testing.T) {
	svc := new(mockGiveawayService)
	f := newTestFeature(svc)

	svc.On("ListGiveaways", mock.Anything).Return([]*models.Giveaway{}, nil).Once()
	embed, err := f.list(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No giveaways are running.", embed.Description)

	svc.On("ListGiveaways", mock.Anything).Return(nil, errors.New("pool closed")).Once()
	_, err = f.list(context.Background())
	assert.Error(t, err)
}

func TestCommandDefinition(t *testing.T) {
	cmd := Command()
	assert.Equal(t, "giveaway", cmd.Name)

	var subs []string
	for _, opt := range cmd.Options {
		subs = append(subs, opt.Name)
	}
	assert.Equal(t, []string{"start", "delete", "extend", "list"}, subs)
}

func TestCommandDefinition_DurationBounds(t *testing.T) {
	limits := map[string]float64{
		"days":    service.MaxGiveawayDays,
		"hours":   service.MaxGiveawayHours,
		"minutes": service.MaxGiveawayMinutes,
	}

	for _, sub := range Command().Options {
		if sub.Name != "start" && sub.Name != "extend" {
			continue
		}
		seen := 0
		for _, opt := range sub.Options {
			limit, ok := limits[opt.Name]
			if !ok {
				continue
			}
			seen++
			require.NotNil(t, opt.MinValue, "%s %s", sub.Name, opt.Name)
			assert.Equal(t, float64(0), *opt.MinValue)
			assert.Equal(t, limit, opt.MaxValue, "%s %s", sub.Name, opt.Name)
		}
		assert.Equal(t, 3, seen, sub.Name)
	}
}
