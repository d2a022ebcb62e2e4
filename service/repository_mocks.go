package service

import (
	"context"
	"time"

	"herald/events"
	"herald/listeners"
	"herald/models"

	"github.com/stretchr/testify/mock"
)

// MockGiveawayRepository is a mock implementation of GiveawayRepository
type MockGiveawayRepository struct {
	mock.Mock
}

func (m *MockGiveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	args := m.Called(ctx, giveaway)
	return args.Error(0)
}

func (m *MockGiveawayRepository) GetByKey(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) GetByKeyForUpdate(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) GetAll(ctx context.Context) ([]*models.Giveaway, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) Update(ctx context.Context, key models.MessageKey, patch models.GiveawayPatch) (*models.Giveaway, error) {
	args := m.Called(ctx, key, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockReactRoleRepository is a mock implementation of ReactRoleRepository
type MockReactRoleRepository struct {
	mock.Mock
}

func (m *MockReactRoleRepository) GetByMessage(ctx context.Context, key models.MessageKey) (*models.ReactRoleMessage, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReactRoleMessage), args.Error(1)
}

func (m *MockReactRoleRepository) GetAll(ctx context.Context) ([]*models.ReactRoleMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReactRoleMessage), args.Error(1)
}

func (m *MockReactRoleRepository) AddBinding(ctx context.Context, key models.MessageKey, binding models.ReactRoleBinding) (bool, error) {
	args := m.Called(ctx, key, binding)
	return args.Bool(0), args.Error(1)
}

func (m *MockReactRoleRepository) RemoveRole(ctx context.Context, key models.MessageKey, roleID int64) ([]models.ReactRoleBinding, bool, error) {
	args := m.Called(ctx, key, roleID)
	var removed []models.ReactRoleBinding
	if args.Get(0) != nil {
		removed = args.Get(0).([]models.ReactRoleBinding)
	}
	return removed, args.Bool(1), args.Error(2)
}

func (m *MockReactRoleRepository) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockVerificationRepository is a mock implementation of VerificationRepository
type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) EnsureExists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationRepository) Get(ctx context.Context) (*models.VerificationPrompt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationPrompt), args.Error(1)
}

func (m *MockVerificationRepository) GetForUpdate(ctx context.Context) (*models.VerificationPrompt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationPrompt), args.Error(1)
}

func (m *MockVerificationRepository) Set(ctx context.Context, channelID, messageID int64) error {
	args := m.Called(ctx, channelID, messageID)
	return args.Error(0)
}

func (m *MockVerificationRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockStickyChannelRepository is a mock implementation of StickyChannelRepository
type MockStickyChannelRepository struct {
	mock.Mock
}

func (m *MockStickyChannelRepository) GetByChannel(ctx context.Context, channelID int64) (*models.StickyChannel, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StickyChannel), args.Error(1)
}

func (m *MockStickyChannelRepository) GetAll(ctx context.Context) ([]*models.StickyChannel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StickyChannel), args.Error(1)
}

func (m *MockStickyChannelRepository) Upsert(ctx context.Context, sticky *models.StickyChannel) error {
	args := m.Called(ctx, sticky)
	return args.Error(0)
}

func (m *MockStickyChannelRepository) Delete(ctx context.Context, channelID int64) (bool, error) {
	args := m.Called(ctx, channelID)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork wired to the mock repositories
type MockUnitOfWork struct {
	mock.Mock
	GiveawayRepo     *MockGiveawayRepository
	ReactRoleRepo    *MockReactRoleRepository
	VerificationRepo *MockVerificationRepository
	StickyRepo       *MockStickyChannelRepository
	Events           *MockEventPublisher
}

// NewMockUnitOfWork creates a mock unit of work with fresh mock repositories
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		GiveawayRepo:     new(MockGiveawayRepository),
		ReactRoleRepo:    new(MockReactRoleRepository),
		VerificationRepo: new(MockVerificationRepository),
		StickyRepo:       new(MockStickyChannelRepository),
		Events:           new(MockEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) GiveawayRepository() GiveawayRepository {
	return m.GiveawayRepo
}

func (m *MockUnitOfWork) ReactRoleRepository() ReactRoleRepository {
	return m.ReactRoleRepo
}

func (m *MockUnitOfWork) VerificationRepository() VerificationRepository {
	return m.VerificationRepo
}

func (m *MockUnitOfWork) StickyChannelRepository() StickyChannelRepository {
	return m.StickyRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.Events
}

// MockUnitOfWorkFactory hands out the same mock unit of work on every Create
type MockUnitOfWorkFactory struct {
	UoW *MockUnitOfWork
}

func (f *MockUnitOfWorkFactory) Create() UnitOfWork {
	return f.UoW
}

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchMessage(ctx context.Context, channelID, messageID int64) error {
	args := m.Called(ctx, channelID, messageID)
	return args.Error(0)
}

func (m *MockGateway) SendMessage(ctx context.Context, channelID int64, msg *models.Announcement) (int64, error) {
	args := m.Called(ctx, channelID, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	args := m.Called(ctx, channelID, messageID)
	return args.Error(0)
}

func (m *MockGateway) React(ctx context.Context, channelID, messageID int64, emoji string) error {
	args := m.Called(ctx, channelID, messageID, emoji)
	return args.Error(0)
}

func (m *MockGateway) RemoveReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	args := m.Called(ctx, channelID, messageID, emoji)
	return args.Error(0)
}

func (m *MockGateway) FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji string) ([]models.Participant, error) {
	args := m.Called(ctx, channelID, messageID, emoji)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockGateway) MemberHasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	args := m.Called(ctx, userID, roleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) GrantRole(ctx context.Context, userID, roleID int64) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *MockGateway) RevokeRole(ctx context.Context, userID, roleID int64) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

// MockScheduler is a mock implementation of DeadlineScheduler
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(key string, fireAt time.Time, fn func()) bool {
	args := m.Called(key, fireAt, fn)
	return args.Bool(0)
}

func (m *MockScheduler) Cancel(key string) bool {
	args := m.Called(key)
	return args.Bool(0)
}

// MockListenerRegistry is a mock implementation of ListenerRegistry
type MockListenerRegistry struct {
	mock.Mock
}

func (m *MockListenerRegistry) Attach(key models.MessageKey, filter listeners.Filter, onAdd, onRemove listeners.Handler, opts ...listeners.AttachOption) listeners.Handle {
	args := m.Called(key, filter, onAdd, onRemove)
	return args.Get(0).(listeners.Handle)
}

func (m *MockListenerRegistry) Detach(handle listeners.Handle) bool {
	args := m.Called(handle)
	return args.Bool(0)
}

// MockLifecycleMetrics is a mock implementation of LifecycleMetrics
type MockLifecycleMetrics struct {
	mock.Mock
}

func (m *MockLifecycleMetrics) RecordGiveawayResolved(outcome string) {
	m.Called(outcome)
}

func (m *MockLifecycleMetrics) RecordRoleMutation(action string, success bool) {
	m.Called(action, success)
}

func (m *MockLifecycleMetrics) RecordReconciled(campaign, outcome string) {
	m.Called(campaign, outcome)
}
