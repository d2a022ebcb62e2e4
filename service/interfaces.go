package service

import (
	"context"
	"time"

	"herald/events"
	"herald/listeners"
	"herald/models"
)

// GiveawayRepository defines the interface for giveaway data access.
// Getters return nil, nil when no record exists.
type GiveawayRepository interface {
	// Create stores a new giveaway, failing with ErrDuplicateKey if the message already hosts one
	Create(ctx context.Context, giveaway *models.Giveaway) error

	// GetByKey retrieves a giveaway by its natural key
	GetByKey(ctx context.Context, key models.MessageKey) (*models.Giveaway, error)

	// GetByKeyForUpdate retrieves a giveaway and locks its row until the transaction ends
	GetByKeyForUpdate(ctx context.Context, key models.MessageKey) (*models.Giveaway, error)

	// GetAll returns every stored giveaway ordered by deadline
	GetAll(ctx context.Context) ([]*models.Giveaway, error)

	// Update applies the patch and returns the updated record, or nil if it doesn't exist
	Update(ctx context.Context, key models.MessageKey, patch models.GiveawayPatch) (*models.Giveaway, error)

	// Delete removes a giveaway, reporting whether a row was removed
	Delete(ctx context.Context, key models.MessageKey) (bool, error)
}

// ReactRoleRepository defines the interface for react-role binding data access
type ReactRoleRepository interface {
	// GetByMessage retrieves a message record with all of its bindings
	GetByMessage(ctx context.Context, key models.MessageKey) (*models.ReactRoleMessage, error)

	// GetAll returns every message record with its bindings
	GetAll(ctx context.Context) ([]*models.ReactRoleMessage, error)

	// AddBinding stores the pair, creating the message record if needed.
	// Returns false when the pair was already bound.
	AddBinding(ctx context.Context, key models.MessageKey, binding models.ReactRoleBinding) (bool, error)

	// RemoveRole removes every binding for the role and deletes the message record once it has none left
	RemoveRole(ctx context.Context, key models.MessageKey, roleID int64) (removed []models.ReactRoleBinding, messageDeleted bool, err error)

	// Delete removes the message record and all of its bindings
	Delete(ctx context.Context, key models.MessageKey) (bool, error)
}

// VerificationRepository defines the interface for the verification prompt singleton
type VerificationRepository interface {
	// EnsureExists creates the empty singleton if it is missing, reporting whether it was created
	EnsureExists(ctx context.Context) (bool, error)

	// Get returns the singleton, or nil if it has not been created
	Get(ctx context.Context) (*models.VerificationPrompt, error)

	// GetForUpdate returns the singleton and locks it until the transaction ends
	GetForUpdate(ctx context.Context) (*models.VerificationPrompt, error)

	// Set marks the prompt present at the given message
	Set(ctx context.Context, channelID, messageID int64) error

	// Clear marks the prompt absent and nulls its message reference
	Clear(ctx context.Context) error
}

// StickyChannelRepository defines the interface for sticky channel state
type StickyChannelRepository interface {
	// GetByChannel retrieves the state for a channel
	GetByChannel(ctx context.Context, channelID int64) (*models.StickyChannel, error)

	// GetAll returns the state of every sticky channel
	GetAll(ctx context.Context) ([]*models.StickyChannel, error)

	// Upsert writes the state for a channel in a single statement
	Upsert(ctx context.Context, sticky *models.StickyChannel) error

	// Delete removes the state for a channel
	Delete(ctx context.Context, channelID int64) (bool, error)
}

// EventPublisher defines the interface for publishing lifecycle events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork manages a single transaction and the repositories bound to it
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	GiveawayRepository() GiveawayRepository
	ReactRoleRepository() ReactRoleRepository
	VerificationRepository() VerificationRepository
	StickyChannelRepository() StickyChannelRepository

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates new UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Gateway is the chat platform as seen by the campaign engine.
// Implementations return ErrNotFound for missing messages and ErrExternalUnavailable for any other failure.
type Gateway interface {
	// FetchMessage checks that a message still exists
	FetchMessage(ctx context.Context, channelID, messageID int64) error

	// SendMessage posts a message and returns its ID
	SendMessage(ctx context.Context, channelID int64, msg *models.Announcement) (int64, error)

	// DeleteMessage deletes a message
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	// React adds the bot's reaction to a message
	React(ctx context.Context, channelID, messageID int64, emoji string) error

	// RemoveReaction removes every reaction with the emoji from a message
	RemoveReaction(ctx context.Context, channelID, messageID int64, emoji string) error

	// FetchReactionUsers returns everyone who reacted with the emoji
	FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji string) ([]models.Participant, error)

	// MemberHasRole reports whether a member currently holds a role
	MemberHasRole(ctx context.Context, userID, roleID int64) (bool, error)

	// GrantRole adds a role to a member
	GrantRole(ctx context.Context, userID, roleID int64) error

	// RevokeRole removes a role from a member
	RevokeRole(ctx context.Context, userID, roleID int64) error
}

// DeadlineScheduler arms one-shot timers keyed by campaign
type DeadlineScheduler interface {
	Schedule(key string, fireAt time.Time, fn func()) bool
	Cancel(key string) bool
}

// ListenerRegistry attaches participation listeners to messages
type ListenerRegistry interface {
	Attach(key models.MessageKey, filter listeners.Filter, onAdd, onRemove listeners.Handler, opts ...listeners.AttachOption) listeners.Handle
	Detach(handle listeners.Handle) bool
}

// LifecycleMetrics records campaign outcomes
type LifecycleMetrics interface {
	RecordGiveawayResolved(outcome string)
	RecordRoleMutation(action string, success bool)
	RecordReconciled(campaign, outcome string)
}

// GiveawayService defines the giveaway lifecycle operations
type GiveawayService interface {
	// CreateGiveaway posts the giveaway message, stores the record and arms its deadline
	CreateGiveaway(ctx context.Context, channelID int64, prize string, winnerCount int, deadline time.Time) (*models.Giveaway, error)

	// DeleteGiveaway cancels a giveaway without announcing it
	DeleteGiveaway(ctx context.Context, key models.MessageKey) error

	// ExtendGiveaway moves a live giveaway's deadline
	ExtendGiveaway(ctx context.Context, key models.MessageKey, deadline time.Time) (*models.Giveaway, error)

	// ListGiveaways returns every pending giveaway
	ListGiveaways(ctx context.Context) ([]*models.Giveaway, error)

	// ResolveGiveaway picks winners, announces them and deletes the record
	ResolveGiveaway(ctx context.Context, key models.MessageKey) (*models.GiveawayResult, error)

	// Arm schedules resolution at the giveaway's deadline, immediately if it already passed
	Arm(giveaway *models.Giveaway)
}

// ReactRoleService defines the react-role binding operations
type ReactRoleService interface {
	// AddBinding binds an emoji to a role on a message; adding an existing pair is a no-op
	AddBinding(ctx context.Context, channelID, messageID int64, emoji string, roleID int64) (bool, error)

	// RemoveBinding unbinds a role from a message
	RemoveBinding(ctx context.Context, channelID, messageID int64, roleID int64) ([]models.ReactRoleBinding, error)

	// AttachMessage attaches listeners for every binding of a stored message
	AttachMessage(msg *models.ReactRoleMessage)

	// DetachMessage detaches every listener of a message
	DetachMessage(key models.MessageKey) int
}

// VerificationService defines the verification prompt operations
type VerificationService interface {
	// Initialize creates the empty singleton on first boot
	Initialize(ctx context.Context) error

	// PostPrompt sends the verify button message and records it
	PostPrompt(ctx context.Context, channelID int64) (*models.VerificationPrompt, error)

	// SetVerificationPrompt records an existing message as the prompt
	SetVerificationPrompt(ctx context.Context, channelID, messageID int64) (*models.VerificationPrompt, error)

	// ClearVerificationPrompt deletes the prompt message and clears the record
	ClearVerificationPrompt(ctx context.Context) error

	// GetPrompt returns the current singleton
	GetPrompt(ctx context.Context) (*models.VerificationPrompt, error)

	// AttachPrompt attaches the click listener for a present prompt
	AttachPrompt(prompt *models.VerificationPrompt)
}

// StickyService defines the sticky message operations
type StickyService interface {
	// Initialize seeds records for the configured channels
	Initialize(ctx context.Context) error

	// IsSticky reports whether a channel is configured as sticky
	IsSticky(channelID int64) bool

	// HandleMessage reposts the sticky notice after a human message
	HandleMessage(ctx context.Context, channelID, messageID int64) error
}

// AnnounceService defines the staff announcement operation
type AnnounceService interface {
	// Announce posts an announcement embed and returns its message ID
	Announce(ctx context.Context, channelID int64, req AnnouncementRequest) (int64, error)
}

// AutoReactService defines the automatic reaction operations
type AutoReactService interface {
	// IsAutoReact reports whether messages in the channel get reactions
	IsAutoReact(channelID int64) bool

	// HandleMessage reacts to a human message with the configured emojis
	HandleMessage(ctx context.Context, channelID, messageID int64) error
}
