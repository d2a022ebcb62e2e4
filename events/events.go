package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of campaign lifecycle events
type EventType string

const (
	EventTypeGiveawayCreated     EventType = "giveaway_created"
	EventTypeGiveawayRescheduled EventType = "giveaway_rescheduled"
	EventTypeGiveawayResolved    EventType = "giveaway_resolved"
	EventTypeGiveawayDeleted     EventType = "giveaway_deleted"
	EventTypeReactRoleBound      EventType = "react_role_bound"
	EventTypeReactRoleUnbound    EventType = "react_role_unbound"
	EventTypeVerificationChanged EventType = "verification_changed"
	EventTypeCampaignDiscarded   EventType = "campaign_discarded"
)

// AllEventTypes lists every event type emitted by the campaign engine
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeGiveawayCreated,
		EventTypeGiveawayRescheduled,
		EventTypeGiveawayResolved,
		EventTypeGiveawayDeleted,
		EventTypeReactRoleBound,
		EventTypeReactRoleUnbound,
		EventTypeVerificationChanged,
		EventTypeCampaignDiscarded,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GiveawayCreatedEvent is emitted once a giveaway record is durable
type GiveawayCreatedEvent struct {
	ChannelID   int64     `json:"channel_id"`
	MessageID   int64     `json:"message_id"`
	Prize       string    `json:"prize"`
	WinnerCount int       `json:"winner_count"`
	Deadline    time.Time `json:"deadline"`
}

func (e GiveawayCreatedEvent) Type() EventType {
	return EventTypeGiveawayCreated
}

// GiveawayRescheduledEvent is emitted when a giveaway deadline is moved
type GiveawayRescheduledEvent struct {
	ChannelID   int64     `json:"channel_id"`
	MessageID   int64     `json:"message_id"`
	OldDeadline time.Time `json:"old_deadline"`
	NewDeadline time.Time `json:"new_deadline"`
}

func (e GiveawayRescheduledEvent) Type() EventType {
	return EventTypeGiveawayRescheduled
}

// GiveawayResolvedEvent is emitted after winners were announced and the record deleted
type GiveawayResolvedEvent struct {
	ChannelID    int64   `json:"channel_id"`
	MessageID    int64   `json:"message_id"`
	Prize        string  `json:"prize"`
	Participants int     `json:"participants"`
	Winners      []int64 `json:"winners"`
	Announced    bool    `json:"announced"`
}

func (e GiveawayResolvedEvent) Type() EventType {
	return EventTypeGiveawayResolved
}

// GiveawayDeletedEvent is emitted when a giveaway is removed without resolution
type GiveawayDeletedEvent struct {
	ChannelID int64 `json:"channel_id"`
	MessageID int64 `json:"message_id"`
}

func (e GiveawayDeletedEvent) Type() EventType {
	return EventTypeGiveawayDeleted
}

// ReactRoleBoundEvent is emitted when a new emoji/role pair is stored
type ReactRoleBoundEvent struct {
	ChannelID int64  `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
	RoleID    int64  `json:"role_id"`
}

func (e ReactRoleBoundEvent) Type() EventType {
	return EventTypeReactRoleBound
}

// ReactRoleUnboundEvent is emitted for each removed emoji/role pair
type ReactRoleUnboundEvent struct {
	ChannelID      int64  `json:"channel_id"`
	MessageID      int64  `json:"message_id"`
	Emoji          string `json:"emoji"`
	RoleID         int64  `json:"role_id"`
	MessageRemoved bool   `json:"message_removed"`
}

func (e ReactRoleUnboundEvent) Type() EventType {
	return EventTypeReactRoleUnbound
}

// VerificationChangedEvent is emitted when the prompt is posted or cleared
type VerificationChangedEvent struct {
	Present   bool  `json:"present"`
	ChannelID int64 `json:"channel_id,omitempty"`
	MessageID int64 `json:"message_id,omitempty"`
}

func (e VerificationChangedEvent) Type() EventType {
	return EventTypeVerificationChanged
}

// CampaignDiscardedEvent is emitted when a record is dropped because its message is gone
type CampaignDiscardedEvent struct {
	Campaign  string `json:"campaign"`
	ChannelID int64  `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	Reason    string `json:"reason"`
}

func (e CampaignDiscardedEvent) Type() EventType {
	return EventTypeCampaignDiscarded
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every campaign event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines and a panicking handler is recovered.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, e)
}

// Flush emits pending events on the real bus; called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if b.real == nil {
		return nil
	}

	// Event handlers outlive the transaction, so they don't inherit its context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard drops pending events; called after a rollback.
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Pending returns the number of events waiting for a commit
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
