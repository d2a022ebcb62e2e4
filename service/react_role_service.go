package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"herald/events"
	"herald/listeners"
	"herald/models"

	log "github.com/sirupsen/logrus"
)

type bindingKey struct {
	message models.MessageKey
	emoji   string
	roleID  int64
}

type reactRoleService struct {
	uowFactory UnitOfWorkFactory
	gateway    Gateway
	registry   ListenerRegistry
	metrics    LifecycleMetrics

	mu      sync.Mutex
	handles map[bindingKey]listeners.Handle
}

// NewReactRoleService creates a new react-role service
func NewReactRoleService(uowFactory UnitOfWorkFactory, gateway Gateway, registry ListenerRegistry, metrics LifecycleMetrics) ReactRoleService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &reactRoleService{
		uowFactory: uowFactory,
		gateway:    gateway,
		registry:   registry,
		metrics:    metrics,
		handles:    make(map[bindingKey]listeners.Handle),
	}
}

// AddBinding binds an emoji to a role on a message; adding an existing pair is a no-op
func (s *reactRoleService) AddBinding(ctx context.Context, channelID, messageID int64, emoji string, roleID int64) (bool, error) {
	emoji = models.NormalizeEmoji(emoji)
	if emoji == "" {
		return false, fmt.Errorf("%w: emoji is required", ErrInvalidInput)
	}
	if roleID == 0 {
		return false, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}

	key := models.MessageKey{ChannelID: channelID, MessageID: messageID}

	if err := s.gateway.FetchMessage(ctx, channelID, messageID); err != nil {
		return false, fmt.Errorf("failed to fetch message %s: %w", key, err)
	}

	// Reacting first rejects emoji the platform doesn't know before anything is stored
	if err := s.gateway.React(ctx, channelID, messageID, emoji); err != nil {
		return false, fmt.Errorf("failed to react with %s: %w", emoji, err)
	}

	binding := models.ReactRoleBinding{Emoji: emoji, RoleID: roleID}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	created, err := uow.ReactRoleRepository().AddBinding(ctx, key, binding)
	if err != nil {
		return false, fmt.Errorf("failed to store binding: %w", err)
	}

	if created {
		uow.EventBus().Publish(events.ReactRoleBoundEvent{
			ChannelID: channelID,
			MessageID: messageID,
			Emoji:     emoji,
			RoleID:    roleID,
		})
	}

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.attach(key, binding)

	log.WithFields(log.Fields{
		"message": key,
		"emoji":   emoji,
		"roleID":  roleID,
		"created": created,
	}).Info("React role binding added")

	return created, nil
}

// RemoveBinding unbinds a role from a message
func (s *reactRoleService) RemoveBinding(ctx context.Context, channelID, messageID int64, roleID int64) ([]models.ReactRoleBinding, error) {
	key := models.MessageKey{ChannelID: channelID, MessageID: messageID}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	removed, messageDeleted, err := uow.ReactRoleRepository().RemoveRole(ctx, key, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove binding: %w", err)
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("role %d on message %s: %w", roleID, key, ErrNotFound)
	}

	var remaining *models.ReactRoleMessage
	if !messageDeleted {
		remaining, err = uow.ReactRoleRepository().GetByMessage(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get remaining bindings: %w", err)
		}
	}

	for _, b := range removed {
		uow.EventBus().Publish(events.ReactRoleUnboundEvent{
			ChannelID:      channelID,
			MessageID:      messageID,
			Emoji:          b.Emoji,
			RoleID:         b.RoleID,
			MessageRemoved: messageDeleted,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, b := range removed {
		s.detach(bindingKey{message: key, emoji: b.Emoji, roleID: b.RoleID})

		if remaining != nil && emojiInUse(remaining, b.Emoji) {
			continue
		}
		if err := s.gateway.RemoveReaction(ctx, channelID, messageID, b.Emoji); err != nil && !errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{
				"message": key,
				"emoji":   b.Emoji,
				"error":   err,
			}).Warn("Failed to remove reaction for unbound role")
		}
	}

	log.WithFields(log.Fields{
		"message":        key,
		"roleID":         roleID,
		"removed":        len(removed),
		"messageRemoved": messageDeleted,
	}).Info("React role binding removed")

	return removed, nil
}

func emojiInUse(msg *models.ReactRoleMessage, emoji string) bool {
	for _, b := range msg.Bindings {
		if models.EmojiMatches(b.Emoji, emoji) {
			return true
		}
	}
	return false
}

// AttachMessage attaches listeners for every binding of a stored message
func (s *reactRoleService) AttachMessage(msg *models.ReactRoleMessage) {
	key := msg.Key()
	for _, b := range msg.Bindings {
		s.attach(key, b)
	}
}

// DetachMessage detaches every listener of a message
func (s *reactRoleService) DetachMessage(key models.MessageKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	detached := 0
	for bk, handle := range s.handles {
		if bk.message != key {
			continue
		}
		if s.registry.Detach(handle) {
			detached++
		}
		delete(s.handles, bk)
	}
	return detached
}

func (s *reactRoleService) attach(key models.MessageKey, binding models.ReactRoleBinding) {
	bk := bindingKey{message: key, emoji: binding.Emoji, roleID: binding.RoleID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[bk]; ok {
		return
	}

	s.handles[bk] = s.registry.Attach(key, listeners.ForEmoji(binding.Emoji),
		s.roleHandler(binding.RoleID, RoleActionGrant),
		s.roleHandler(binding.RoleID, RoleActionRevoke),
	)

	log.WithFields(log.Fields{
		"message": key,
		"emoji":   binding.Emoji,
		"roleID":  binding.RoleID,
	}).Debug("React role listener attached")
}

func (s *reactRoleService) detach(bk bindingKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.handles[bk]; ok {
		s.registry.Detach(handle)
		delete(s.handles, bk)
	}
}

// roleHandler grants or revokes a role, skipping members already in the desired state
func (s *reactRoleService) roleHandler(roleID int64, action string) listeners.Handler {
	return func(ctx context.Context, ev listeners.Event) {
		fields := log.Fields{
			"message": ev.Key(),
			"userID":  ev.ActorID,
			"roleID":  roleID,
			"action":  action,
		}

		has, err := s.gateway.MemberHasRole(ctx, ev.ActorID, roleID)
		if err != nil {
			s.metrics.RecordRoleMutation(action, false)
			log.WithFields(fields).WithError(err).Warn("Failed to look up member roles")
			return
		}

		grant := action == RoleActionGrant
		if has == grant {
			return
		}

		if grant {
			err = s.gateway.GrantRole(ctx, ev.ActorID, roleID)
		} else {
			err = s.gateway.RevokeRole(ctx, ev.ActorID, roleID)
		}
		s.metrics.RecordRoleMutation(action, err == nil)
		if err != nil {
			log.WithFields(fields).WithError(err).Warn("Failed to update member role")
			return
		}

		log.WithFields(fields).Info("Member role updated")
	}
}
