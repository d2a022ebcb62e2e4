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

const (
	verifiedReply        = "You have been verified!"
	alreadyVerifiedReply = "You are already verified."
	verifyFailedReply    = "Verification failed, please contact a staff member."
)

type verificationService struct {
	uowFactory UnitOfWorkFactory
	gateway    Gateway
	registry   ListenerRegistry
	metrics    LifecycleMetrics
	roleIDs    []int64

	mu     sync.Mutex
	handle listeners.Handle
	key    models.MessageKey
}

// NewVerificationService creates a new verification service granting roleIDs on click
func NewVerificationService(uowFactory UnitOfWorkFactory, gateway Gateway, registry ListenerRegistry, metrics LifecycleMetrics, roleIDs []int64) VerificationService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &verificationService{
		uowFactory: uowFactory,
		gateway:    gateway,
		registry:   registry,
		metrics:    metrics,
		roleIDs:    roleIDs,
	}
}

// Initialize creates the empty singleton on first boot
func (s *verificationService) Initialize(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	created, err := uow.VerificationRepository().EnsureExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize verification prompt: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if created {
		log.Info("Created empty verification prompt record")
	}
	return nil
}

// GetPrompt returns the current singleton
func (s *verificationService) GetPrompt(ctx context.Context) (*models.VerificationPrompt, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prompt, err := uow.VerificationRepository().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get verification prompt: %w", err)
	}
	if prompt == nil {
		return &models.VerificationPrompt{}, nil
	}
	return prompt, nil
}

// PostPrompt sends the verify button message and records it
func (s *verificationService) PostPrompt(ctx context.Context, channelID int64) (*models.VerificationPrompt, error) {
	current, err := s.GetPrompt(ctx)
	if err != nil {
		return nil, err
	}
	if current.Present {
		return nil, fmt.Errorf("verification prompt: %w", ErrDuplicateKey)
	}

	messageID, err := s.gateway.SendMessage(ctx, channelID, verificationAnnouncement())
	if err != nil {
		return nil, fmt.Errorf("failed to post verification prompt: %w", err)
	}

	prompt, err := s.SetVerificationPrompt(ctx, channelID, messageID)
	if err != nil {
		if delErr := s.gateway.DeleteMessage(ctx, channelID, messageID); delErr != nil {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"messageID": messageID,
				"error":     delErr,
			}).Warn("Failed to remove orphaned verification prompt")
		}
		return nil, err
	}
	return prompt, nil
}

// SetVerificationPrompt records an existing message as the prompt
func (s *verificationService) SetVerificationPrompt(ctx context.Context, channelID, messageID int64) (*models.VerificationPrompt, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.VerificationRepository()
	if _, err := repo.EnsureExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize verification prompt: %w", err)
	}

	current, err := repo.GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get verification prompt: %w", err)
	}
	if current != nil && current.Present {
		return nil, fmt.Errorf("verification prompt: %w", ErrDuplicateKey)
	}

	if err := repo.Set(ctx, channelID, messageID); err != nil {
		return nil, fmt.Errorf("failed to set verification prompt: %w", err)
	}

	uow.EventBus().Publish(events.VerificationChangedEvent{
		Present:   true,
		ChannelID: channelID,
		MessageID: messageID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	prompt := &models.VerificationPrompt{
		Present:   true,
		ChannelID: &channelID,
		MessageID: &messageID,
	}
	s.AttachPrompt(prompt)

	log.WithFields(log.Fields{
		"channelID": channelID,
		"messageID": messageID,
	}).Info("Verification prompt set")

	return prompt, nil
}

// ClearVerificationPrompt deletes the prompt message and clears the record
func (s *verificationService) ClearVerificationPrompt(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.VerificationRepository()
	current, err := repo.GetForUpdate(ctx)
	if err != nil {
		return fmt.Errorf("failed to get verification prompt: %w", err)
	}
	if current == nil {
		return fmt.Errorf("verification prompt: %w", ErrNotFound)
	}
	key, ok := current.Key()
	if !ok {
		return fmt.Errorf("verification prompt: %w", ErrNotFound)
	}

	if err := repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear verification prompt: %w", err)
	}

	uow.EventBus().Publish(events.VerificationChangedEvent{Present: false})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.detach()

	if err := s.gateway.DeleteMessage(ctx, key.ChannelID, key.MessageID); err != nil && !errors.Is(err, ErrNotFound) {
		log.WithFields(log.Fields{
			"message": key,
			"error":   err,
		}).Warn("Verification prompt cleared but its message could not be removed")
	}

	log.WithField("message", key).Info("Verification prompt cleared")
	return nil
}

// AttachPrompt attaches the click listener for a present prompt, replacing any earlier one
func (s *verificationService) AttachPrompt(prompt *models.VerificationPrompt) {
	key, ok := prompt.Key()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle.Valid() {
		if s.key == key {
			return
		}
		s.registry.Detach(s.handle)
	}

	// Every member clicks the same button; only one member's clicks need ordering
	s.handle = s.registry.Attach(key, listeners.ForComponent(VerifyButtonID), s.onVerify, nil, listeners.SerializePerActor())
	s.key = key

	log.WithField("message", key).Debug("Verification listener attached")
}

func (s *verificationService) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle.Valid() {
		s.registry.Detach(s.handle)
	}
	s.handle = listeners.Handle{}
	s.key = models.MessageKey{}
}

// onVerify grants every configured role the member doesn't hold yet
func (s *verificationService) onVerify(ctx context.Context, ev listeners.Event) {
	granted := 0
	failed := false

	for _, roleID := range s.roleIDs {
		has, err := s.gateway.MemberHasRole(ctx, ev.ActorID, roleID)
		if err != nil {
			failed = true
			s.metrics.RecordRoleMutation(RoleActionGrant, false)
			log.WithFields(log.Fields{
				"userID": ev.ActorID,
				"roleID": roleID,
				"error":  err,
			}).Warn("Failed to look up member roles")
			continue
		}
		if has {
			continue
		}

		err = s.gateway.GrantRole(ctx, ev.ActorID, roleID)
		s.metrics.RecordRoleMutation(RoleActionGrant, err == nil)
		if err != nil {
			failed = true
			log.WithFields(log.Fields{
				"userID": ev.ActorID,
				"roleID": roleID,
				"error":  err,
			}).Warn("Failed to grant verified role")
			continue
		}
		granted++
	}

	reply := verifiedReply
	switch {
	case failed:
		reply = verifyFailedReply
	case granted == 0:
		reply = alreadyVerifiedReply
	}

	log.WithFields(log.Fields{
		"userID":  ev.ActorID,
		"granted": granted,
		"failed":  failed,
	}).Info("Verification button clicked")

	if ev.Reply != nil {
		if err := ev.Reply(ctx, reply); err != nil {
			log.WithFields(log.Fields{
				"userID": ev.ActorID,
				"error":  err,
			}).Warn("Failed to reply to verification click")
		}
	}
}
