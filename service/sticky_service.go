package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"herald/models"

	log "github.com/sirupsen/logrus"
)

type stickyService struct {
	uowFactory UnitOfWorkFactory
	gateway    Gateway
	channels   map[int64]struct{}
	message    string
	locks      *keyedMutex
}

// NewStickyService creates a sticky service keeping message at the bottom of channelIDs
func NewStickyService(uowFactory UnitOfWorkFactory, gateway Gateway, channelIDs []int64, message string) StickyService {
	channels := make(map[int64]struct{}, len(channelIDs))
	for _, id := range channelIDs {
		channels[id] = struct{}{}
	}
	return &stickyService{
		uowFactory: uowFactory,
		gateway:    gateway,
		channels:   channels,
		message:    message,
		locks:      newKeyedMutex(),
	}
}

// Initialize seeds records for the configured channels
func (s *stickyService) Initialize(ctx context.Context) error {
	if len(s.channels) == 0 {
		return nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.StickyChannelRepository()
	seeded := 0
	for channelID := range s.channels {
		existing, err := repo.GetByChannel(ctx, channelID)
		if err != nil {
			return fmt.Errorf("failed to get sticky channel %d: %w", channelID, err)
		}
		if existing != nil {
			continue
		}
		if err := repo.Upsert(ctx, &models.StickyChannel{ChannelID: channelID}); err != nil {
			return fmt.Errorf("failed to seed sticky channel %d: %w", channelID, err)
		}
		seeded++
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"channels": len(s.channels),
		"seeded":   seeded,
	}).Info("Sticky channels initialized")
	return nil
}

// IsSticky reports whether a channel is configured as sticky
func (s *stickyService) IsSticky(channelID int64) bool {
	_, ok := s.channels[channelID]
	return ok
}

// HandleMessage reposts the sticky notice after a human message
func (s *stickyService) HandleMessage(ctx context.Context, channelID, messageID int64) error {
	if !s.IsSticky(channelID) {
		return nil
	}

	unlock := s.locks.Lock(strconv.FormatInt(channelID, 10))
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.StickyChannelRepository()
	state, err := repo.GetByChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to get sticky channel: %w", err)
	}
	if state == nil {
		state = &models.StickyChannel{ChannelID: channelID}
	}

	if state.StickyMessageID != nil {
		if err := s.gateway.DeleteMessage(ctx, channelID, *state.StickyMessageID); err != nil && !errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"messageID": *state.StickyMessageID,
				"error":     err,
			}).Warn("Failed to delete previous sticky message")
		}
	}

	stickyID, err := s.gateway.SendMessage(ctx, channelID, stickyAnnouncement(s.message))
	if err != nil {
		return fmt.Errorf("failed to post sticky message: %w", err)
	}

	state.LastPostedMessageID = &messageID
	state.StickyMessageID = &stickyID
	if err := repo.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to update sticky channel: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"channelID":       channelID,
		"stickyMessageID": stickyID,
	}).Debug("Sticky message reposted")
	return nil
}
