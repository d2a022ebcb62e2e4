package service

import (
	"context"
	"fmt"
)

type autoReactService struct {
	gateway  Gateway
	channels map[int64]struct{}
	emojis   []string
}

// NewAutoReactService creates a service reacting with emojis to every human message in channelIDs
func NewAutoReactService(gateway Gateway, channelIDs []int64, emojis []string) AutoReactService {
	channels := make(map[int64]struct{}, len(channelIDs))
	for _, id := range channelIDs {
		channels[id] = struct{}{}
	}
	return &autoReactService{
		gateway:  gateway,
		channels: channels,
		emojis:   emojis,
	}
}

// IsAutoReact reports whether messages in the channel get reactions
func (s *autoReactService) IsAutoReact(channelID int64) bool {
	if len(s.emojis) == 0 {
		return false
	}
	_, ok := s.channels[channelID]
	return ok
}

// HandleMessage adds the configured reactions in order, stopping at the first failure
func (s *autoReactService) HandleMessage(ctx context.Context, channelID, messageID int64) error {
	if !s.IsAutoReact(channelID) {
		return nil
	}
	for _, emoji := range s.emojis {
		if err := s.gateway.React(ctx, channelID, messageID, emoji); err != nil {
			return fmt.Errorf("failed to add reaction %s: %w", emoji, err)
		}
	}
	return nil
}
