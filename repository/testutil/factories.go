package testutil

import (
	"time"

	"herald/models"
)

// CreateTestGiveaway creates a giveaway that ends an hour from now
func CreateTestGiveaway(channelID, messageID int64) *models.Giveaway {
	return &models.Giveaway{
		ChannelID:   channelID,
		MessageID:   messageID,
		Prize:       "Discord Nitro",
		WinnerCount: 1,
		Deadline:    time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
	}
}

// CreateTestGiveawayWithDeadline creates a giveaway with a specific deadline and winner count
func CreateTestGiveawayWithDeadline(channelID, messageID int64, winnerCount int, deadline time.Time) *models.Giveaway {
	giveaway := CreateTestGiveaway(channelID, messageID)
	giveaway.WinnerCount = winnerCount
	giveaway.Deadline = deadline.UTC().Truncate(time.Microsecond)
	return giveaway
}

// CreateTestBinding creates a react role binding
func CreateTestBinding(emoji string, roleID int64) models.ReactRoleBinding {
	return models.ReactRoleBinding{Emoji: emoji, RoleID: roleID}
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
