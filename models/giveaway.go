package models

import (
	"fmt"
	"time"
)

// MessageKey is the natural key of a message-bound campaign
type MessageKey struct {
	ChannelID int64
	MessageID int64
}

// String renders the key in a form usable as a scheduler or log key
func (k MessageKey) String() string {
	return fmt.Sprintf("%d/%d", k.ChannelID, k.MessageID)
}

// Giveaway is a time-bounded campaign resolved by picking winners among reactors
type Giveaway struct {
	ID          int64     `db:"id"`
	ChannelID   int64     `db:"channel_id"`
	MessageID   int64     `db:"message_id"`
	Prize       string    `db:"prize"`
	WinnerCount int       `db:"winner_count"`
	Deadline    time.Time `db:"deadline"`
	CreatedAt   time.Time `db:"created_at"`
}

// Key returns the giveaway's natural key
func (g *Giveaway) Key() MessageKey {
	return MessageKey{ChannelID: g.ChannelID, MessageID: g.MessageID}
}

// IsExpired reports whether the deadline is at or before now
func (g *Giveaway) IsExpired(now time.Time) bool {
	return !g.Deadline.After(now)
}

// GiveawayResult describes how a giveaway was resolved
type GiveawayResult struct {
	Giveaway     *Giveaway
	Participants int
	Winners      []int64
	// Announced is false when the announcement could not be delivered
	Announced bool
	// Discarded is set when the backing message was gone and the record was dropped without an announcement
	Discarded bool
}

// GiveawayPatch lists the mutable fields of a giveaway; nil fields are left unchanged
type GiveawayPatch struct {
	Prize       *string
	WinnerCount *int
	Deadline    *time.Time
}
