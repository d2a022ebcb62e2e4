package models

import "time"

// StickyChannel tracks the repost state of a channel whose last message is always the sticky notice
type StickyChannel struct {
	ChannelID           int64     `db:"channel_id"`
	LastPostedMessageID *int64    `db:"last_posted_message_id"`
	StickyMessageID     *int64    `db:"sticky_message_id"`
	UpdatedAt           time.Time `db:"updated_at"`
}
