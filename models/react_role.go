package models

import "time"

// ReactRoleBinding pairs a reaction emoji with the role it grants
type ReactRoleBinding struct {
	Emoji  string `db:"emoji"`
	RoleID int64  `db:"role_id"`
}

// ReactRoleMessage is the durable record of every binding attached to one message
type ReactRoleMessage struct {
	ChannelID int64              `db:"channel_id"`
	MessageID int64              `db:"message_id"`
	Bindings  []ReactRoleBinding `db:"-"`
	CreatedAt time.Time          `db:"created_at"`
	UpdatedAt time.Time          `db:"updated_at"`
}

// Key returns the message's natural key
func (m *ReactRoleMessage) Key() MessageKey {
	return MessageKey{ChannelID: m.ChannelID, MessageID: m.MessageID}
}

// HasBinding reports whether the exact emoji and role pair is bound
func (m *ReactRoleMessage) HasBinding(b ReactRoleBinding) bool {
	for _, existing := range m.Bindings {
		if existing.RoleID == b.RoleID && EmojiMatches(existing.Emoji, b.Emoji) {
			return true
		}
	}
	return false
}
