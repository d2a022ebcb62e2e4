package models

import "time"

// VerificationPrompt is the singleton record for the verify button message.
// ChannelID and MessageID are nil whenever Present is false.
type VerificationPrompt struct {
	Present   bool      `db:"present"`
	ChannelID *int64    `db:"channel_id"`
	MessageID *int64    `db:"message_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Key returns the prompt's message key, or false when no prompt is posted
func (p *VerificationPrompt) Key() (MessageKey, bool) {
	if !p.Present || p.ChannelID == nil || p.MessageID == nil {
		return MessageKey{}, false
	}
	return MessageKey{ChannelID: *p.ChannelID, MessageID: *p.MessageID}, true
}
