package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmoji(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"unicode", "🎉", "🎉"},
		{"unicode with spaces", "  ✅ ", "✅"},
		{"custom", "<:pepe:123456789>", "pepe:123456789"},
		{"animated custom", "<a:dance:987654321>", "dance:987654321"},
		{"already api form", "pepe:123456789", "pepe:123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmoji(tt.input))
		})
	}
}

func TestEmojiMatches(t *testing.T) {
	assert.True(t, EmojiMatches("🎉", "🎉"))
	assert.False(t, EmojiMatches("🎉", "✅"))
	assert.True(t, EmojiMatches("<:pepe:123>", "pepe:123"))
	assert.True(t, EmojiMatches("<:old_name:123>", "new_name:123"))
	assert.False(t, EmojiMatches("pepe:123", "pepe:456"))
}

func TestReactRoleMessage_HasBinding(t *testing.T) {
	msg := &ReactRoleMessage{
		Bindings: []ReactRoleBinding{
			{Emoji: "✅", RoleID: 10},
			{Emoji: "pepe:123", RoleID: 20},
		},
	}

	assert.True(t, msg.HasBinding(ReactRoleBinding{Emoji: "✅", RoleID: 10}))
	assert.True(t, msg.HasBinding(ReactRoleBinding{Emoji: "<:pepe:123>", RoleID: 20}))
	assert.False(t, msg.HasBinding(ReactRoleBinding{Emoji: "✅", RoleID: 20}))
}
