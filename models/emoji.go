package models

import (
	"regexp"
	"strings"
)

var customEmojiRegex = regexp.MustCompile(`^<a?:([A-Za-z0-9_~]+):(\d+)>$`)

// NormalizeEmoji converts user input into the API form used for reactions:
// "name:id" for custom emoji, the raw character sequence for unicode emoji.
func NormalizeEmoji(input string) string {
	input = strings.TrimSpace(input)
	if m := customEmojiRegex.FindStringSubmatch(input); m != nil {
		return m[1] + ":" + m[2]
	}
	return strings.TrimPrefix(strings.TrimSuffix(input, ":"), ":")
}

// emojiID returns the snowflake part of a custom emoji in API form
func emojiID(apiName string) string {
	if i := strings.LastIndex(apiName, ":"); i >= 0 {
		return apiName[i+1:]
	}
	return ""
}

// EmojiMatches compares two emoji in any accepted form.
// Custom emoji match on their ID so a renamed emoji still matches.
func EmojiMatches(a, b string) bool {
	a, b = NormalizeEmoji(a), NormalizeEmoji(b)
	idA, idB := emojiID(a), emojiID(b)
	if idA != "" && idB != "" {
		return idA == idB
	}
	return a == b
}
