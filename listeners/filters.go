package listeners

import "herald/models"

// HumanOnly rejects events from automated actors
func HumanOnly() Filter {
	return func(ev Event) bool {
		return !ev.Automated
	}
}

// All accepts an event only when every filter accepts it
func All(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}

// ForEmoji accepts human reactions with the given emoji
func ForEmoji(emoji string) Filter {
	return All(HumanOnly(), func(ev Event) bool {
		return ev.Kind == KindReaction && models.EmojiMatches(ev.Discriminator, emoji)
	})
}

// ForComponent accepts human clicks on the control with the given custom ID
func ForComponent(customID string) Filter {
	return All(HumanOnly(), func(ev Event) bool {
		return ev.Kind == KindComponent && ev.Discriminator == customID
	})
}
