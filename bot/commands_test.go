package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandDefinitions(t *testing.T) {
	seen := make(map[string]bool)
	for _, cmd := range commandDefinitions() {
		assert.False(t, seen[cmd.Name], "duplicate command %s", cmd.Name)
		seen[cmd.Name] = true

		assert.NotEmpty(t, cmd.Description)
		assert.NotEmpty(t, cmd.Options)
		for _, opt := range cmd.Options {
			assert.NotEmpty(t, opt.Description, "%s %s needs a description", cmd.Name, opt.Name)
			assert.LessOrEqual(t, len(opt.Description), 100)

			// Discord rejects required options after optional ones
			optional := false
			for _, sub := range opt.Options {
				if !sub.Required {
					optional = true
				} else {
					assert.False(t, optional, "%s %s: required option %s follows an optional one", cmd.Name, opt.Name, sub.Name)
				}
			}
		}
	}

	assert.Equal(t, map[string]bool{"giveaway": true, "reactrole": true, "verification": true, "announce": true}, seen)
}
