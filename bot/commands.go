package bot

import (
	"fmt"

	"herald/bot/features/announce"
	"herald/bot/features/giveaways"
	"herald/bot/features/reactroles"
	"herald/bot/features/verification"

	"github.com/bwmarrin/discordgo"
)

// commandDefinitions returns every slash command herald serves
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		giveaways.Command(),
		reactroles.Command(),
		verification.Command(),
		announce.Command(),
	}
}

// registerCommands registers all slash commands with Discord in one bulk overwrite,
// which also drops commands that are no longer served
func (b *Bot) registerCommands() error {
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.config.GuildID, commandDefinitions())
	if err != nil {
		return fmt.Errorf("cannot overwrite commands: %w", err)
	}
	return nil
}
