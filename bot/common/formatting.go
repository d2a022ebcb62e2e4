package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// ParseSnowflake parses a Discord ID, accepting message links and mentions as well as bare IDs
func ParseSnowflake(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if i := strings.LastIndex(input, "/"); i >= 0 {
		input = input[i+1:]
	}
	input = strings.Trim(input, "<#@&!>")

	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid Discord ID %q", input)
	}
	return id, nil
}

// Options indexes the options of a subcommand by name
type Options map[string]*discordgo.ApplicationCommandInteractionDataOption

// SubcommandOptions returns the name of the invoked subcommand and its options
func SubcommandOptions(data discordgo.ApplicationCommandInteractionData) (string, Options) {
	opts := make(Options)
	if len(data.Options) == 0 {
		return "", opts
	}

	sub := data.Options[0]
	for _, opt := range sub.Options {
		opts[opt.Name] = opt
	}
	return sub.Name, opts
}

// Int returns an integer option, or def when it was not given
func (o Options) Int(name string, def int) int {
	if opt, ok := o[name]; ok {
		return int(opt.IntValue())
	}
	return def
}

// String returns a string option, or "" when it was not given
func (o Options) String(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

// Snowflake parses a channel, role or string option holding a Discord ID
func (o Options) Snowflake(name string) (int64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}

	var raw string
	switch opt.Type {
	case discordgo.ApplicationCommandOptionChannel,
		discordgo.ApplicationCommandOptionRole,
		discordgo.ApplicationCommandOptionUser,
		discordgo.ApplicationCommandOptionMentionable:
		raw = fmt.Sprint(opt.Value)
	default:
		raw = opt.StringValue()
	}

	id, err := ParseSnowflake(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
