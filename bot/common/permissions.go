package common

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// HasStaffAccess reports whether a member may run campaign commands: either
// the Administrator permission or one of the configured staff roles.
func HasStaffAccess(member *discordgo.Member, staffRoleIDs []int64) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	for _, roleID := range member.Roles {
		id, err := strconv.ParseInt(roleID, 10, 64)
		if err != nil {
			continue
		}
		for _, staff := range staffRoleIDs {
			if id == staff {
				return true
			}
		}
	}
	return false
}

// InteractionUserID returns the invoking user's ID for guild and DM interactions
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// InteractionUser returns the invoking user for guild and DM interactions
func InteractionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
