package service

import (
	"fmt"
	"strings"
	"time"

	"herald/models"
)

const (
	// VerifyButtonID is the custom ID of the verification prompt's button
	VerifyButtonID = "verify_button"

	colorGiveaway     = 0xF1C40F
	colorGiveawayDone = 0x2ECC71
	colorVerification = 0x5865F2
)

func giveawayAnnouncement(prize string, winnerCount int, deadline time.Time, emoji string) *models.Announcement {
	return &models.Announcement{
		Title: "🎉 GIVEAWAY 🎉",
		Description: fmt.Sprintf(
			"**Prize:** %s\n**Winners:** %d\n**Ends:** <t:%d:R> (<t:%d:f>)\n\nReact with %s to enter!",
			prize, winnerCount, deadline.Unix(), deadline.Unix(), displayEmoji(emoji),
		),
		Color:  colorGiveaway,
		Footer: fmt.Sprintf("%d winner(s)", winnerCount),
	}
}

func giveawayResultAnnouncement(g *models.Giveaway, winners []int64, pingRoleID int64) *models.Announcement {
	var mentionRoles []int64
	content := ""
	if pingRoleID != 0 {
		content = fmt.Sprintf("<@&%d>", pingRoleID)
		mentionRoles = []int64{pingRoleID}
	}

	var description string
	if len(winners) == 0 {
		description = fmt.Sprintf("No participants entered the giveaway for **%s**.", g.Prize)
	} else {
		mentions := make([]string, len(winners))
		for i, id := range winners {
			mentions[i] = fmt.Sprintf("<@%d>", id)
		}
		description = fmt.Sprintf("**Prize:** %s\n**Winner(s):** %s\n\nCongratulations!", g.Prize, strings.Join(mentions, ", "))
	}

	return &models.Announcement{
		Content:        content,
		Title:          "🎉 GIVEAWAY ENDED 🎉",
		Description:    description,
		Color:          colorGiveawayDone,
		MentionRoleIDs: mentionRoles,
		MentionUserIDs: winners,
	}
}

func verificationAnnouncement() *models.Announcement {
	return &models.Announcement{
		Title:       "Verification",
		Description: "Click the button below to verify and get access to the server.",
		Color:       colorVerification,
		Button: &models.AnnouncementButton{
			CustomID: VerifyButtonID,
			Label:    "Verify",
			Emoji:    "✅",
		},
	}
}

func stickyAnnouncement(message string) *models.Announcement {
	return &models.Announcement{Content: message}
}

// displayEmoji renders an emoji in API form back into message markup
func displayEmoji(emoji string) string {
	if strings.Contains(emoji, ":") {
		return "<:" + emoji + ">"
	}
	return emoji
}
