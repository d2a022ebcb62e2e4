package models

// Participant is a user who reacted to a message
type Participant struct {
	UserID int64
	Bot    bool
}

// Announcement is a gateway-agnostic outgoing message
type Announcement struct {
	Content     string
	Title       string
	Description string
	Color       int
	Footer      string
	// ImageURL, when set, is shown as the embed image
	ImageURL string
	// Button, when set, attaches a single button with this custom ID
	Button *AnnouncementButton
	// MentionRoleIDs and MentionUserIDs are the only mentions allowed to ping
	MentionRoleIDs []int64
	MentionUserIDs []int64
}

// AnnouncementButton describes a clickable control attached to an announcement
type AnnouncementButton struct {
	CustomID string
	Label    string
	Emoji    string
}
