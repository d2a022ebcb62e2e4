package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"herald/models"

	log "github.com/sirupsen/logrus"
)

const (
	maxAnnouncementTitle = 256
	maxAnnouncementBody  = 4096

	colorAnnouncement = 0xFFFFFF
)

var (
	roleMentionPattern = regexp.MustCompile(`<@&(\d+)>`)
	userMentionPattern = regexp.MustCompile(`<@!?(\d+)>`)
)

// AnnouncementRequest is a staff announcement as typed into the command
type AnnouncementRequest struct {
	Title   string
	Message string
	// Roles and Users hold free-form mention text such as "<@&1>, <@&2>"
	Roles string
	Users string
	// AttachmentURL and AttachmentType describe an optional uploaded file
	AttachmentURL  string
	AttachmentType string
}

type announceService struct {
	gateway Gateway
}

// NewAnnounceService creates a service posting staff announcements
func NewAnnounceService(gateway Gateway) AnnounceService {
	return &announceService{gateway: gateway}
}

// Announce posts the announcement embed to channelID, pinging only the mentioned roles and users
func (s *announceService) Announce(ctx context.Context, channelID int64, req AnnouncementRequest) (int64, error) {
	msg, err := buildAnnouncement(req)
	if err != nil {
		return 0, err
	}

	messageID, err := s.gateway.SendMessage(ctx, channelID, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send announcement: %w", err)
	}

	log.WithFields(log.Fields{
		"channelID": channelID,
		"messageID": messageID,
		"roles":     len(msg.MentionRoleIDs),
		"users":     len(msg.MentionUserIDs),
	}).Info("Announcement sent")
	return messageID, nil
}

func buildAnnouncement(req AnnouncementRequest) (*models.Announcement, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > maxAnnouncementTitle {
		return nil, fmt.Errorf("%w: title must be between 1 and %d characters", ErrInvalidInput, maxAnnouncementTitle)
	}

	// Slash command inputs are single-line, so staff type a literal \n for a line break
	body := strings.ReplaceAll(req.Message, `\n`, "\n")
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(body); n > maxAnnouncementBody {
		return nil, fmt.Errorf("%w: message is limited to %d characters, got %d", ErrInvalidInput, maxAnnouncementBody, n)
	}

	msg := &models.Announcement{
		Title:          title,
		Description:    body,
		Color:          colorAnnouncement,
		MentionRoleIDs: mentionIDs(roleMentionPattern, req.Roles),
		MentionUserIDs: mentionIDs(userMentionPattern, req.Users),
	}

	if req.AttachmentURL != "" {
		if !strings.HasPrefix(req.AttachmentType, "image/") {
			return nil, fmt.Errorf("%w: the attached file is not an image or GIF", ErrInvalidInput)
		}
		msg.ImageURL = req.AttachmentURL
	}

	pings := make([]string, 0, len(msg.MentionRoleIDs)+len(msg.MentionUserIDs))
	for _, id := range msg.MentionRoleIDs {
		pings = append(pings, fmt.Sprintf("<@&%d>", id))
	}
	for _, id := range msg.MentionUserIDs {
		pings = append(pings, fmt.Sprintf("<@%d>", id))
	}
	msg.Content = strings.Join(pings, " ")

	return msg, nil
}

// mentionIDs extracts the distinct IDs of every mention matching pattern, in order of appearance
func mentionIDs(pattern *regexp.Regexp, text string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
