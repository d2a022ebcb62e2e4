package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnounce_SendsEmbedWithMentions(t *testing.T) {
	gateway := NewFakeGateway()
	svc := NewAnnounceService(gateway)

	id, err := svc.Announce(context.Background(), testChannelID, AnnouncementRequest{
		Title:   "  Server update  ",
		Message: `Maintenance tonight.\nBack soon.`,
		Roles:   "<@&11>, <@&12>, <@&11>",
		Users:   "<@21> <@!22>",
	})
	require.NoError(t, err)

	sent := gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, id, sent[0].MessageID)
	assert.Equal(t, testChannelID, sent[0].ChannelID)

	msg := sent[0].Announcement
	assert.Equal(t, "Server update", msg.Title)
	assert.Equal(t, "Maintenance tonight.\nBack soon.", msg.Description)
	assert.Equal(t, []int64{11, 12}, msg.MentionRoleIDs)
	assert.Equal(t, []int64{21, 22}, msg.MentionUserIDs)
	assert.Equal(t, "<@&11> <@&12> <@21> <@22>", msg.Content)
	assert.Empty(t, msg.ImageURL)
}

func TestAnnounce_RoleTextDoesNotPingUsers(t *testing.T) {
	gateway := NewFakeGateway()
	svc := NewAnnounceService(gateway)

	_, err := svc.Announce(context.Background(), testChannelID, AnnouncementRequest{
		Title:   "Hi",
		Message: "Body",
		Roles:   "<@&11> <@21> @everyone",
	})
	require.NoError(t, err)

	msg := gateway.Sent()[0].Announcement
	assert.Equal(t, []int64{11}, msg.MentionRoleIDs)
	assert.Empty(t, msg.MentionUserIDs)
	assert.NotContains(t, msg.Content, "everyone")
}

func TestAnnounce_Attachment(t *testing.T) {
	gateway := NewFakeGateway()
	svc := NewAnnounceService(gateway)
	ctx := context.Background()

	_, err := svc.Announce(ctx, testChannelID, AnnouncementRequest{
		Title:          "Art contest",
		Message:        "Winners below",
		AttachmentURL:  "https://cdn.example.com/winner.gif",
		AttachmentType: "image/gif",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/winner.gif", gateway.Sent()[0].Announcement.ImageURL)

	_, err = svc.Announce(ctx, testChannelID, AnnouncementRequest{
		Title:          "Rules",
		Message:        "See file",
		AttachmentURL:  "https://cdn.example.com/rules.pdf",
		AttachmentType: "application/pdf",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, gateway.Sent(), 1)
}

func TestAnnounce_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  AnnouncementRequest
		want string
	}{
		{"empty title", AnnouncementRequest{Title: "  ", Message: "Body"}, "title must be"},
		{"long title", AnnouncementRequest{Title: strings.Repeat("t", 257), Message: "Body"}, "title must be"},
		{"empty message", AnnouncementRequest{Title: "Hi", Message: " "}, "message is required"},
		{"long message", AnnouncementRequest{Title: "Hi", Message: strings.Repeat("m", 4097)}, "limited to 4096 characters, got 4097"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := NewFakeGateway()
			_, err := NewAnnounceService(gateway).Announce(context.Background(), testChannelID, tt.req)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, gateway.Sent())
		})
	}
}

func TestAnnounce_GatewayFailure(t *testing.T) {
	gateway := NewFakeGateway()
	gateway.SetSendFailure(true)

	_, err := NewAnnounceService(gateway).Announce(context.Background(), testChannelID, AnnouncementRequest{Title: "Hi", Message: "Body"})
	assert.ErrorIs(t, err, ErrExternalUnavailable)
}
