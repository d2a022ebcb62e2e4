package common

import (
	"errors"
	"fmt"
	"strings"

	"herald/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// BotError represents a structured error with user-facing and internal messages
type BotError struct {
	UserMessage string      // Message shown to Discord user
	LogMessage  string      // Internal message for logging
	Err         error       // Underlying error
	Context     interface{} // Additional context for logging
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for user-caused issues
func NewUserError(userMessage string, logMessage string) *BotError {
	return &BotError{
		UserMessage: userMessage,
		LogMessage:  logMessage,
	}
}

// NewSystemError creates an error for system issues (database, gateway, unexpected state)
func NewSystemError(err error, logMessage string) *BotError {
	return &BotError{
		UserMessage: "Something went wrong. Please try again later.",
		LogMessage:  logMessage,
		Err:         err,
	}
}

// FromServiceError maps a campaign service error to the message a staff member should see
func FromServiceError(err error, logMessage string) *BotError {
	botErr := &BotError{LogMessage: logMessage, Err: err}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		// "invalid input: prize must be ..." -> "Prize must be ..."
		msg := strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
		botErr.UserMessage = capitalize(msg)
	case errors.Is(err, service.ErrNotFound):
		botErr.UserMessage = "That message or campaign no longer exists."
	case errors.Is(err, service.ErrDuplicateKey):
		botErr.UserMessage = "That campaign already exists."
	case errors.Is(err, service.ErrInconsistent):
		botErr.UserMessage = "The campaign's message is gone, so its record was discarded."
	case errors.Is(err, service.ErrExternalUnavailable):
		botErr.UserMessage = "Discord did not respond. Please try again in a moment."
	default:
		botErr.UserMessage = "Something went wrong. Please try again later."
	}
	return botErr
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RespondWithError sends an error message as an interaction response
func RespondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// FollowUpWithError sends an error message as a follow-up to a deferred interaction
func FollowUpWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: fmt.Sprintf("❌ %s", message),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Errorf("Error sending follow-up error message: %v", err)
	}
}

// HandleError processes a BotError and responds appropriately
func HandleError(s *discordgo.Session, i *discordgo.InteractionCreate, err error, deferred bool) {
	userMessage := "Something went wrong. Please try again later."

	var botErr *BotError
	if errors.As(err, &botErr) {
		log.WithFields(log.Fields{
			"user_id":      InteractionUserID(i),
			"command":      i.ApplicationCommandData().Name,
			"error":        botErr.Error(),
			"user_message": botErr.UserMessage,
			"context":      botErr.Context,
		}).Warn(botErr.LogMessage)
		userMessage = botErr.UserMessage
	} else {
		log.WithFields(log.Fields{
			"user_id": InteractionUserID(i),
			"command": i.ApplicationCommandData().Name,
			"error":   err.Error(),
		}).Error("Unexpected error in bot command")
	}

	if deferred {
		FollowUpWithError(s, i, userMessage)
	} else {
		RespondWithError(s, i, userMessage)
	}
}
