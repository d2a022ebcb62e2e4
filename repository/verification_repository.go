package repository

import (
	"context"
	"errors"
	"fmt"

	"herald/database"
	"herald/models"
	"herald/service"

	"github.com/jackc/pgx/v5"
)

// VerificationRepository implements the VerificationRepository interface.
// The table holds a single row with id = 1.
type VerificationRepository struct {
	q queryable
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{q: db.Pool}
}

// newVerificationRepositoryWithTx creates a new verification repository with a transaction
func newVerificationRepositoryWithTx(tx queryable) service.VerificationRepository {
	return &VerificationRepository{q: tx}
}

// EnsureExists creates the empty singleton on first boot
func (r *VerificationRepository) EnsureExists(ctx context.Context) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO verification_prompt (id, present)
		VALUES (1, FALSE)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return false, fmt.Errorf("failed to create verification prompt: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *VerificationRepository) get(ctx context.Context, lock bool) (*models.VerificationPrompt, error) {
	query := `SELECT present, channel_id, message_id, updated_at FROM verification_prompt WHERE id = 1`
	if lock {
		query += ` FOR UPDATE`
	}

	var p models.VerificationPrompt
	err := r.q.QueryRow(ctx, query).Scan(&p.Present, &p.ChannelID, &p.MessageID, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification prompt: %w", err)
	}
	return &p, nil
}

// Get returns the singleton
func (r *VerificationRepository) Get(ctx context.Context) (*models.VerificationPrompt, error) {
	return r.get(ctx, false)
}

// GetForUpdate returns the singleton and locks it
func (r *VerificationRepository) GetForUpdate(ctx context.Context) (*models.VerificationPrompt, error) {
	return r.get(ctx, true)
}

// Set marks the prompt present
func (r *VerificationRepository) Set(ctx context.Context, channelID, messageID int64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO verification_prompt (id, present, channel_id, message_id, updated_at)
		VALUES (1, TRUE, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET present = TRUE, channel_id = EXCLUDED.channel_id, message_id = EXCLUDED.message_id, updated_at = NOW()
	`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set verification prompt: %w", err)
	}
	return nil
}

// Clear marks the prompt absent
func (r *VerificationRepository) Clear(ctx context.Context) error {
	_, err := r.q.Exec(ctx, `
		UPDATE verification_prompt
		SET present = FALSE, channel_id = NULL, message_id = NULL, updated_at = NOW()
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to clear verification prompt: %w", err)
	}
	return nil
}
