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

// StickyChannelRepository implements the StickyChannelRepository interface
type StickyChannelRepository struct {
	q queryable
}

// NewStickyChannelRepository creates a new sticky channel repository
func NewStickyChannelRepository(db *database.DB) *StickyChannelRepository {
	return &StickyChannelRepository{q: db.Pool}
}

// newStickyChannelRepositoryWithTx creates a new sticky channel repository with a transaction
func newStickyChannelRepositoryWithTx(tx queryable) service.StickyChannelRepository {
	return &StickyChannelRepository{q: tx}
}

// GetByChannel retrieves the state for a channel
func (r *StickyChannelRepository) GetByChannel(ctx context.Context, channelID int64) (*models.StickyChannel, error) {
	query := `
		SELECT channel_id, last_posted_message_id, sticky_message_id, updated_at
		FROM sticky_channels
		WHERE channel_id = $1
	`

	var s models.StickyChannel
	err := r.q.QueryRow(ctx, query, channelID).Scan(
		&s.ChannelID,
		&s.LastPostedMessageID,
		&s.StickyMessageID,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sticky channel %d: %w", channelID, err)
	}
	return &s, nil
}

// GetAll returns every sticky channel
func (r *StickyChannelRepository) GetAll(ctx context.Context) ([]*models.StickyChannel, error) {
	rows, err := r.q.Query(ctx, `
		SELECT channel_id, last_posted_message_id, sticky_message_id, updated_at
		FROM sticky_channels
		ORDER BY channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sticky channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.StickyChannel
	for rows.Next() {
		var s models.StickyChannel
		if err := rows.Scan(&s.ChannelID, &s.LastPostedMessageID, &s.StickyMessageID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sticky channel: %w", err)
		}
		channels = append(channels, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sticky channels: %w", err)
	}

	return channels, nil
}

// Upsert writes the state for a channel
func (r *StickyChannelRepository) Upsert(ctx context.Context, sticky *models.StickyChannel) error {
	query := `
		INSERT INTO sticky_channels (channel_id, last_posted_message_id, sticky_message_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel_id) DO UPDATE
		SET last_posted_message_id = EXCLUDED.last_posted_message_id,
		    sticky_message_id = EXCLUDED.sticky_message_id,
		    updated_at = NOW()
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		sticky.ChannelID,
		sticky.LastPostedMessageID,
		sticky.StickyMessageID,
	).Scan(&sticky.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sticky channel %d: %w", sticky.ChannelID, err)
	}
	return nil
}

// Delete removes the state for a channel
func (r *StickyChannelRepository) Delete(ctx context.Context, channelID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sticky_channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete sticky channel %d: %w", channelID, err)
	}
	return tag.RowsAffected() > 0, nil
}
