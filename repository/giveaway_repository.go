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

const giveawayColumns = `id, channel_id, message_id, prize, winner_count, deadline, created_at`

// GiveawayRepository implements the GiveawayRepository interface
type GiveawayRepository struct {
	q queryable
}

// NewGiveawayRepository creates a new giveaway repository
func NewGiveawayRepository(db *database.DB) *GiveawayRepository {
	return &GiveawayRepository{q: db.Pool}
}

// newGiveawayRepositoryWithTx creates a new giveaway repository with a transaction
func newGiveawayRepositoryWithTx(tx queryable) service.GiveawayRepository {
	return &GiveawayRepository{q: tx}
}

func scanGiveaway(row pgx.Row) (*models.Giveaway, error) {
	var g models.Giveaway
	err := row.Scan(
		&g.ID,
		&g.ChannelID,
		&g.MessageID,
		&g.Prize,
		&g.WinnerCount,
		&g.Deadline,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create stores a new giveaway
func (r *GiveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	query := `
		INSERT INTO giveaways (channel_id, message_id, prize, winner_count, deadline)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		giveaway.ChannelID,
		giveaway.MessageID,
		giveaway.Prize,
		giveaway.WinnerCount,
		giveaway.Deadline,
	).Scan(&giveaway.ID, &giveaway.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create giveaway for message %d: %w", giveaway.MessageID, translateError(err))
	}

	return nil
}

func (r *GiveawayRepository) getByKey(ctx context.Context, key models.MessageKey, lock bool) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE channel_id = $1 AND message_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}

	g, err := scanGiveaway(r.q.QueryRow(ctx, query, key.ChannelID, key.MessageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway %s: %w", key, err)
	}
	return g, nil
}

// GetByKey retrieves a giveaway by its natural key
func (r *GiveawayRepository) GetByKey(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	return r.getByKey(ctx, key, false)
}

// GetByKeyForUpdate retrieves a giveaway and locks its row
func (r *GiveawayRepository) GetByKeyForUpdate(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	return r.getByKey(ctx, key, true)
}

// GetAll returns every stored giveaway ordered by deadline
func (r *GiveawayRepository) GetAll(ctx context.Context) ([]*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways ORDER BY deadline ASC, id ASC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query giveaways: %w", err)
	}
	defer rows.Close()

	var giveaways []*models.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		giveaways = append(giveaways, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate giveaways: %w", err)
	}

	return giveaways, nil
}

// Update applies a patch to a giveaway
func (r *GiveawayRepository) Update(ctx context.Context, key models.MessageKey, patch models.GiveawayPatch) (*models.Giveaway, error) {
	query := `
		UPDATE giveaways
		SET prize = COALESCE($3, prize),
		    winner_count = COALESCE($4, winner_count),
		    deadline = COALESCE($5, deadline)
		WHERE channel_id = $1 AND message_id = $2
		RETURNING ` + giveawayColumns

	g, err := scanGiveaway(r.q.QueryRow(ctx, query,
		key.ChannelID,
		key.MessageID,
		patch.Prize,
		patch.WinnerCount,
		patch.Deadline,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update giveaway %s: %w", key, err)
	}
	return g, nil
}

// Delete removes a giveaway
func (r *GiveawayRepository) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM giveaways WHERE channel_id = $1 AND message_id = $2`,
		key.ChannelID, key.MessageID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete giveaway %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}
