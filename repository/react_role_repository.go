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

// ReactRoleRepository implements the ReactRoleRepository interface
type ReactRoleRepository struct {
	q queryable
}

// NewReactRoleRepository creates a new react role repository
func NewReactRoleRepository(db *database.DB) *ReactRoleRepository {
	return &ReactRoleRepository{q: db.Pool}
}

// newReactRoleRepositoryWithTx creates a new react role repository with a transaction
func newReactRoleRepositoryWithTx(tx queryable) service.ReactRoleRepository {
	return &ReactRoleRepository{q: tx}
}

// GetByMessage retrieves a message record with its bindings
func (r *ReactRoleRepository) GetByMessage(ctx context.Context, key models.MessageKey) (*models.ReactRoleMessage, error) {
	query := `
		SELECT channel_id, message_id, created_at, updated_at
		FROM react_role_messages
		WHERE channel_id = $1 AND message_id = $2
	`

	var msg models.ReactRoleMessage
	err := r.q.QueryRow(ctx, query, key.ChannelID, key.MessageID).Scan(
		&msg.ChannelID,
		&msg.MessageID,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get react role message %s: %w", key, err)
	}

	bindings, err := r.getBindings(ctx, msg.MessageID)
	if err != nil {
		return nil, err
	}
	msg.Bindings = bindings

	return &msg, nil
}

func (r *ReactRoleRepository) getBindings(ctx context.Context, messageID int64) ([]models.ReactRoleBinding, error) {
	query := `
		SELECT emoji, role_id
		FROM react_role_bindings
		WHERE message_id = $1
		ORDER BY created_at ASC, emoji ASC, role_id ASC
	`

	rows, err := r.q.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings for message %d: %w", messageID, err)
	}
	defer rows.Close()

	var bindings []models.ReactRoleBinding
	for rows.Next() {
		var b models.ReactRoleBinding
		if err := rows.Scan(&b.Emoji, &b.RoleID); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bindings: %w", err)
	}

	return bindings, nil
}

// GetAll returns every message record with its bindings
func (r *ReactRoleRepository) GetAll(ctx context.Context) ([]*models.ReactRoleMessage, error) {
	query := `
		SELECT m.channel_id, m.message_id, m.created_at, m.updated_at, b.emoji, b.role_id
		FROM react_role_messages m
		LEFT JOIN react_role_bindings b ON b.message_id = m.message_id
		ORDER BY m.created_at ASC, m.message_id ASC, b.created_at ASC, b.emoji ASC, b.role_id ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query react role messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ReactRoleMessage
	byID := make(map[int64]*models.ReactRoleMessage)
	for rows.Next() {
		var (
			msg    models.ReactRoleMessage
			emoji  *string
			roleID *int64
		)
		if err := rows.Scan(&msg.ChannelID, &msg.MessageID, &msg.CreatedAt, &msg.UpdatedAt, &emoji, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan react role message: %w", err)
		}

		existing, ok := byID[msg.MessageID]
		if !ok {
			existing = &msg
			byID[msg.MessageID] = existing
			messages = append(messages, existing)
		}
		if emoji != nil && roleID != nil {
			existing.Bindings = append(existing.Bindings, models.ReactRoleBinding{Emoji: *emoji, RoleID: *roleID})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate react role messages: %w", err)
	}

	return messages, nil
}

// AddBinding stores a binding, creating the message record on first use
func (r *ReactRoleRepository) AddBinding(ctx context.Context, key models.MessageKey, binding models.ReactRoleBinding) (bool, error) {
	upsertMessage := `
		INSERT INTO react_role_messages (message_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO UPDATE SET updated_at = NOW()
		RETURNING channel_id
	`

	var channelID int64
	if err := r.q.QueryRow(ctx, upsertMessage, key.MessageID, key.ChannelID).Scan(&channelID); err != nil {
		return false, fmt.Errorf("failed to upsert react role message %s: %w", key, err)
	}
	if channelID != key.ChannelID {
		return false, fmt.Errorf("%w: message %d is bound in channel %d", service.ErrDuplicateKey, key.MessageID, channelID)
	}

	insertBinding := `
		INSERT INTO react_role_bindings (message_id, emoji, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`

	tag, err := r.q.Exec(ctx, insertBinding, key.MessageID, binding.Emoji, binding.RoleID)
	if err != nil {
		return false, fmt.Errorf("failed to insert binding on message %s: %w", key, err)
	}

	return tag.RowsAffected() > 0, nil
}

// RemoveRole removes every binding for a role and drops the message record once empty
func (r *ReactRoleRepository) RemoveRole(ctx context.Context, key models.MessageKey, roleID int64) ([]models.ReactRoleBinding, bool, error) {
	query := `
		DELETE FROM react_role_bindings b
		USING react_role_messages m
		WHERE b.message_id = m.message_id
		  AND m.channel_id = $1
		  AND m.message_id = $2
		  AND b.role_id = $3
		RETURNING b.emoji, b.role_id
	`

	rows, err := r.q.Query(ctx, query, key.ChannelID, key.MessageID, roleID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to remove role %d from message %s: %w", roleID, key, err)
	}

	var removed []models.ReactRoleBinding
	for rows.Next() {
		var b models.ReactRoleBinding
		if err := rows.Scan(&b.Emoji, &b.RoleID); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("failed to scan removed binding: %w", err)
		}
		removed = append(removed, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate removed bindings: %w", err)
	}

	if len(removed) == 0 {
		return nil, false, nil
	}

	deleteEmpty := `
		DELETE FROM react_role_messages m
		WHERE m.channel_id = $1 AND m.message_id = $2
		  AND NOT EXISTS (SELECT 1 FROM react_role_bindings b WHERE b.message_id = m.message_id)
	`

	tag, err := r.q.Exec(ctx, deleteEmpty, key.ChannelID, key.MessageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to delete empty react role message %s: %w", key, err)
	}

	return removed, tag.RowsAffected() > 0, nil
}

// Delete removes a message record and, by cascade, its bindings
func (r *ReactRoleRepository) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM react_role_messages WHERE channel_id = $1 AND message_id = $2`,
		key.ChannelID, key.MessageID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete react role message %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}
