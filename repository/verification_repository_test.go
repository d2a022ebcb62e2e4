package repository

import (
	"context"
	"testing"

	"herald/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationRepository_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewVerificationRepository(testDB.DB)
	ctx := context.Background()

	prompt, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, prompt, "singleton is not created by migrations")

	created, err := repo.EnsureExists(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.EnsureExists(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	prompt, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, prompt)
	assert.False(t, prompt.Present)
	assert.Nil(t, prompt.ChannelID)
	assert.Nil(t, prompt.MessageID)

	require.NoError(t, repo.Set(ctx, 11, 22))
	prompt, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, prompt.Present)
	assert.Equal(t, testutil.Int64Ptr(11), prompt.ChannelID)
	assert.Equal(t, testutil.Int64Ptr(22), prompt.MessageID)

	require.NoError(t, repo.Clear(ctx))
	prompt, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, prompt.Present)
	assert.Nil(t, prompt.ChannelID)
	assert.Nil(t, prompt.MessageID)

	var rows int
	require.NoError(t, testDB.DB.QueryRow(ctx, `SELECT COUNT(*) FROM verification_prompt`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestVerificationRepository_RejectsSecondRow(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	_, err := testDB.DB.Exec(ctx, `INSERT INTO verification_prompt (id, present) VALUES (2, FALSE)`)
	assert.Error(t, err)
}
