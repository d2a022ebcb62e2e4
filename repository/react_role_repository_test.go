package repository

import (
	"context"
	"testing"

	"herald/models"
	"herald/repository/testutil"
	"herald/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactRoleRepository_AddBindingIsIdempotent(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewReactRoleRepository(testDB.DB)
	ctx := context.Background()
	key := models.MessageKey{ChannelID: 1, MessageID: 100}

	created, err := repo.AddBinding(ctx, key, testutil.CreateTestBinding("✅", 10))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.AddBinding(ctx, key, testutil.CreateTestBinding("✅", 10))
	require.NoError(t, err)
	assert.False(t, created)

	msg, err := repo.GetByMessage(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, []models.ReactRoleBinding{{Emoji: "✅", RoleID: 10}}, msg.Bindings)
}

func TestReactRoleRepository_MultipleBindingsShareMessage(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewReactRoleRepository(testDB.DB)
	ctx := context.Background()
	key := models.MessageKey{ChannelID: 1, MessageID: 200}

	for _, b := range []models.ReactRoleBinding{
		testutil.CreateTestBinding("✅", 10),
		testutil.CreateTestBinding("🔥", 20),
		testutil.CreateTestBinding("pepe:555", 10),
	} {
		_, err := repo.AddBinding(ctx, key, b)
		require.NoError(t, err)
	}

	msg, err := repo.GetByMessage(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Len(t, msg.Bindings, 3)

	other := models.MessageKey{ChannelID: 2, MessageID: 300}
	_, err = repo.AddBinding(ctx, other, testutil.CreateTestBinding("✅", 30))
	require.NoError(t, err)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all[0].Bindings, 3)
	assert.Len(t, all[1].Bindings, 1)
}

func TestReactRoleRepository_MessageIsBoundToOneChannel(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewReactRoleRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.AddBinding(ctx, models.MessageKey{ChannelID: 1, MessageID: 400}, testutil.CreateTestBinding("✅", 10))
	require.NoError(t, err)

	_, err = repo.AddBinding(ctx, models.MessageKey{ChannelID: 2, MessageID: 400}, testutil.CreateTestBinding("✅", 10))
	assert.ErrorIs(t, err, service.ErrDuplicateKey)
}

func TestReactRoleRepository_RemoveRole(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewReactRoleRepository(testDB.DB)
	ctx := context.Background()
	key := models.MessageKey{ChannelID: 1, MessageID: 500}

	_, err := repo.AddBinding(ctx, key, testutil.CreateTestBinding("✅", 10))
	require.NoError(t, err)
	_, err = repo.AddBinding(ctx, key, testutil.CreateTestBinding("🔥", 20))
	require.NoError(t, err)

	t.Run("unknown role removes nothing", func(t *testing.T) {
		removed, deleted, err := repo.RemoveRole(ctx, key, 999)
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.False(t, deleted)
	})

	t.Run("removing one of two keeps the record", func(t *testing.T) {
		removed, deleted, err := repo.RemoveRole(ctx, key, 10)
		require.NoError(t, err)
		assert.Equal(t, []models.ReactRoleBinding{{Emoji: "✅", RoleID: 10}}, removed)
		assert.False(t, deleted)

		msg, err := repo.GetByMessage(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, []models.ReactRoleBinding{{Emoji: "🔥", RoleID: 20}}, msg.Bindings)
	})

	t.Run("removing the last binding deletes the record", func(t *testing.T) {
		removed, deleted, err := repo.RemoveRole(ctx, key, 20)
		require.NoError(t, err)
		assert.Len(t, removed, 1)
		assert.True(t, deleted)

		msg, err := repo.GetByMessage(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, msg)
	})
}

func TestReactRoleRepository_DeleteCascades(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewReactRoleRepository(testDB.DB)
	ctx := context.Background()
	key := models.MessageKey{ChannelID: 1, MessageID: 600}

	_, err := repo.AddBinding(ctx, key, testutil.CreateTestBinding("✅", 10))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	var bindings int
	require.NoError(t, testDB.DB.QueryRow(ctx, `SELECT COUNT(*) FROM react_role_bindings WHERE message_id = $1`, key.MessageID).Scan(&bindings))
	assert.Zero(t, bindings)

	deleted, err = repo.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)
}
