package service_test

import (
	"context"
	"testing"
	"time"

	"herald/events"
	"herald/listeners"
	"herald/models"
	"herald/repository"
	"herald/repository/testutil"
	"herald/scheduler"
	"herald/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type process struct {
	scheduler  *scheduler.Scheduler
	giveaways  service.GiveawayService
	reconciler *service.Reconciler
}

func startProcess(t *testing.T, testDB *testutil.TestDatabase, gateway *service.FakeGateway) *process {
	t.Helper()

	factory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	registry := listeners.NewRegistry()
	sched := scheduler.New()

	giveaways := service.NewGiveawayService(factory, gateway, sched, nil, service.GiveawayConfig{
		Emoji:          "🎉",
		ResolveTimeout: 10 * time.Second,
		RetryDelay:     time.Second,
	})
	reactRoles := service.NewReactRoleService(factory, gateway, registry, nil)
	verification := service.NewVerificationService(factory, gateway, registry, nil, nil)

	return &process{
		scheduler:  sched,
		giveaways:  giveaways,
		reconciler: service.NewReconciler(factory, gateway, giveaways, reactRoles, verification, nil),
	}
}

func countGiveaways(t *testing.T, testDB *testutil.TestDatabase) int {
	t.Helper()

	var n int
	require.NoError(t, testDB.DB.QueryRow(context.Background(), "SELECT COUNT(*) FROM giveaways").Scan(&n))
	return n
}

func TestGiveawaySurvivesRestart(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	gateway := service.NewFakeGateway()
	ctx := context.Background()

	first := startProcess(t, testDB, gateway)
	_, err := first.reconciler.Run(ctx)
	require.NoError(t, err)

	g, err := first.giveaways.CreateGiveaway(ctx, 500, "Restart prize", 1, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	gateway.AddReaction(g.Key(), "🎉", models.Participant{UserID: 101})

	// The process dies before the deadline and its timers go with it
	first.scheduler.Close()

	second := startProcess(t, testDB, gateway)
	defer second.scheduler.Close()

	report, err := second.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.GiveawaysScheduled)

	require.Eventually(t, func() bool {
		return len(gateway.SentWithTitle("🎉 GIVEAWAY ENDED 🎉")) == 1
	}, 10*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return countGiveaways(t, testDB) == 0
	}, 5*time.Second, 50*time.Millisecond)

	// A further restart finds nothing left to announce
	third := startProcess(t, testDB, gateway)
	defer third.scheduler.Close()

	report, err = third.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.GiveawaysScheduled+report.GiveawaysExpired)

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, gateway.SentWithTitle("🎉 GIVEAWAY ENDED 🎉"), 1)
}

func TestExpiredGiveawayResolvesOnceUnderDoubleReconciliation(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	gateway := service.NewFakeGateway()
	ctx := context.Background()

	messageID := gateway.AddMessage(500)
	gateway.AddReaction(models.MessageKey{ChannelID: 500, MessageID: messageID}, "🎉", models.Participant{UserID: 101})

	_, err := testDB.DB.Exec(ctx,
		`INSERT INTO giveaways (channel_id, message_id, prize, winner_count, deadline) VALUES ($1, $2, $3, $4, $5)`,
		int64(500), messageID, "Old prize", 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	a := startProcess(t, testDB, gateway)
	defer a.scheduler.Close()
	b := startProcess(t, testDB, gateway)
	defer b.scheduler.Close()

	_, err = a.reconciler.Run(ctx)
	require.NoError(t, err)
	_, err = b.reconciler.Run(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return countGiveaways(t, testDB) == 0
	}, 10*time.Second, 50*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, gateway.SentWithTitle("🎉 GIVEAWAY ENDED 🎉"), 1)
}
