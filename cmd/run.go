package cmd

import (
	"context"
	"fmt"
	"time"

	"herald/bot"
	"herald/config"
	"herald/database"
	"herald/events"
	"herald/infrastructure"
	"herald/infrastructure/observability"
	"herald/listeners"
	"herald/repository"
	"herald/scheduler"
	"herald/service"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	lifecycleStreamName = "HERALD_CAMPAIGNS"
	shutdownTimeout     = 10 * time.Second
)

// NewRunCommand creates the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:           "run",
		Short:         "Connect to Discord and serve campaigns",
		Long:          "Applies pending migrations, reconciles stored campaigns, then serves commands until interrupted.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")

	return cmd
}

// runBot wires every component, runs startup reconciliation and blocks until ctx is cancelled
func runBot(ctx context.Context, skipMigrations bool) error {
	log.Info("Starting herald...")

	cfg := config.Get()

	if !skipMigrations {
		if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
			return err
		}
	}

	// Metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics := observability.GetMetrics()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics provider")
		}
	}()

	// Database
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	// Lifecycle events
	eventBus := events.NewBus()
	natsClient, err := setupEventForwarding(ctx, cfg, eventBus, metrics)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Failed to close NATS connection")
			}
		}()
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Runtime state
	sched := scheduler.New(scheduler.WithSkewThreshold(cfg.ClockSkewThreshold))
	defer sched.Close()
	registry := listeners.NewRegistry()

	if err := metrics.RegisterGauges(observability.CounterFunc(sched.Pending), registry); err != nil {
		return fmt.Errorf("failed to register gauges: %w", err)
	}

	// Discord session and gateway adapter
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	gateway := bot.NewGateway(session, cfg.DiscordGuildID)

	// Services
	giveaways := service.NewGiveawayService(uowFactory, gateway, sched, metrics, service.GiveawayConfig{
		Emoji:          cfg.GiveawayEmoji,
		PingRoleID:     cfg.GiveawayPingRoleID,
		ResolveTimeout: cfg.ResolveTimeout,
		RetryDelay:     cfg.ResolveRetryDelay,
	})
	reactRoles := service.NewReactRoleService(uowFactory, gateway, registry, metrics)
	verification := service.NewVerificationService(uowFactory, gateway, registry, metrics, cfg.VerifiedRoleIDs)
	sticky := service.NewStickyService(uowFactory, gateway, cfg.StickyChannelIDs, cfg.StickyMessage)
	autoReact := service.NewAutoReactService(gateway, cfg.AutoReactChannelIDs, cfg.AutoReactEmojis)
	announcer := service.NewAnnounceService(gateway)
	reconciler := service.NewReconciler(uowFactory, gateway, giveaways, reactRoles, verification, metrics)

	discordBot := bot.New(bot.Config{
		Token:        cfg.DiscordToken,
		GuildID:      cfg.DiscordGuildID,
		StaffRoleIDs: cfg.StaffRoleIDs,
	}, session, registry, bot.Services{
		Giveaways:    giveaways,
		ReactRoles:   reactRoles,
		Verification: verification,
		Sticky:       sticky,
		AutoReact:    autoReact,
		Announce:     announcer,
		Reconciler:   reconciler,
	}, metrics)

	// Health endpoints
	if cfg.HealthPort > 0 {
		health := bot.NewHealthServer(cfg.HealthPort, discordBot.Ready)
		health.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := health.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Failed to shut down health server")
			}
		}()
	}

	if err := sticky.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize sticky channels: %w", err)
	}

	log.Info("Connecting to Discord...")
	if err := discordBot.Open(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	defer func() {
		if err := discordBot.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Discord session")
		}
	}()

	log.Info("Reconciling stored campaigns...")
	report, err := reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}
	log.WithFields(log.Fields{
		"giveawaysScheduled": report.GiveawaysScheduled,
		"giveawaysExpired":   report.GiveawaysExpired,
		"reactRoleAttached":  report.ReactRoleAttached,
		"verificationLive":   report.VerificationLive,
		"discarded":          report.Discarded,
		"skipped":            report.Skipped,
	}).Info("Reconciliation complete")

	if err := discordBot.MarkReady(); err != nil {
		return err
	}

	log.Info("Herald is running. Press Ctrl+C to exit.")
	<-ctx.Done()
	log.Info("Shutting down...")

	return nil
}

// setupEventForwarding forwards committed lifecycle events to NATS when servers are configured
func setupEventForwarding(ctx context.Context, cfg *config.Config, bus *events.Bus, metrics *observability.MetricsProvider) (*infrastructure.NATSClient, error) {
	if cfg.NATSServers == "" {
		log.Info("NATS_SERVERS not set, lifecycle events stay in-process")
		infrastructure.Forward(bus, infrastructure.NewNoopEventPublisher())
		return nil, nil
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers)
	connectCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(lifecycleStreamName, mapper.GetAllSubjects(), "Herald campaign lifecycle events"); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ensure lifecycle stream: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(client, mapper)
	publisher.SetObserver(func(eventType events.EventType, err error) {
		metrics.RecordNATSMessagePublished(string(eventType), err == nil)
	})
	infrastructure.Forward(bus, publisher)

	return client, nil
}
