package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"herald/events"
	"herald/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Reconciliation outcomes recorded in metrics
const (
	ReconcileScheduled = "scheduled"
	ReconcileExpired   = "expired"
	ReconcileAttached  = "attached"
	ReconcileDiscarded = "discarded"
	ReconcileSkipped   = "skipped"
)

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	GiveawaysScheduled int
	GiveawaysExpired   int
	ReactRoleAttached  int
	VerificationLive   bool
	Discarded          int
	Skipped            int
}

func (r *ReconcileReport) merge(other ReconcileReport) {
	r.GiveawaysScheduled += other.GiveawaysScheduled
	r.GiveawaysExpired += other.GiveawaysExpired
	r.ReactRoleAttached += other.ReactRoleAttached
	r.VerificationLive = r.VerificationLive || other.VerificationLive
	r.Discarded += other.Discarded
	r.Skipped += other.Skipped
}

// Reconciler rebuilds timers and listeners from durable state after a restart
type Reconciler struct {
	uowFactory   UnitOfWorkFactory
	gateway      Gateway
	giveaways    GiveawayService
	reactRoles   ReactRoleService
	verification VerificationService
	metrics      LifecycleMetrics
	now          func() time.Time
}

// NewReconciler creates a reconciler over the campaign services
func NewReconciler(uowFactory UnitOfWorkFactory, gateway Gateway, giveaways GiveawayService, reactRoles ReactRoleService, verification VerificationService, metrics LifecycleMetrics) *Reconciler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Reconciler{
		uowFactory:   uowFactory,
		gateway:      gateway,
		giveaways:    giveaways,
		reactRoles:   reactRoles,
		verification: verification,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Run reconciles every campaign kind. It only fails when durable state cannot be read;
// records whose messages are gone or unreachable are counted in the report.
// Running it again is safe: timers are replaced and listeners are attached once.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	if err := r.verification.Initialize(ctx); err != nil {
		return nil, err
	}

	var giveaways, reactRoles, verification ReconcileReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		giveaways, err = r.reconcileGiveaways(gctx)
		return err
	})
	g.Go(func() (err error) {
		reactRoles, err = r.reconcileReactRoles(gctx)
		return err
	})
	g.Go(func() (err error) {
		verification, err = r.reconcileVerification(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}

	report := &ReconcileReport{}
	report.merge(giveaways)
	report.merge(reactRoles)
	report.merge(verification)

	log.WithFields(log.Fields{
		"giveawaysScheduled": report.GiveawaysScheduled,
		"giveawaysExpired":   report.GiveawaysExpired,
		"reactRoleAttached":  report.ReactRoleAttached,
		"verificationLive":   report.VerificationLive,
		"discarded":          report.Discarded,
		"skipped":            report.Skipped,
	}).Info("Reconciliation complete")

	return report, nil
}

func (r *Reconciler) reconcileGiveaways(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return report, fmt.Errorf("failed to begin transaction: %w", err)
	}
	giveaways, err := uow.GiveawayRepository().GetAll(ctx)
	uow.Rollback()
	if err != nil {
		return report, fmt.Errorf("failed to load giveaways: %w", err)
	}

	for _, g := range giveaways {
		// Expired giveaways go through the scheduler too, which fires them at once
		if g.IsExpired(r.now()) {
			report.GiveawaysExpired++
			r.metrics.RecordReconciled("giveaway", ReconcileExpired)
		} else {
			report.GiveawaysScheduled++
			r.metrics.RecordReconciled("giveaway", ReconcileScheduled)
		}
		r.giveaways.Arm(g)
	}

	return report, nil
}

func (r *Reconciler) reconcileReactRoles(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return report, fmt.Errorf("failed to begin transaction: %w", err)
	}
	messages, err := uow.ReactRoleRepository().GetAll(ctx)
	uow.Rollback()
	if err != nil {
		return report, fmt.Errorf("failed to load react role messages: %w", err)
	}

	for _, msg := range messages {
		switch outcome := r.attachReactRole(ctx, msg); outcome {
		case ReconcileAttached:
			report.ReactRoleAttached++
		case ReconcileDiscarded:
			report.Discarded++
		default:
			report.Skipped++
		}
	}

	return report, nil
}

// attachReactRole verifies the backing message and attaches listeners for one record
func (r *Reconciler) attachReactRole(ctx context.Context, msg *models.ReactRoleMessage) string {
	key := msg.Key()

	err := r.gateway.FetchMessage(ctx, key.ChannelID, key.MessageID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := r.discardReactRole(ctx, key); err != nil {
			log.WithFields(log.Fields{
				"message": key,
				"error":   err,
			}).Error("Failed to discard react role record")
			r.metrics.RecordReconciled("react_role", ReconcileSkipped)
			return ReconcileSkipped
		}
		r.metrics.RecordReconciled("react_role", ReconcileDiscarded)
		return ReconcileDiscarded
	case err != nil:
		log.WithFields(log.Fields{
			"message": key,
			"error":   err,
		}).Warn("React role message unreachable, skipping")
		r.metrics.RecordReconciled("react_role", ReconcileSkipped)
		return ReconcileSkipped
	}

	r.reactRoles.AttachMessage(msg)
	r.metrics.RecordReconciled("react_role", ReconcileAttached)
	return ReconcileAttached
}

func (r *Reconciler) discardReactRole(ctx context.Context, key models.MessageKey) error {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.ReactRoleRepository().Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete react role message: %w", err)
	}
	uow.EventBus().Publish(events.CampaignDiscardedEvent{
		Campaign:  "react_role",
		ChannelID: key.ChannelID,
		MessageID: key.MessageID,
		Reason:    "message deleted",
	})
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.reactRoles.DetachMessage(key)

	log.WithField("message", key).Warn("React role message is gone, discarded its bindings")
	return nil
}

func (r *Reconciler) reconcileVerification(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	prompt, err := r.verification.GetPrompt(ctx)
	if err != nil {
		return report, err
	}
	key, ok := prompt.Key()
	if !ok {
		return report, nil
	}

	err = r.gateway.FetchMessage(ctx, key.ChannelID, key.MessageID)
	switch {
	case errors.Is(err, ErrNotFound):
		// ClearVerificationPrompt tolerates the message already being gone
		if err := r.verification.ClearVerificationPrompt(ctx); err != nil && !errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{
				"message": key,
				"error":   err,
			}).Error("Failed to discard verification prompt")
			report.Skipped++
			r.metrics.RecordReconciled("verification", ReconcileSkipped)
			return report, nil
		}
		log.WithField("message", key).Warn("Verification prompt message is gone, cleared the record")
		report.Discarded++
		r.metrics.RecordReconciled("verification", ReconcileDiscarded)
	case err != nil:
		log.WithFields(log.Fields{
			"message": key,
			"error":   err,
		}).Warn("Verification prompt unreachable, skipping")
		report.Skipped++
		r.metrics.RecordReconciled("verification", ReconcileSkipped)
	default:
		r.verification.AttachPrompt(prompt)
		report.VerificationLive = true
		r.metrics.RecordReconciled("verification", ReconcileAttached)
	}

	return report, nil
}

// Reattach re-runs the attach step for one react-role message
func (r *Reconciler) Reattach(ctx context.Context, channelID, messageID int64) error {
	key := models.MessageKey{ChannelID: channelID, MessageID: messageID}

	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	msg, err := uow.ReactRoleRepository().GetByMessage(ctx, key)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to get react role message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("react role message %s: %w", key, ErrNotFound)
	}

	switch r.attachReactRole(ctx, msg) {
	case ReconcileAttached:
		return nil
	case ReconcileDiscarded:
		return fmt.Errorf("react role message %s: %w", key, ErrInconsistent)
	default:
		return fmt.Errorf("react role message %s: %w", key, ErrExternalUnavailable)
	}
}
