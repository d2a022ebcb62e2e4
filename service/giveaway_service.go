package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"herald/events"
	"herald/models"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	minPrizeLength = 2
	maxPrizeLength = 50

	// Resolution outcomes recorded in metrics
	OutcomeAnnounced        = "announced"
	OutcomeAnnounceFailed   = "announce_failed"
	OutcomeDiscarded        = "discarded"
	OutcomeRetryScheduled   = "retry_scheduled"
	OutcomeAlreadyResolved  = "already_resolved"
	OutcomeDeleteIncomplete = "delete_incomplete"
)

var errNotDue = errors.New("giveaway deadline has not passed")

// GiveawayConfig holds the giveaway settings taken from the bot config
type GiveawayConfig struct {
	Emoji          string
	PingRoleID     int64
	ResolveTimeout time.Duration
	RetryDelay     time.Duration
}

// GiveawayOption customizes a giveaway service
type GiveawayOption func(*giveawayService)

// WithWinnerSource replaces the random source used to draw winners
func WithWinnerSource(intn func(n int) int) GiveawayOption {
	return func(s *giveawayService) {
		s.intn = intn
	}
}

// WithGiveawayClock replaces the clock used to validate deadlines
func WithGiveawayClock(now func() time.Time) GiveawayOption {
	return func(s *giveawayService) {
		s.now = now
	}
}

// WithDeleteBackOff replaces the retry policy used when a resolved record cannot be deleted
func WithDeleteBackOff(newBackOff func() backoff.BackOff) GiveawayOption {
	return func(s *giveawayService) {
		s.newBackOff = newBackOff
	}
}

type giveawayService struct {
	uowFactory UnitOfWorkFactory
	gateway    Gateway
	scheduler  DeadlineScheduler
	metrics    LifecycleMetrics
	cfg        GiveawayConfig

	locks    *keyedMutex
	inflight singleflight.Group

	intn       func(n int) int
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewGiveawayService creates a new giveaway service
func NewGiveawayService(uowFactory UnitOfWorkFactory, gateway Gateway, scheduler DeadlineScheduler, metrics LifecycleMetrics, cfg GiveawayConfig, opts ...GiveawayOption) GiveawayService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}

	s := &giveawayService{
		uowFactory: uowFactory,
		gateway:    gateway,
		scheduler:  scheduler,
		metrics:    metrics,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		now:        time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, 5)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func giveawayTimerKey(key models.MessageKey) string {
	return "giveaway:" + key.String()
}

// CreateGiveaway posts the giveaway message, stores the record and arms its deadline
func (s *giveawayService) CreateGiveaway(ctx context.Context, channelID int64, prize string, winnerCount int, deadline time.Time) (*models.Giveaway, error) {
	prize = strings.TrimSpace(prize)
	if n := utf8.RuneCountInString(prize); n < minPrizeLength || n > maxPrizeLength {
		return nil, fmt.Errorf("%w: prize must be between %d and %d characters", ErrInvalidInput, minPrizeLength, maxPrizeLength)
	}
	if winnerCount < 1 {
		return nil, fmt.Errorf("%w: there must be at least one winner", ErrInvalidInput)
	}
	if deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is required", ErrInvalidInput)
	}

	messageID, err := s.gateway.SendMessage(ctx, channelID, giveawayAnnouncement(prize, winnerCount, deadline, s.cfg.Emoji))
	if err != nil {
		return nil, fmt.Errorf("failed to post giveaway message: %w", err)
	}

	giveaway := &models.Giveaway{
		ChannelID:   channelID,
		MessageID:   messageID,
		Prize:       prize,
		WinnerCount: winnerCount,
		Deadline:    deadline,
	}

	if err := s.storeGiveaway(ctx, giveaway); err != nil {
		// Nobody can enter a giveaway that was never stored, so take the message down again
		if delErr := s.gateway.DeleteMessage(ctx, channelID, messageID); delErr != nil {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"messageID": messageID,
				"error":     delErr,
			}).Warn("Failed to remove orphaned giveaway message")
		}
		return nil, err
	}

	if err := s.gateway.React(ctx, channelID, messageID, s.cfg.Emoji); err != nil {
		log.WithFields(log.Fields{
			"giveaway": giveaway.Key(),
			"emoji":    s.cfg.Emoji,
			"error":    err,
		}).Warn("Failed to add entry reaction to giveaway")
	}

	s.Arm(giveaway)

	log.WithFields(log.Fields{
		"giveaway":    giveaway.Key(),
		"prize":       giveaway.Prize,
		"winnerCount": giveaway.WinnerCount,
		"deadline":    giveaway.Deadline,
	}).Info("Giveaway created")

	return giveaway, nil
}

func (s *giveawayService) storeGiveaway(ctx context.Context, giveaway *models.Giveaway) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GiveawayRepository().Create(ctx, giveaway); err != nil {
		return fmt.Errorf("failed to store giveaway: %w", err)
	}

	uow.EventBus().Publish(events.GiveawayCreatedEvent{
		ChannelID:   giveaway.ChannelID,
		MessageID:   giveaway.MessageID,
		Prize:       giveaway.Prize,
		WinnerCount: giveaway.WinnerCount,
		Deadline:    giveaway.Deadline,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGiveaway cancels a giveaway without announcing it
func (s *giveawayService) DeleteGiveaway(ctx context.Context, key models.MessageKey) error {
	s.scheduler.Cancel(giveawayTimerKey(key))

	unlock := s.locks.Lock(key.String())
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaway, err := uow.GiveawayRepository().GetByKeyForUpdate(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil {
		return fmt.Errorf("giveaway %s: %w", key, ErrNotFound)
	}

	if err := s.deleteRecord(ctx, uow, key, events.GiveawayDeletedEvent{ChannelID: key.ChannelID, MessageID: key.MessageID}); err != nil {
		// The record survived, so it still needs its timer
		s.Arm(giveaway)
		return err
	}

	if err := s.gateway.DeleteMessage(ctx, key.ChannelID, key.MessageID); err != nil && !errors.Is(err, ErrNotFound) {
		log.WithFields(log.Fields{
			"giveaway": key,
			"error":    err,
		}).Warn("Giveaway deleted but its message could not be removed")
	}

	log.WithField("giveaway", key).Info("Giveaway deleted")
	return nil
}

// ExtendGiveaway moves a live giveaway's deadline
func (s *giveawayService) ExtendGiveaway(ctx context.Context, key models.MessageKey, deadline time.Time) (*models.Giveaway, error) {
	if !deadline.After(s.now()) {
		return nil, fmt.Errorf("%w: new deadline must be in the future", ErrInvalidInput)
	}

	unlock := s.locks.Lock(key.String())
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	current, err := uow.GiveawayRepository().GetByKeyForUpdate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("giveaway %s: %w", key, ErrNotFound)
	}

	updated, err := uow.GiveawayRepository().Update(ctx, key, models.GiveawayPatch{Deadline: &deadline})
	if err != nil {
		return nil, fmt.Errorf("failed to update giveaway: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("giveaway %s: %w", key, ErrNotFound)
	}

	uow.EventBus().Publish(events.GiveawayRescheduledEvent{
		ChannelID:   key.ChannelID,
		MessageID:   key.MessageID,
		OldDeadline: current.Deadline,
		NewDeadline: updated.Deadline,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.Arm(updated)

	log.WithFields(log.Fields{
		"giveaway":    key,
		"oldDeadline": current.Deadline,
		"newDeadline": updated.Deadline,
	}).Info("Giveaway deadline extended")

	return updated, nil
}

// ListGiveaways returns every pending giveaway
func (s *giveawayService) ListGiveaways(ctx context.Context) ([]*models.Giveaway, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	giveaways, err := uow.GiveawayRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list giveaways: %w", err)
	}
	return giveaways, nil
}

// Arm schedules resolution at the giveaway's deadline, immediately if it already passed
func (s *giveawayService) Arm(giveaway *models.Giveaway) {
	s.armAt(giveaway.Key(), giveaway.Deadline)
}

func (s *giveawayService) armAt(key models.MessageKey, fireAt time.Time) {
	replaced := s.scheduler.Schedule(giveawayTimerKey(key), fireAt, func() {
		s.onDeadline(key)
	})

	log.WithFields(log.Fields{
		"giveaway": key,
		"fireAt":   fireAt,
		"replaced": replaced,
	}).Debug("Giveaway deadline armed")
}

// onDeadline is the scheduler callback
func (s *giveawayService) onDeadline(key models.MessageKey) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResolveTimeout)
	defer cancel()

	_, err := s.resolveDue(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, errNotDue):
		// A stale timer from before an extension; the record was re-armed
		log.WithField("giveaway", key).Debug("Giveaway not due yet")
	case errors.Is(err, ErrNotFound):
		// Deleted, or a racing path got there first
		s.metrics.RecordGiveawayResolved(OutcomeAlreadyResolved)
		log.WithField("giveaway", key).Debug("Giveaway already resolved")
	case errors.Is(err, ErrInconsistent):
		// Announced; the record is retried on the next reconciliation
	default:
		s.metrics.RecordGiveawayResolved(OutcomeRetryScheduled)
		log.WithFields(log.Fields{
			"giveaway":   key,
			"retryDelay": s.cfg.RetryDelay,
			"error":      err,
		}).Warn("Giveaway resolution failed, retrying later")
		s.armAt(key, s.now().Add(s.cfg.RetryDelay))
	}
}

// ResolveGiveaway picks winners, announces them and deletes the record.
// Concurrent calls for the same key share one resolution.
func (s *giveawayService) ResolveGiveaway(ctx context.Context, key models.MessageKey) (*models.GiveawayResult, error) {
	return s.resolveShared(ctx, "now:"+key.String(), key, false)
}

// resolveDue resolves only when the stored deadline has passed
func (s *giveawayService) resolveDue(ctx context.Context, key models.MessageKey) (*models.GiveawayResult, error) {
	return s.resolveShared(ctx, "due:"+key.String(), key, true)
}

func (s *giveawayService) resolveShared(ctx context.Context, flight string, key models.MessageKey, dueOnly bool) (*models.GiveawayResult, error) {
	v, err, shared := s.inflight.Do(flight, func() (any, error) {
		return s.resolve(ctx, key, dueOnly)
	})
	if shared {
		log.WithField("giveaway", key).Debug("Joined in-flight giveaway resolution")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.GiveawayResult), nil
}

func (s *giveawayService) resolve(ctx context.Context, key models.MessageKey, dueOnly bool) (*models.GiveawayResult, error) {
	unlock := s.locks.Lock(key.String())
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The row lock excludes resolvers in other processes until this unit ends
	giveaway, err := uow.GiveawayRepository().GetByKeyForUpdate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	if giveaway == nil {
		return nil, fmt.Errorf("giveaway %s: %w", key, ErrNotFound)
	}
	if dueOnly && giveaway.Deadline.After(s.now()) {
		s.Arm(giveaway)
		return nil, fmt.Errorf("giveaway %s ends at %s: %w", key, giveaway.Deadline.Format(time.RFC3339), errNotDue)
	}

	reactions, err := s.gateway.FetchReactionUsers(ctx, key.ChannelID, key.MessageID, s.cfg.Emoji)
	if errors.Is(err, ErrNotFound) {
		return s.discard(ctx, uow, giveaway)
	}
	if err != nil {
		// Nothing durable has changed; the caller retries later
		return nil, fmt.Errorf("failed to fetch participants for giveaway %s: %w", key, err)
	}

	participants := make([]int64, 0, len(reactions))
	for _, p := range reactions {
		if !p.Bot {
			participants = append(participants, p.UserID)
		}
	}

	winners := SelectWinners(participants, giveaway.WinnerCount, s.intn)
	result := &models.GiveawayResult{
		Giveaway:     giveaway,
		Participants: len(participants),
		Winners:      winners,
	}

	if _, err := s.gateway.SendMessage(ctx, key.ChannelID, giveawayResultAnnouncement(giveaway, winners, s.cfg.PingRoleID)); err != nil {
		log.WithFields(log.Fields{
			"giveaway": key,
			"winners":  winners,
			"error":    err,
		}).Error("Failed to announce giveaway winners")
	} else {
		result.Announced = true
	}

	resolved := events.GiveawayResolvedEvent{
		ChannelID:    key.ChannelID,
		MessageID:    key.MessageID,
		Prize:        giveaway.Prize,
		Participants: result.Participants,
		Winners:      winners,
		Announced:    result.Announced,
	}

	if err := s.deleteRecord(ctx, uow, key, resolved); err != nil {
		log.WithFields(log.Fields{
			"giveaway": key,
			"error":    err,
		}).Warn("Failed to delete resolved giveaway, retrying")
		uow.Rollback()

		if err := s.retryDelete(key, resolved); err != nil {
			s.metrics.RecordGiveawayResolved(OutcomeDeleteIncomplete)
			log.WithFields(log.Fields{
				"giveaway": key,
				"error":    err,
			}).Error("Giveaway resolved but its record could not be deleted")
			return result, fmt.Errorf("giveaway %s resolved but not deleted: %w: %w", key, ErrInconsistent, err)
		}
	}

	if result.Announced {
		s.metrics.RecordGiveawayResolved(OutcomeAnnounced)
	} else {
		s.metrics.RecordGiveawayResolved(OutcomeAnnounceFailed)
	}

	log.WithFields(log.Fields{
		"giveaway":     key,
		"prize":        giveaway.Prize,
		"participants": result.Participants,
		"winners":      winners,
		"announced":    result.Announced,
	}).Info("Giveaway resolved")

	return result, nil
}

// discard drops a giveaway whose message no longer exists
func (s *giveawayService) discard(ctx context.Context, uow UnitOfWork, giveaway *models.Giveaway) (*models.GiveawayResult, error) {
	key := giveaway.Key()
	ev := events.CampaignDiscardedEvent{
		Campaign:  "giveaway",
		ChannelID: key.ChannelID,
		MessageID: key.MessageID,
		Reason:    "message deleted",
	}
	if err := s.deleteRecord(ctx, uow, key, ev); err != nil {
		return nil, err
	}

	s.metrics.RecordGiveawayResolved(OutcomeDiscarded)
	log.WithFields(log.Fields{
		"giveaway": key,
		"prize":    giveaway.Prize,
	}).Warn("Giveaway message is gone, discarded record without announcement")

	return &models.GiveawayResult{Giveaway: giveaway, Discarded: true}, nil
}

func (s *giveawayService) deleteRecord(ctx context.Context, uow UnitOfWork, key models.MessageKey, ev events.Event) error {
	if _, err := uow.GiveawayRepository().Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete giveaway: %w", err)
	}
	uow.EventBus().Publish(ev)
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// retryDelete deletes an announced giveaway in fresh units of work until it sticks.
// The in-process key lock is still held, so no second announcement can start here.
func (s *giveawayService) retryDelete(key models.MessageKey, ev events.GiveawayResolvedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResolveTimeout)
	defer cancel()

	attempt := 0
	operation := func() error {
		attempt++
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		err := s.deleteRecord(ctx, uow, key, ev)
		if err != nil {
			log.WithFields(log.Fields{
				"giveaway": key,
				"attempt":  attempt,
				"error":    err,
			}).Debug("Giveaway delete attempt failed")
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(s.newBackOff(), ctx))
}
