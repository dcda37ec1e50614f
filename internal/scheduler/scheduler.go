package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/pipeline"
	"quill/internal/publisher"
	"quill/internal/retry"
	"quill/internal/store"
)

// Scheduler owns the queued stage. Each pass takes the oldest queued item,
// publishes it through the retry coordinator, and drives it to published or
// failed in a single transition. At most one item leaves the queue per rate
// limit window; the window spans the whole attempt sequence, not individual
// attempts, so a struggling platform is never hammered faster than a healthy
// one.
type Scheduler struct {
	store        *store.Store
	transitioner *pipeline.Transitioner
	publisher    publisher.Publisher
	coordinator  *retry.Coordinator
	limiter      *rate.Limiter
	notifier     notifications.Service
	logger       *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
}

// New wires the publish scheduler. A non-positive min_publish_interval
// disables rate limiting.
func New(
	cfg *config.Config,
	st *store.Store,
	transitioner *pipeline.Transitioner,
	pub publisher.Publisher,
	coordinator *retry.Coordinator,
	notifier notifications.Service,
	logger *slog.Logger,
) *Scheduler {
	limit := rate.Inf
	if interval := cfg.MinPublishInterval(); interval > 0 {
		limit = rate.Every(interval)
	}
	return &Scheduler{
		store:              st,
		transitioner:       transitioner,
		publisher:          pub,
		coordinator:        coordinator,
		limiter:            rate.NewLimiter(limit, 1),
		notifier:           notifier,
		logger:             logging.NewComponentLogger(logger, "scheduler"),
		pollInterval:       cfg.QueuePollInterval(),
		errorRetryInterval: cfg.ErrorRetryInterval(),
	}
}

// Run schedules publishes until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := s.runOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			s.wait(ctx, s.errorRetryInterval)
		case !worked:
			s.wait(ctx, s.pollInterval)
		}
	}
}

// runOnce publishes at most one queued item. It reports whether an item was
// taken off the queue.
func (s *Scheduler) runOnce(ctx context.Context) (bool, error) {
	items, err := s.store.ItemsByStage(ctx, store.StageQueued)
	if err != nil {
		s.logger.Error("failed to fetch queued items",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
		)
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	if !s.limiter.Allow() {
		return false, nil
	}

	if err := s.publishItem(ctx, items[0]); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Scheduler) publishItem(ctx context.Context, item *store.Item) error {
	requestID := uuid.NewString()
	logger := s.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldRequestID, requestID),
	)
	logger.Info("publishing item",
		logging.Int("payload_refs", len(item.PayloadRefs)),
		logging.String(logging.FieldEventType, "publish_started"),
	)

	var postID string
	attempt := item.AttemptCount
	outcome := s.coordinator.Do(ctx, "publish", func(ctx context.Context) error {
		id, err := s.publisher.Publish(ctx, publisher.Request{
			PayloadRefs: item.PayloadRefs,
			Attempt:     attempt,
		})
		if err != nil {
			attempt++
			return err
		}
		postID = id
		return nil
	})

	if errors.Is(outcome.Err, context.Canceled) {
		return outcome.Err
	}
	if outcome.OK() {
		return s.recordSuccess(ctx, logger, item, postID, outcome)
	}
	return s.recordFailure(ctx, logger, item, outcome)
}

func (s *Scheduler) recordSuccess(ctx context.Context, logger *slog.Logger, item *store.Item, postID string, outcome retry.Outcome) error {
	updated, err := s.transitioner.Transition(ctx, item.ID, store.StagePublished, pipeline.TransitionContext{
		PublishedPostID: postID,
		FailedAttempts:  outcome.Attempts - 1,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePost) {
			// The platform reused a post id already claimed by another
			// item. Park this one for operator review.
			return s.failItem(ctx, logger, item, fmt.Errorf("post id %s already recorded: %w", postID, err), outcome.Attempts)
		}
		logger.Error("failed to record publish",
			logging.Error(err),
			logging.String(logging.FieldEventType, "publish_record_failed"),
		)
		return err
	}

	logger.Info("item published",
		logging.String("published_post_id", updated.PublishedPostID),
		logging.Int("attempts", outcome.Attempts),
		logging.String(logging.FieldEventType, "publish_succeeded"),
	)
	if err := s.notifier.NotifyPublishSucceeded(ctx, updated.ID, updated.PublishedPostID); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
	return nil
}

func (s *Scheduler) recordFailure(ctx context.Context, logger *slog.Logger, item *store.Item, outcome retry.Outcome) error {
	return s.failItem(ctx, logger, item, outcome.Err, outcome.Attempts)
}

func (s *Scheduler) failItem(ctx context.Context, logger *slog.Logger, item *store.Item, cause error, attempts int) error {
	updated, err := s.transitioner.Transition(ctx, item.ID, store.StageFailed, pipeline.TransitionContext{
		Err:            cause,
		FailedAttempts: attempts,
	})
	if err != nil {
		logger.Error("failed to record publish failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "publish_record_failed"),
		)
		return err
	}

	logger.Warn("item failed",
		logging.Error(cause),
		logging.Int("attempts", attempts),
		logging.Int("attempt_count", updated.AttemptCount),
		logging.String(logging.FieldEventType, "publish_failed"),
	)
	if notifyErr := s.notifier.NotifyPublishFailed(ctx, updated.ID, updated.LastError); notifyErr != nil {
		logger.Warn("notification failed", logging.Error(notifyErr))
	}
	return nil
}

func (s *Scheduler) wait(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
