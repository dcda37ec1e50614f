package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/services"
)

// Outcome is the terminal result of a retry sequence. Coordinators always
// return an Outcome; failures never escape as panics or unclassified faults.
type Outcome struct {
	Err      error
	Attempts int
}

// OK reports whether the operation eventually succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Coordinator executes external operations with bounded retries and
// exponential backoff. Transient failures are retried until max attempts are
// exhausted; permanent failures stop the sequence immediately.
type Coordinator struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	opTimeout   time.Duration
	logger      *slog.Logger

	// sleep is replaceable in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewCoordinator builds a coordinator from configuration.
func NewCoordinator(cfg *config.Config, logger *slog.Logger) *Coordinator {
	return New(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BackoffBase)*time.Second,
		time.Duration(cfg.Retry.BackoffMax)*time.Second,
		time.Duration(cfg.Retry.OperationTimeout)*time.Second,
		logger,
	)
}

// New builds a coordinator from explicit settings.
func New(maxAttempts int, baseDelay, maxDelay, opTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &Coordinator{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		opTimeout:   opTimeout,
		logger:      logging.NewComponentLogger(logger, "retry"),
		sleep:       sleepContext,
	}
}

// MaxAttempts returns the configured attempt bound.
func (c *Coordinator) MaxAttempts() int {
	return c.maxAttempts
}

// Do runs op with bounded retries. Each attempt gets its own deadline; a
// deadline expiry counts as a transient failure. The sequence is cancellable
// through ctx without affecting other items' backoff timers.
func (c *Coordinator) Do(ctx context.Context, name string, op func(context.Context) error) Outcome {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Err: err, Attempts: attempt - 1}
		}

		lastErr = c.runAttempt(ctx, op)
		if lastErr == nil {
			return Outcome{Attempts: attempt}
		}
		if errors.Is(lastErr, context.Canceled) {
			return Outcome{Err: lastErr, Attempts: attempt}
		}
		if services.IsPermanent(lastErr) {
			c.logger.Warn("permanent failure, not retrying",
				logging.String("operation", name),
				logging.Int("attempt", attempt),
				logging.Error(lastErr),
			)
			return Outcome{Err: lastErr, Attempts: attempt}
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Debug("transient failure, backing off",
			logging.String("operation", name),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(lastErr),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Outcome{Err: err, Attempts: attempt}
		}
	}

	return Outcome{
		Err:      fmt.Errorf("exhausted %d attempts: %w", c.maxAttempts, lastErr),
		Attempts: c.maxAttempts,
	}
}

func (c *Coordinator) runAttempt(ctx context.Context, op func(context.Context) error) error {
	attemptCtx := ctx
	if c.opTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
	}
	err := op(attemptCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTransient, "retry", "attempt", "operation timed out", err)
	}
	return err
}

// backoffDelay doubles the base per attempt with half-interval jitter, capped
// at the configured maximum.
func (c *Coordinator) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			delay = c.maxDelay
			break
		}
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
