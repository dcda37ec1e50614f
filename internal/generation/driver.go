package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/pipeline"
	"quill/internal/retry"
	"quill/internal/services"
	"quill/internal/store"
)

// Driver moves items from input through processing into queued. For each item
// it runs the configured generator once per artifact kind and records the
// resulting locators alongside the source brief. A processing item found at
// startup is regenerated from scratch, so a crash mid-generation never leaves
// partial artifacts behind.
type Driver struct {
	store        *store.Store
	transitioner *pipeline.Transitioner
	generator    Generator
	kinds        []string
	coordinator  *retry.Coordinator
	notifier     notifications.Service
	logger       *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
}

// NewDriver wires the generation loop. The artifact kinds are taken from the
// configured command map; an empty map makes the driver a pass-through that
// promotes input items straight to queued.
func NewDriver(
	cfg *config.Config,
	st *store.Store,
	transitioner *pipeline.Transitioner,
	generator Generator,
	coordinator *retry.Coordinator,
	notifier notifications.Service,
	logger *slog.Logger,
) *Driver {
	kinds := make([]string, 0, len(cfg.Generation.Commands))
	for kind := range cfg.Generation.Commands {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	return &Driver{
		store:              st,
		transitioner:       transitioner,
		generator:          generator,
		kinds:              kinds,
		coordinator:        coordinator,
		notifier:           notifier,
		logger:             logging.NewComponentLogger(logger, "generation"),
		pollInterval:       cfg.QueuePollInterval(),
		errorRetryInterval: cfg.ErrorRetryInterval(),
	}
}

// Run processes items until the context is cancelled.
func (d *Driver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := d.runOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			d.wait(ctx, d.errorRetryInterval)
		case !worked:
			d.wait(ctx, d.pollInterval)
		}
	}
}

// runOnce handles at most one item. It reports whether an item was worked on.
func (d *Driver) runOnce(ctx context.Context) (bool, error) {
	item, err := d.nextItem(ctx)
	if err != nil {
		d.logger.Error("failed to fetch next item",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
		)
		return false, err
	}
	if item == nil {
		return false, nil
	}

	if err := d.processItem(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			return true, err
		}
		d.logger.Error("generation failed",
			logging.Error(err),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldEventType, "generation_failed"),
		)
		if notifyErr := d.notifier.NotifyError(ctx, err, fmt.Sprintf("generation of item %d", item.ID)); notifyErr != nil {
			d.logger.Warn("notification failed", logging.Error(notifyErr))
		}
		return true, err
	}
	return true, nil
}

// nextItem prefers fresh input and falls back to processing items left over
// from a previous run.
func (d *Driver) nextItem(ctx context.Context) (*store.Item, error) {
	for _, stage := range []store.Stage{store.StageInput, store.StageProcessing} {
		items, err := d.store.ItemsByStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items[0], nil
		}
	}
	return nil, nil
}

func (d *Driver) processItem(ctx context.Context, item *store.Item) error {
	if item.Stage == store.StageInput {
		updated, err := d.transitioner.Transition(ctx, item.ID, store.StageProcessing, pipeline.TransitionContext{})
		if err != nil {
			return err
		}
		item = updated
	}

	if len(item.PayloadRefs) == 0 {
		return services.Wrap(services.ErrValidation, "generation", "process",
			fmt.Sprintf("item %d has no source brief", item.ID), nil)
	}
	brief := item.PayloadRefs[0]

	refs := make([]string, 0, len(d.kinds)+1)
	refs = append(refs, brief)
	for _, kind := range d.kinds {
		var artifact string
		outcome := d.coordinator.Do(ctx, fmt.Sprintf("generate %s", kind), func(ctx context.Context) error {
			ref, err := d.generator.Generate(ctx, kind, brief)
			if err != nil {
				return err
			}
			artifact = ref
			return nil
		})
		if !outcome.OK() {
			return outcome.Err
		}
		refs = append(refs, artifact)
		d.logger.Info("artifact generated",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("kind", kind),
			logging.String("artifact", artifact),
			logging.Int("attempts", outcome.Attempts),
		)
	}

	_, err := d.transitioner.Transition(ctx, item.ID, store.StageQueued, pipeline.TransitionContext{PayloadRefs: refs})
	return err
}

func (d *Driver) wait(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
