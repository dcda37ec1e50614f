package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/logging"
	"quill/internal/store"
)

// ErrInvalidTransition indicates a requested edge is not in the stage graph.
var ErrInvalidTransition = errors.New("invalid stage transition")

// TransitionContext carries edge-specific inputs. PublishedPostID is required
// on the queued -> published edge, Err on the queued -> failed edge.
// PayloadRefs, when non-nil, replaces the item's artifact locators as part of
// the same atomic write (used when generation promotes an item to queued).
// FailedAttempts records how many publish attempts failed during the sequence
// that led to this transition; the failed edge counts at least one.
type TransitionContext struct {
	PublishedPostID string
	Err             error
	PayloadRefs     []string
	FailedAttempts  int
}

// Transitioner is the sole write path for item stages. Every transition is a
// single atomic store operation; no component observes an intermediate state.
type Transitioner struct {
	store  *store.Store
	logger *slog.Logger
}

// NewTransitioner constructs a transitioner over the given store.
func NewTransitioner(st *store.Store, logger *slog.Logger) *Transitioner {
	return &Transitioner{
		store:  st,
		logger: logging.NewComponentLogger(logger, "transitioner"),
	}
}

// Transition validates the requested edge and applies it atomically.
// On invalid edges or missing context the item's prior state is untouched.
func (t *Transitioner) Transition(ctx context.Context, id int64, target store.Stage, tc TransitionContext) (*store.Item, error) {
	if _, ok := store.ParseStage(string(target)); !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, target)
	}

	item, err := t.store.Apply(ctx, id, func(item *store.Item) error {
		return applyTransition(item, target, tc)
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("stage transition",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldStage, string(item.Stage)),
		logging.Int("attempt_count", item.AttemptCount),
	)
	return item, nil
}

func applyTransition(item *store.Item, target store.Stage, tc TransitionContext) error {
	if !EdgeAllowed(item.Stage, target) {
		return fmt.Errorf("%w: %s -> %s (item %d)", ErrInvalidTransition, item.Stage, target, item.ID)
	}

	if tc.PayloadRefs != nil {
		item.PayloadRefs = append([]string(nil), tc.PayloadRefs...)
	}

	switch target {
	case store.StageQueued:
		// Entry to queued always resets the attempt counter, both from
		// processing and on manual re-queue of a failed item.
		item.AttemptCount = 0
		item.LastError = ""
	case store.StagePublished:
		postID := strings.TrimSpace(tc.PublishedPostID)
		if postID == "" {
			return fmt.Errorf("%w: published_post_id required for %s -> %s", ErrInvalidTransition, item.Stage, target)
		}
		item.PublishedPostID = postID
		if tc.FailedAttempts > 0 {
			item.AttemptCount += tc.FailedAttempts
		}
		item.LastError = ""
	case store.StageFailed:
		if tc.Err == nil {
			return fmt.Errorf("%w: error required for %s -> %s", ErrInvalidTransition, item.Stage, target)
		}
		if tc.FailedAttempts > 0 {
			item.AttemptCount += tc.FailedAttempts
		} else {
			item.AttemptCount++
		}
		item.LastError = tc.Err.Error()
	default:
		item.LastError = ""
	}

	item.Stage = target
	return nil
}
