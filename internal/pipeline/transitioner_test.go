package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/store"
	"quill/internal/testsupport"
)

func newTransitioner(t *testing.T) (*pipeline.Transitioner, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return pipeline.NewTransitioner(st, logging.NewNop()), st
}

func TestHappyPathToPublished(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-happy", "a.md")

	steps := []struct {
		target store.Stage
		tc     pipeline.TransitionContext
	}{
		{store.StageProcessing, pipeline.TransitionContext{}},
		{store.StageQueued, pipeline.TransitionContext{}},
		{store.StagePublished, pipeline.TransitionContext{PublishedPostID: "post-42"}},
	}
	for _, step := range steps {
		updated, err := tr.Transition(ctx, item.ID, step.target, step.tc)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.target, err)
		}
		if updated.Stage != step.target {
			t.Fatalf("expected stage %s, got %s", step.target, updated.Stage)
		}
	}

	final, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.PublishedPostID != "post-42" {
		t.Fatalf("expected post id recorded, got %q", final.PublishedPostID)
	}
	if final.LastError != "" {
		t.Fatalf("expected last error cleared, got %q", final.LastError)
	}
}

func TestInvalidEdgesRejectedAndStateUnchanged(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-invalid")

	cases := []store.Stage{store.StageQueued, store.StagePublished, store.StageFailed, store.StageInput}
	for _, target := range cases {
		_, err := tr.Transition(ctx, item.ID, target, pipeline.TransitionContext{
			PublishedPostID: "p", Err: errors.New("e"),
		})
		if !errors.Is(err, pipeline.ErrInvalidTransition) {
			t.Fatalf("input -> %s: expected ErrInvalidTransition, got %v", target, err)
		}
	}

	reloaded, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Stage != store.StageInput || reloaded.AttemptCount != 0 {
		t.Fatalf("state changed by rejected transitions: %#v", reloaded)
	}
}

func TestNoRegressionFromPublished(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-final")
	testsupport.AdvanceToQueued(t, st, item.ID)

	if _, err := tr.Transition(ctx, item.ID, store.StagePublished, pipeline.TransitionContext{PublishedPostID: "post-f"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, target := range store.AllStages() {
		_, err := tr.Transition(ctx, item.ID, target, pipeline.TransitionContext{
			PublishedPostID: "other", Err: errors.New("e"),
		})
		if !errors.Is(err, pipeline.ErrInvalidTransition) {
			t.Fatalf("published -> %s: expected rejection, got %v", target, err)
		}
	}
}

func TestPublishedRequiresPostID(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-nopost")
	testsupport.AdvanceToQueued(t, st, item.ID)

	_, err := tr.Transition(ctx, item.ID, store.StagePublished, pipeline.TransitionContext{})
	if !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected rejection without post id, got %v", err)
	}

	reloaded, _ := st.GetByID(ctx, item.ID)
	if reloaded.Stage != store.StageQueued || reloaded.PublishedPostID != "" {
		t.Fatalf("state changed: %#v", reloaded)
	}
}

func TestDuplicatePostIDRejected(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()

	first := testsupport.NewItem(t, st, "fp-dp-1")
	testsupport.AdvanceToQueued(t, st, first.ID)
	second := testsupport.NewItem(t, st, "fp-dp-2")
	testsupport.AdvanceToQueued(t, st, second.ID)

	if _, err := tr.Transition(ctx, first.ID, store.StagePublished, pipeline.TransitionContext{PublishedPostID: "post-x"}); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	_, err := tr.Transition(ctx, second.ID, store.StagePublished, pipeline.TransitionContext{PublishedPostID: "post-x"})
	if !errors.Is(err, store.ErrDuplicatePost) {
		t.Fatalf("expected ErrDuplicatePost, got %v", err)
	}

	reloaded, _ := st.GetByID(ctx, second.ID)
	if reloaded.Stage != store.StageQueued {
		t.Fatalf("second item should stay queued, got %s", reloaded.Stage)
	}
}

func TestFailureIncrementsAttemptsAndRequeueResets(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-fail")
	testsupport.AdvanceToQueued(t, st, item.ID)

	failed, err := tr.Transition(ctx, item.ID, store.StageFailed, pipeline.TransitionContext{Err: errors.New("platform 500")})
	if err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}
	if failed.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", failed.AttemptCount)
	}
	if failed.LastError != "platform 500" {
		t.Fatalf("expected last error recorded, got %q", failed.LastError)
	}

	requeued, err := tr.Transition(ctx, item.ID, store.StageQueued, pipeline.TransitionContext{})
	if err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if requeued.AttemptCount != 0 {
		t.Fatalf("expected attempts reset on queued entry, got %d", requeued.AttemptCount)
	}
	if requeued.LastError != "" {
		t.Fatalf("expected last error cleared, got %q", requeued.LastError)
	}
}

func TestFailedRequiresError(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-noerr")
	testsupport.AdvanceToQueued(t, st, item.ID)

	_, err := tr.Transition(ctx, item.ID, store.StageFailed, pipeline.TransitionContext{})
	if !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected rejection without error context, got %v", err)
	}
}

func TestPostIDSetOnlyWhenPublished(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-inv")

	stages := []struct {
		target store.Stage
		tc     pipeline.TransitionContext
	}{
		{store.StageProcessing, pipeline.TransitionContext{}},
		{store.StageQueued, pipeline.TransitionContext{}},
		{store.StageFailed, pipeline.TransitionContext{Err: errors.New("x")}},
		{store.StageQueued, pipeline.TransitionContext{}},
		{store.StagePublished, pipeline.TransitionContext{PublishedPostID: "post-inv"}},
	}
	for _, step := range stages {
		updated, err := tr.Transition(ctx, item.ID, step.target, step.tc)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.target, err)
		}
		hasPost := updated.PublishedPostID != ""
		isPublished := updated.Stage == store.StagePublished
		if hasPost != isPublished {
			t.Fatalf("post id invariant broken at %s: %#v", step.target, updated)
		}
	}
}

func TestPayloadRefsReplacedOnTransition(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, st, "fp-refs", "brief.md")

	if _, err := tr.Transition(ctx, item.ID, store.StageProcessing, pipeline.TransitionContext{}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	updated, err := tr.Transition(ctx, item.ID, store.StageQueued, pipeline.TransitionContext{
		PayloadRefs: []string{"brief.md", "out/post.txt", "out/thread.txt"},
	})
	if err != nil {
		t.Fatalf("to queued: %v", err)
	}
	want := []string{"brief.md", "out/post.txt", "out/thread.txt"}
	if len(updated.PayloadRefs) != len(want) {
		t.Fatalf("payload refs = %v, want %v", updated.PayloadRefs, want)
	}
	for i, ref := range want {
		if updated.PayloadRefs[i] != ref {
			t.Fatalf("payload refs = %v, want %v", updated.PayloadRefs, want)
		}
	}

	reloaded, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.PayloadRefs) != len(want) {
		t.Fatalf("persisted refs = %v, want %v", reloaded.PayloadRefs, want)
	}
}

func TestFailedAttemptsAccounting(t *testing.T) {
	tr, st := newTransitioner(t)
	ctx := context.Background()

	exhausted := testsupport.NewItem(t, st, "fp-attempts-a", "a.md")
	testsupport.AdvanceToQueued(t, st, exhausted.ID)
	updated, err := tr.Transition(ctx, exhausted.ID, store.StageFailed, pipeline.TransitionContext{
		Err:            errors.New("exhausted 3 attempts: timeout"),
		FailedAttempts: 3,
	})
	if err != nil {
		t.Fatalf("to failed: %v", err)
	}
	if updated.AttemptCount != 3 {
		t.Fatalf("attempt count = %d, want 3", updated.AttemptCount)
	}

	recovered := testsupport.NewItem(t, st, "fp-attempts-b", "b.md")
	testsupport.AdvanceToQueued(t, st, recovered.ID)
	updated, err = tr.Transition(ctx, recovered.ID, store.StagePublished, pipeline.TransitionContext{
		PublishedPostID: "post-attempts",
		FailedAttempts:  2,
	})
	if err != nil {
		t.Fatalf("to published: %v", err)
	}
	if updated.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", updated.AttemptCount)
	}
}
