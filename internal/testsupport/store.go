package testsupport

import (
	"context"
	"fmt"
	"testing"

	"quill/internal/config"
	"quill/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem registers a content item for tests using the provided store.
func NewItem(t testing.TB, st *store.Store, fingerprint string, refs ...string) *store.Item {
	t.Helper()

	item, err := st.Create(context.Background(), fingerprint, refs)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}

// AdvanceToQueued walks a fresh item through input -> processing -> queued
// using raw stage writes, for tests that start at the publish boundary.
func AdvanceToQueued(t testing.TB, st *store.Store, id int64) *store.Item {
	t.Helper()

	ctx := context.Background()
	for _, stage := range []store.Stage{store.StageProcessing, store.StageQueued} {
		target := stage
		if _, err := st.Apply(ctx, id, func(item *store.Item) error {
			item.Stage = target
			return nil
		}); err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
	}
	item, err := st.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	return item
}

// UniqueFingerprint returns a deterministic per-call fingerprint for tests.
func UniqueFingerprint(t testing.TB, n int) string {
	t.Helper()
	return fmt.Sprintf("%s-fp-%d", t.Name(), n)
}
