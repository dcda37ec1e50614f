package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quill/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "publisher", "create post", "request failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "publisher", "create post", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", services.Wrap(services.ErrPermanent, "publisher", "auth", "rejected", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "store", "create", "empty payload", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "publisher", "init", "missing token", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "publisher", "post", "timeout", nil), false},
		{"untagged", errors.New("mystery"), false},
	}
	for _, tc := range cases {
		if got := services.IsPermanent(tc.err); got != tc.want {
			t.Errorf("%s: IsPermanent = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if services.IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
	if services.IsTransient(context.Canceled) {
		t.Error("cancellation must not be retried")
	}
	if !services.IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Error("deadline expiry should be transient")
	}
	if services.IsTransient(services.Wrap(services.ErrPermanent, "", "", "no", nil)) {
		t.Error("permanent errors must not be transient")
	}
}
