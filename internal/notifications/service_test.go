package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"quill/internal/notifications"
	"quill/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.NotifyPublishSucceeded(context.Background(), 1, "post-1"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapturingService(t *testing.T) (notifications.Service, *[]captured) {
	t.Helper()
	var messages []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		messages = append(messages, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	return notifications.NewService(cfg), &messages
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	svc, messages := newCapturingService(t)
	ctx := context.Background()

	if err := svc.NotifyPublishSucceeded(ctx, 7, "post-7"); err != nil {
		t.Fatalf("NotifyPublishSucceeded failed: %v", err)
	}
	if err := svc.NotifyPublishFailed(ctx, 8, "platform 500"); err != nil {
		t.Fatalf("NotifyPublishFailed failed: %v", err)
	}
	if err := svc.NotifyPipelineStatus(ctx, "queued: 3, published: 12"); err != nil {
		t.Fatalf("NotifyPipelineStatus failed: %v", err)
	}

	if len(*messages) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(*messages))
	}
	got := *messages
	if got[0].title != "Quill - Published" || got[0].tags != "quill,publish,completed" {
		t.Fatalf("unexpected success notification: %#v", got[0])
	}
	if got[1].priority != "high" {
		t.Fatalf("publish failure should be high priority: %#v", got[1])
	}
	if got[2].body != "queued: 3, published: 12" {
		t.Fatalf("status body not forwarded: %#v", got[2])
	}
}

func TestNtfyServiceRespectsCategoryToggles(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Publishes = false
	cfg.Notifications.Status = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	_ = svc.NotifyPublishSucceeded(ctx, 1, "post-1")
	_ = svc.NotifyPipelineStatus(ctx, "report")
	if hits != 0 {
		t.Fatalf("disabled categories must not send, got %d requests", hits)
	}

	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("test notification should always send, got %d requests", hits)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from rejecting sink")
	}
}
