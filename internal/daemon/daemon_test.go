package daemon_test

import (
	"context"
	"testing"

	"quill/internal/daemon"
	"quill/internal/generation"
	"quill/internal/heartbeat"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/pipeline"
	"quill/internal/retry"
	"quill/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	notifier := notifications.NewService(cfg)
	transitioner := pipeline.NewTransitioner(st, logger)
	coordinator := retry.NewCoordinator(cfg, logger)
	driver := generation.NewDriver(cfg, st, transitioner,
		generation.NewCommandGenerator(cfg, logger), coordinator, notifier, logger)
	reporter := heartbeat.NewReporter(cfg, st, notifier, logger)

	d, err := daemon.New(cfg, st, logger, driver, nil, reporter)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Publishing {
		t.Fatal("expected publishing to be disabled without a scheduler")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected constructor error")
	}
}
