package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"quill/internal/config"
	"quill/internal/daemon"
	"quill/internal/generation"
	"quill/internal/heartbeat"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/pipeline"
	"quill/internal/publisher"
	"quill/internal/retry"
	"quill/internal/scheduler"
	"quill/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the quill daemon runtime loop and blocks until interrupted.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.LogLevel != "" {
		logger, err = logging.New(logging.Options{
			Level:       opts.LogLevel,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "quill.log")},
		})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "quilld.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open item store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	transitioner := pipeline.NewTransitioner(st, logger)
	coordinator := retry.NewCoordinator(cfg, logger)
	driver := generation.NewDriver(cfg, st, transitioner,
		generation.NewCommandGenerator(cfg, logger), coordinator, notifier, logger)
	reporter := heartbeat.NewReporter(cfg, st, notifier, logger)

	var sched *scheduler.Scheduler
	client, err := publisher.NewClient(cfg)
	switch {
	case err != nil:
		logger.Warn("publishing disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "publisher_unconfigured"),
		)
	default:
		sched = scheduler.New(cfg, st, transitioner, client, coordinator, notifier, logger)
	}

	d, err := daemon.New(cfg, st, logger, driver, sched, reporter)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("quill daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
