package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"quill/internal/config"
	"quill/internal/generation"
	"quill/internal/heartbeat"
	"quill/internal/logging"
	"quill/internal/scheduler"
	"quill/internal/store"
)

// Daemon coordinates the background pipeline services and enforces
// single-instance execution through a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	driver    *generation.Driver
	scheduler *scheduler.Scheduler
	reporter  *heartbeat.Reporter

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Publishing   bool
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon. The scheduler may be nil when no publisher is
// configured; generation and heartbeat still run.
func New(
	cfg *config.Config,
	st *store.Store,
	logger *slog.Logger,
	driver *generation.Driver,
	sched *scheduler.Scheduler,
	reporter *heartbeat.Reporter,
) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || driver == nil || reporter == nil {
		return nil, errors.New("daemon requires config, store, logger, driver, and reporter")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		driver:    driver,
		scheduler: sched,
		reporter:  reporter,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quill daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	loops := []func(context.Context){
		d.driver.Run,
		d.reporter.Run,
	}
	if d.scheduler != nil {
		loops = append(loops, d.scheduler.Run)
	}
	d.wg.Add(len(loops))
	for _, loop := range loops {
		go func(run func(context.Context)) {
			defer d.wg.Done()
			run(runCtx)
		}(loop)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("publishing", d.scheduler != nil),
	)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Publishing:   d.scheduler != nil,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
