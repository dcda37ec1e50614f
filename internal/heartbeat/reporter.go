package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/store"
)

// Reporter periodically reads stage counts and emits a liveness report. It
// never writes pipeline state; a failing notification sink is logged and
// skipped so the pipeline keeps running without it.
type Reporter struct {
	store    *store.Store
	notifier notifications.Service
	logger   *slog.Logger
	interval time.Duration
}

// NewReporter builds a reporter with the configured heartbeat interval.
func NewReporter(cfg *config.Config, st *store.Store, notifier notifications.Service, logger *slog.Logger) *Reporter {
	return &Reporter{
		store:    st,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "heartbeat"),
		interval: cfg.HeartbeatInterval(),
	}
}

// Run emits reports until the context is cancelled. A non-positive interval
// disables reporting.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reportOnce(ctx)
		}
	}
}

func (r *Reporter) reportOnce(ctx context.Context) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		r.logger.Error("failed to read pipeline stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_stats_failed"),
		)
		return
	}

	report := FormatReport(stats)
	r.logger.Info("pipeline heartbeat",
		logging.String("report", report),
		logging.String(logging.FieldEventType, "heartbeat"),
	)
	if err := r.notifier.NotifyPipelineStatus(ctx, report); err != nil {
		r.logger.Warn("notification failed", logging.Error(err))
	}
}

// FormatReport renders stage counts in lifecycle order.
func FormatReport(stats map[store.Stage]int) string {
	title := cases.Title(language.Und)
	stages := store.AllStages()
	parts := make([]string, 0, len(stages))
	total := 0
	for _, stage := range stages {
		count := stats[stage]
		total += count
		parts = append(parts, fmt.Sprintf("%s %d", title.String(string(stage)), count))
	}
	return fmt.Sprintf("%s (total %d)", strings.Join(parts, ", "), total)
}
