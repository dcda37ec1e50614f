package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/store"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline stage counts and daemon state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				running := daemonRunning(cfg.LockPath())
				fmt.Fprintf(out, "Daemon: %s\n", runStateLabel(running, colorizeOutput()))
				fmt.Fprintf(out, "Database: %s\n\n", cfg.DatabasePath())

				total := 0
				rows := make([][]string, 0, len(stats))
				for _, stage := range store.AllStages() {
					count := stats[stage]
					total += count
					rows = append(rows, []string{string(stage), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(out, renderTable([]string{"Stage", "Items"}, rows, 1))
				return nil
			})
		},
	}
}

// daemonRunning probes the instance lock without disturbing a running daemon.
func daemonRunning(lockPath string) bool {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func runStateLabel(running, colorize bool) string {
	if running {
		if colorize {
			return ansiGreen + "running" + ansiReset
		}
		return "running"
	}
	if colorize {
		return ansiRed + "stopped" + ansiReset
	}
	return "stopped"
}

func colorizeOutput() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
