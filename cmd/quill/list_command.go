package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [stage]",
		Short: "List pipeline items, optionally filtered by stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var stages []store.Stage
			if len(args) == 1 {
				stage, ok := store.ParseStage(args[0])
				if !ok {
					return fmt.Errorf("unknown stage %q (known: %s)", args[0], stageNames())
				}
				stages = append(stages, stage)
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				items, err := st.List(cmd.Context(), stages...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items found")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						string(item.Stage),
						payloadSummary(item.PayloadRefs),
						strconv.Itoa(item.AttemptCount),
						item.PublishedPostID,
						item.StageUpdatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Stage", "Payload", "Attempts", "Post ID", "Updated"},
					rows, 0, 3,
				))
				return nil
			})
		},
	}
}

func payloadSummary(refs []string) string {
	if len(refs) == 0 {
		return "-"
	}
	base := filepath.Base(refs[0])
	if len(refs) == 1 {
		return base
	}
	return fmt.Sprintf("%s (+%d)", base, len(refs)-1)
}

func stageNames() string {
	stages := store.AllStages()
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, string(stage))
	}
	return strings.Join(names, ", ")
}
