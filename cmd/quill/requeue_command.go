package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/pipeline"
	"quill/internal/store"
)

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Send a failed item back to the publish queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				transitioner := pipeline.NewTransitioner(st, logging.NewNop())
				item, err := transitioner.Transition(cmd.Context(), id, store.StageQueued, pipeline.TransitionContext{})
				if err != nil {
					switch {
					case errors.Is(err, store.ErrNotFound):
						return fmt.Errorf("item #%d not found", id)
					case errors.Is(err, pipeline.ErrInvalidTransition):
						return fmt.Errorf("item #%d cannot be requeued from its current stage", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item #%d requeued for publishing (attempts reset from previous failure)\n", item.ID)
				return nil
			})
		},
	}
}
