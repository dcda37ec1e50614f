package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display one item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				item, err := st.GetByID(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("item #%d not found", id)
					}
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Item #%d\n", item.ID)
				fmt.Fprintf(out, "  Stage:        %s\n", item.Stage)
				fmt.Fprintf(out, "  Fingerprint:  %s\n", item.Fingerprint)
				fmt.Fprintf(out, "  Created:      %s\n", item.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Updated:      %s\n", item.StageUpdatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Attempts:     %d\n", item.AttemptCount)
				if item.PublishedPostID != "" {
					fmt.Fprintf(out, "  Post ID:      %s\n", item.PublishedPostID)
				}
				if item.LastError != "" {
					fmt.Fprintf(out, "  Last error:   %s\n", item.LastError)
				}
				if len(item.PayloadRefs) > 0 {
					fmt.Fprintln(out, "  Payload:")
					for _, ref := range item.PayloadRefs {
						fmt.Fprintf(out, "    - %s\n", ref)
					}
				}
				return nil
			})
		},
	}
}
