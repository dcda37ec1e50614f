package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/config"
	"quill/internal/store"
)

var briefExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".txt":      {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Register a content brief with the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			if _, ok := briefExtensions[ext]; !ok {
				return fmt.Errorf("unsupported file extension %q", ext)
			}

			fingerprint, err := fingerprintFile(absPath)
			if err != nil {
				return fmt.Errorf("fingerprint file: %w", err)
			}

			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				item, err := st.Create(cmd.Context(), fingerprint, []string{absPath})
				if err != nil {
					if errors.Is(err, store.ErrDuplicateInput) {
						return fmt.Errorf("already registered: %s has the same content as an existing item", filepath.Base(absPath))
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered brief as item #%d (%s)\n", item.ID, filepath.Base(absPath))
				return nil
			})
		},
	}
}

// fingerprintFile computes the content hash used for input deduplication.
func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
