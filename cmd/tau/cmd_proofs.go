// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pedronobrol/tau/services/tau/proofs"
)

var (
	proofsVerifiedOnly bool
	proofsMaxAge       time.Duration
)

var proofsCmd = &cobra.Command{
	Use:   "proofs",
	Short: "Manage the proof-certificate cache",
}

var proofsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *proofs.Store) error {
			st, err := store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("entries:   %d\n", st.TotalEntries)
			fmt.Printf("hits:      %d\n", st.CacheHits)
			fmt.Printf("misses:    %d\n", st.CacheMisses)
			fmt.Printf("size:      %d bytes\n", st.CacheSizeBytes)
			if !st.LastCleanup.IsZero() {
				fmt.Printf("cleanup:   %s\n", st.LastCleanup.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var proofsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored certificates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *proofs.Store) error {
			list, err := store.List(cmd.Context(), proofsVerifiedOnly)
			if err != nil {
				return err
			}
			for _, s := range list {
				mark := "✗"
				if s.Verified {
					mark = "✓"
				}
				fmt.Printf("%s %s  %-20s %s  accesses=%d\n",
					mark, s.Hash[:12], s.FunctionName,
					s.CreatedAt.Format("2006-01-02 15:04"), s.AccessCount)
			}
			fmt.Printf("%d certificate(s)\n", len(list))
			return nil
		})
	},
}

var proofsInvalidateCmd = &cobra.Command{
	Use:   "invalidate [hash]",
	Short: "Remove one certificate by hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *proofs.Store) error {
			found, err := store.Invalidate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no certificate with hash %s", args[0])
			}
			fmt.Println("invalidated", args[0])
			return nil
		})
	},
}

var proofsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every certificate and artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *proofs.Store) error {
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("cache cleared")
			return nil
		})
	},
}

var proofsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove certificates older than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *proofs.Store) error {
			maxAge := proofsMaxAge
			if maxAge == 0 {
				maxAge = cfg.Proofs.MaxAge.Std()
			}
			removed, err := store.Cleanup(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d certificate(s)\n", removed)
			return nil
		})
	},
}

func init() {
	proofsListCmd.Flags().BoolVar(&proofsVerifiedOnly, "verified", false, "only verified certificates")
	proofsCleanupCmd.Flags().DurationVar(&proofsMaxAge, "max-age", 0, "age threshold (default from config)")

	proofsCmd.AddCommand(proofsStatsCmd)
	proofsCmd.AddCommand(proofsListCmd)
	proofsCmd.AddCommand(proofsInvalidateCmd)
	proofsCmd.AddCommand(proofsClearCmd)
	proofsCmd.AddCommand(proofsCleanupCmd)
}

func withStore(fn func(*proofs.Store) error) error {
	store, err := proofs.Open(proofs.Config{Dir: cfg.Proofs.Dir, Logger: logger.Logger})
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
