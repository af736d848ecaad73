package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the classification cache",
	}

	cmd.AddCommand(cacheEvictCmd())
	return cmd
}

func cacheEvictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Remove cached classifications older than a given age",
		Long: `Remove cached classifications older than a given age. Eviction
is always explicit; nothing expires during lookups.

Examples:
  finsift cache evict --older-than 2160h   # 90 days
  finsift cache evict --older-than 24h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			olderThan, err := cmd.Flags().GetDuration("older-than")
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be a positive duration")
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			evicted, err := store.EvictOlderThan(ctx, olderThan)
			if err != nil {
				return fmt.Errorf("eviction failed: %w", err)
			}
			cmd.Printf("evicted %d cached classifications older than %s\n", evicted, olderThan)
			return nil
		},
	}

	cmd.Flags().Duration("older-than", 90*24*time.Hour, "evict entries last updated before now minus this duration")
	return cmd
}
