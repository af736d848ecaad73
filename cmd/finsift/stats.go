package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache and rule statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			entries, err := store.CountEntries(ctx)
			if err != nil {
				return err
			}
			rules := loadRules(ctx, store)
			active := 0
			for _, r := range rules {
				if r.IsActive {
					active++
				}
			}

			cmd.Printf("cached classifications: %d\n", entries)
			cmd.Printf("reference rules:        %d (%d active)\n", len(rules), active)
			cmd.Printf("database:               %s\n", expandPath(viper.GetString("database.path")))
			return nil
		},
	}
}
