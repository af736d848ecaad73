package main

import (
	"fmt"
	"strings"

	"github.com/finsift/finsift/internal/reference"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage deterministic reference rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesSeedCmd())
	cmd.AddCommand(rulesTestCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active reference rules by priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			rules := loadRules(ctx, store)
			cmd.Printf("%-22s %-18s %-16s %4s %5s %4s %s\n",
				"NAME", "CATEGORY", "TAX CATEGORY", "PRI", "CONF", "BIZ%", "DEDUCTIBLE")
			for _, r := range rules {
				if !r.IsActive {
					continue
				}
				deductible := "no"
				if r.IsTaxDeductible {
					deductible = "yes"
				}
				cmd.Printf("%-22s %-18s %-16s %4d %5.2f %4d %s\n",
					r.Name, r.Category, r.TaxCategory, r.Priority,
					r.BaseConfidence, r.BusinessUsePercent, deductible)
			}
			return nil
		},
	}
}

func rulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Persist the built-in rule set to the database",
		Long: `Persist the built-in rule set so it can be edited in place.
Existing rules with the same name are overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			rules := reference.DefaultRules()
			if err := store.SaveRules(ctx, rules); err != nil {
				return fmt.Errorf("failed to save rules: %w", err)
			}
			cmd.Printf("seeded %d reference rules\n", len(rules))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <description>",
		Short: "Dry-run a description against the reference matcher",
		Long: `Dry-run a transaction description against the reference rules
without touching the cache or calling AI.

Examples:
  finsift rules test "WILSON PARKING SYDNEY" --amount 25.00
  finsift rules test "SPOTIFY PREMIUM" --merchant SPOTIFY`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, _ := cmd.Flags().GetFloat64("amount")
			merchant, _ := cmd.Flags().GetString("merchant")
			description := strings.Join(args, " ")

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			matcher := reference.NewMatcher(loadRules(ctx, store))
			result, ok := matcher.Classify(description, amount, merchant)
			if !ok {
				cmd.Println("no reference match; this transaction would go to AI")
				return nil
			}

			cmd.Printf("category:     %s\n", result.Category)
			cmd.Printf("tax category: %s\n", result.TaxCategory)
			cmd.Printf("deductible:   %t\n", result.IsTaxDeductible)
			cmd.Printf("business use: %d%%\n", result.BusinessUsePercent)
			cmd.Printf("confidence:   %.2f\n", result.Confidence)
			cmd.Printf("reasoning:    %s\n", result.Reasoning)
			if result.Confidence < 0.8 {
				cmd.Println("(below the acceptance threshold; in a pipeline run this would go to AI)")
			}
			return nil
		},
	}

	cmd.Flags().Float64("amount", 0, "transaction amount")
	cmd.Flags().String("merchant", "", "merchant name")
	return cmd
}
