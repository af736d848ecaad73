package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/finsift/finsift/internal/engine"
	"github.com/finsift/finsift/internal/model"
	"github.com/finsift/finsift/internal/ofx"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify transactions from a statement file",
		Long: `Classify transactions from an OFX/QFX statement or a JSON array.

Each transaction is resolved through the cheapest available tier:
cached results first, then deterministic reference rules, then AI in
batches. Every transaction gets a result; the worst case is a marked
low-confidence fallback.

Examples:
  finsift classify statement.ofx
  finsift classify transactions.json --format json
  finsift classify statement.qfx --no-ai`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("format", "summary", "output format (summary, json)")
	cmd.Flags().Bool("no-ai", false, "resolve from cache and reference rules only")
	cmd.Flags().Int("batch-size", 0, "transactions per AI call (default from config)")

	_ = viper.BindPFlag("classify.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("classify.no_ai", cmd.Flags().Lookup("no-ai"))
	_ = viper.BindPFlag("classify.batch_size", cmd.Flags().Lookup("batch-size"))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	noAI := viper.GetBool("classify.no_ai")

	txns, err := readTransactions(ctx, args[0])
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		cmd.Println("no transactions found in input")
		return nil
	}

	orch, store, _, err := buildOrchestrator(ctx, noAI)
	if err != nil {
		return err
	}
	defer closeStore(store)

	slog.Info("classifying transactions", "count", len(txns), "ai_enabled", !noAI)

	resp, err := orch.ProcessBatch(ctx, txns, engine.Options{
		Profile:   loadProfile(),
		BatchSize: viper.GetInt("classify.batch_size"),
		DisableAI: noAI,
	})
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	switch viper.GetString("classify.format") {
	case "json":
		return printJSON(cmd, txns, resp)
	case "summary":
		printSummary(cmd, txns, resp)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", viper.GetString("classify.format"))
	}
}

// readTransactions loads transactions from an OFX/QFX statement or a
// JSON array, chosen by file extension.
func readTransactions(ctx context.Context, path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return ofx.NewParser(slog.Default()).ParseFile(ctx, f)
	case ".json":
		var txns []model.Transaction
		if err := json.NewDecoder(f).Decode(&txns); err != nil {
			return nil, fmt.Errorf("failed to decode JSON transactions: %w", err)
		}
		for i := range txns {
			if txns[i].ID == "" {
				txns[i].ID = uuid.NewString()
			}
		}
		return txns, nil
	default:
		return nil, fmt.Errorf("unsupported input file type: %s", filepath.Ext(path))
	}
}

type classifiedTransaction struct {
	Transaction model.Transaction          `json:"transaction"`
	Result      model.ClassificationResult `json:"result"`
}

type classifyOutput struct {
	Transactions []classifiedTransaction `json:"transactions"`
	TotalCostUSD string                  `json:"total_cost_usd"`
	Breakdown    engine.CostBreakdown    `json:"cost_breakdown"`
	Insights     engine.Insights         `json:"insights"`
}

func printJSON(cmd *cobra.Command, txns []model.Transaction, resp *engine.BatchResponse) error {
	out := classifyOutput{
		Transactions: make([]classifiedTransaction, len(txns)),
		TotalCostUSD: resp.TotalCost.StringFixed(6),
		Breakdown:    resp.CostBreakdown,
		Insights:     resp.Insights,
	}
	for i := range txns {
		out.Transactions[i] = classifiedTransaction{Transaction: txns[i], Result: resp.Results[i]}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSummary(cmd *cobra.Command, txns []model.Transaction, resp *engine.BatchResponse) {
	for i, txn := range txns {
		r := resp.Results[i]
		deductible := " "
		if r.IsTaxDeductible {
			deductible = "D"
		}
		cmd.Printf("%-10s %8.2f  %-24s %-8s %s conf=%.2f biz=%d%% [%s]\n",
			txn.Date.Format("2006-01-02"),
			txn.Amount,
			truncate(txn.Description, 24),
			r.Category,
			deductible,
			r.Confidence,
			r.BusinessUsePercent,
			r.Source)
	}

	cmd.Println()
	cmd.Println(resp.Insights.Summary)
	cmd.Printf("AI calls: %d (%d failed), tokens in/out: %d/%d, cost: $%s, elapsed: %s\n",
		resp.CostBreakdown.AICalls,
		resp.CostBreakdown.AIFailures,
		resp.CostBreakdown.InputTokens,
		resp.CostBreakdown.OutputTokens,
		resp.TotalCost.StringFixed(6),
		formatDuration(resp.ProcessingTimeMs))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
