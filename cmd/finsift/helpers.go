package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/engine"
	"github.com/finsift/finsift/internal/llm"
	"github.com/finsift/finsift/internal/model"
	"github.com/finsift/finsift/internal/reference"
	"github.com/finsift/finsift/internal/storage"
	"github.com/spf13/viper"
)

// expandPath expands ~ and environment variables in a config path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// openStore opens the durable cache store at the configured path,
// creating parent directories as needed.
func openStore() (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/finsift/finsift.db"
	}
	dbPath = expandPath(dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not create the database directory for %s", dbPath), err)
	}

	store, err := storage.NewSQLiteStore(dbPath, viper.GetFloat64("cache.min_confidence"))
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open the classification database at %s", dbPath), err)
	}
	return store, nil
}

// loadRules returns the persisted reference rules, falling back to the
// built-in set when the store holds none.
func loadRules(ctx context.Context, store *storage.SQLiteStore) []model.ReferenceRule {
	if store != nil {
		rules, err := store.LoadRules(ctx)
		if err != nil {
			slog.Warn("failed to load reference rules, using defaults", "error", err)
		} else if len(rules) > 0 {
			return rules
		}
	}
	return reference.DefaultRules()
}

// loadProfile reads the user profile from configuration.
func loadProfile() model.UserProfile {
	return model.UserProfile{
		CountryCode:  viper.GetString("profile.country"),
		BusinessType: viper.GetString("profile.business_type"),
		Occupation:   viper.GetString("profile.occupation"),
		RuleContext:  viper.GetString("profile.rule_context"),
	}
}

// createAIClient builds the configured LLM client. API keys come from
// config or the provider's conventional environment variable.
func createAIClient() (llm.Client, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = "openai"
	}

	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		switch strings.ToLower(provider) {
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, common.NewUserError(
			fmt.Sprintf("no API key configured for provider %s; set llm.api_key or the provider's environment variable", provider),
			common.ErrMissingConfig)
	}

	return llm.NewClient(llm.Config{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       viper.GetString("llm.model"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Timeout:     viper.GetDuration("llm.timeout"),
	})
}

// buildOrchestrator wires the full pipeline from configuration. The
// caller owns closing the returned store.
func buildOrchestrator(ctx context.Context, skipAI bool) (*engine.Orchestrator, *storage.SQLiteStore, *engine.CostStatsTracker, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	stats := engine.NewCostStatsTracker()
	matcher := reference.NewMatcher(loadRules(ctx, store))

	var batchClassifier engine.AIClassifier
	if !skipAI {
		client, clientErr := createAIClient()
		if clientErr != nil {
			_ = store.Close()
			return nil, nil, nil, clientErr
		}
		batchClassifier = llm.NewBatchClassifier(
			client,
			stats,
			llm.PricingForModel(viper.GetString("llm.model")),
			llm.DefaultBatchConfig(),
			slog.Default())
	}

	cfg := engine.DefaultConfig()
	if v := viper.GetInt("engine.batch_size"); v > 0 {
		cfg.BatchSize = v
	}
	if v := viper.GetFloat64("engine.reference_min_confidence"); v > 0 {
		cfg.ReferenceMinConfidence = v
	}
	if v := viper.GetDuration("engine.pacing_delay"); v > 0 {
		cfg.PacingDelay = v
	}

	orch := engine.NewWithConfig(store, matcher, batchClassifier, stats, slog.Default(), cfg)
	return orch, store, stats, nil
}

func closeStore(store *storage.SQLiteStore) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func formatDuration(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).String()
}
