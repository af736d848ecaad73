// Package storage provides the SQLite-backed durable implementation of
// the classification cache store and reference rule persistence.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finsift/finsift/internal/cache"
	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements cache.Store with a durable SQLite database, so
// classifications survive process restarts.
type SQLiteStore struct {
	db            *sql.DB
	dbPath        string
	minConfidence float64
}

var _ cache.Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS classification_cache (
	signature            TEXT PRIMARY KEY,
	category             TEXT NOT NULL,
	tax_category         TEXT NOT NULL DEFAULT '',
	is_tax_deductible    INTEGER NOT NULL DEFAULT 0,
	business_use_percent INTEGER NOT NULL DEFAULT 0,
	confidence           REAL NOT NULL,
	reasoning            TEXT NOT NULL DEFAULT '',
	source               TEXT NOT NULL,
	usage_count          INTEGER NOT NULL DEFAULT 0,
	last_updated         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS reference_rules (
	name                 TEXT PRIMARY KEY,
	category             TEXT NOT NULL,
	tax_category         TEXT NOT NULL DEFAULT '',
	keywords             TEXT NOT NULL DEFAULT '[]',
	merchant_fragments   TEXT NOT NULL DEFAULT '[]',
	priority             INTEGER NOT NULL DEFAULT 0,
	base_confidence      REAL NOT NULL,
	business_use_percent INTEGER NOT NULL DEFAULT 0,
	is_tax_deductible    INTEGER NOT NULL DEFAULT 0,
	is_active            INTEGER NOT NULL DEFAULT 1
);
`

// NewSQLiteStore opens (or creates) the database at dbPath and prepares
// the schema. minConfidence is the cache-admission threshold.
func NewSQLiteStore(dbPath string, minConfidence float64) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: dbPath is required", common.ErrInvalidConfig)
	}
	if minConfidence <= 0 {
		minConfidence = cache.DefaultMinConfidence
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:            db,
		dbPath:        dbPath,
		minConfidence: minConfidence,
	}, nil
}

// Get returns the cached entry for a signature, bumping its usage
// count, or common.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, signature string) (model.CacheEntry, error) {
	var (
		entry      model.CacheEntry
		deductible int
		source     string
	)

	row := s.db.QueryRowContext(ctx, `
		SELECT category, tax_category, is_tax_deductible, business_use_percent,
		       confidence, reasoning, source, usage_count, last_updated
		FROM classification_cache WHERE signature = ?`, signature)

	err := row.Scan(
		&entry.Result.Category,
		&entry.Result.TaxCategory,
		&deductible,
		&entry.Result.BusinessUsePercent,
		&entry.Result.Confidence,
		&entry.Result.Reasoning,
		&source,
		&entry.UsageCount,
		&entry.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheEntry{}, common.ErrNotFound
	}
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	entry.Result.IsTaxDeductible = deductible != 0
	entry.Result.Source = model.Source(source)

	if _, err := s.db.ExecContext(ctx,
		`UPDATE classification_cache SET usage_count = usage_count + 1 WHERE signature = ?`,
		signature); err != nil {
		return model.CacheEntry{}, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	entry.UsageCount++

	return entry, nil
}

// Put upserts a result, preserving the existing usage count. Results
// below the admission threshold are silently dropped.
func (s *SQLiteStore) Put(ctx context.Context, signature string, result model.ClassificationResult) error {
	result = result.Normalized()
	if result.Confidence < s.minConfidence {
		return nil
	}

	deductible := 0
	if result.IsTaxDeductible {
		deductible = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_cache
			(signature, category, tax_category, is_tax_deductible, business_use_percent,
			 confidence, reasoning, source, usage_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(signature) DO UPDATE SET
			category = excluded.category,
			tax_category = excluded.tax_category,
			is_tax_deductible = excluded.is_tax_deductible,
			business_use_percent = excluded.business_use_percent,
			confidence = excluded.confidence,
			reasoning = excluded.reasoning,
			source = excluded.source,
			last_updated = excluded.last_updated`,
		signature, result.Category, result.TaxCategory, deductible,
		result.BusinessUsePercent, result.Confidence, result.Reasoning,
		string(result.Source), time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// EvictOlderThan removes entries last updated before now-maxAge.
func (s *SQLiteStore) EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM classification_cache WHERE last_updated < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// CountEntries returns the number of cached classifications.
func (s *SQLiteStore) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM classification_cache`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return n, nil
}

// SaveRules upserts reference rules for use across restarts.
func (s *SQLiteStore) SaveRules(ctx context.Context, rules []model.ReferenceRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rule := range rules {
		keywords, err := json.Marshal(rule.Keywords)
		if err != nil {
			return fmt.Errorf("failed to encode keywords for rule %s: %w", rule.Name, err)
		}
		fragments, err := json.Marshal(rule.MerchantFragments)
		if err != nil {
			return fmt.Errorf("failed to encode fragments for rule %s: %w", rule.Name, err)
		}

		deductible, active := 0, 0
		if rule.IsTaxDeductible {
			deductible = 1
		}
		if rule.IsActive {
			active = 1
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reference_rules
				(name, category, tax_category, keywords, merchant_fragments,
				 priority, base_confidence, business_use_percent, is_tax_deductible, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				category = excluded.category,
				tax_category = excluded.tax_category,
				keywords = excluded.keywords,
				merchant_fragments = excluded.merchant_fragments,
				priority = excluded.priority,
				base_confidence = excluded.base_confidence,
				business_use_percent = excluded.business_use_percent,
				is_tax_deductible = excluded.is_tax_deductible,
				is_active = excluded.is_active`,
			rule.Name, rule.Category, rule.TaxCategory, string(keywords), string(fragments),
			rule.Priority, rule.BaseConfidence, rule.BusinessUsePercent, deductible, active,
		); err != nil {
			return fmt.Errorf("failed to save rule %s: %w", rule.Name, err)
		}
	}

	return tx.Commit()
}

// LoadRules returns all persisted reference rules.
func (s *SQLiteStore) LoadRules(ctx context.Context) ([]model.ReferenceRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, tax_category, keywords, merchant_fragments,
		       priority, base_confidence, business_use_percent, is_tax_deductible, is_active
		FROM reference_rules ORDER BY priority DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.ReferenceRule
	for rows.Next() {
		var (
			rule       model.ReferenceRule
			keywords   string
			fragments  string
			deductible int
			active     int
		)
		if err := rows.Scan(&rule.Name, &rule.Category, &rule.TaxCategory, &keywords,
			&fragments, &rule.Priority, &rule.BaseConfidence, &rule.BusinessUsePercent,
			&deductible, &active); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &rule.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords for rule %s: %w", rule.Name, err)
		}
		if err := json.Unmarshal([]byte(fragments), &rule.MerchantFragments); err != nil {
			return nil, fmt.Errorf("failed to decode fragments for rule %s: %w", rule.Name, err)
		}
		rule.IsTaxDeductible = deductible != 0
		rule.IsActive = active != 0
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
