package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction represents a single financial transaction entering the
// classification pipeline. It is constructed by the caller and consumed
// read-only; the pipeline never mutates it.
type Transaction struct {
	Date         time.Time `json:"date"`
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchant_name,omitempty"`
	CategoryHint string    `json:"category_hint,omitempty"`
	Amount       float64   `json:"amount"`
}

// NewTransaction builds a transaction with a generated ID for sources
// that do not supply their own.
func NewTransaction(description string, amount float64, date time.Time) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		Description: description,
		Amount:      amount,
		Date:        date,
	}
}

// Validate checks the fields required before a transaction may enter
// the pipeline.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: transaction %s has an empty description", ErrInvalidTransaction, t.ID)
	}
	return nil
}

// UserProfile carries the caller's business context into prompts and
// reference matching. All fields are optional.
type UserProfile struct {
	CountryCode  string // ISO country code for jurisdiction, e.g. "AU"
	BusinessType string // e.g. "sole_trader"
	Occupation   string
	RuleContext  string // Free-text deduction-rule context supplied by the user
}
