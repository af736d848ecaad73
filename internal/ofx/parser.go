// Package ofx ingests OFX/QFX statement files into transactions ready
// for classification.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/finsift/finsift/internal/model"
	"github.com/google/uuid"
)

// Parser reads OFX/QFX statements.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates an OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRegex  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess repairs formatting problems common in bank-exported files
// before handing the content to ofxgo: a mixed-case SEVERITY value and
// SGML tags missing their closing bracket.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = openTagRegex.ReplaceAllString(content, "$1>")
	return content
}

// ParseFile parses a statement and returns its transactions. OFX signs
// debits negative and credits positive; that sign is preserved, the
// rest of the pipeline reads direction from it.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var txns []model.Transaction
	statements := 0

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		for _, tx := range stmt.BankTranList.Transactions {
			txns = append(txns, convertTransaction(tx))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		for _, tx := range stmt.BankTranList.Transactions {
			txns = append(txns, convertTransaction(tx))
		}
	}

	p.logger.Info("parsed OFX file",
		"transactions", len(txns),
		"statements", statements)

	return txns, nil
}

func convertTransaction(tx ofxgo.Transaction) model.Transaction {
	amount, _ := tx.TrnAmt.Float64()

	id := string(tx.FiTID)
	if id == "" {
		id = uuid.NewString()
	}

	return model.Transaction{
		ID:           id,
		Date:         tx.DtPosted.Time,
		Description:  strings.TrimSpace(string(tx.Name)),
		MerchantName: extractMerchantName(tx),
		CategoryHint: hintForType(fmt.Sprintf("%v", tx.TrnType)),
		Amount:       amount,
	}
}

// hintForType maps the OFX transaction type to a category hint where
// the type is unambiguous. Returns "" otherwise.
func hintForType(trnType string) string {
	switch trnType {
	case "INT":
		return "Interest Income"
	case "FEE", "SRVCHG":
		return "Bank Fees"
	case "ATM", "CASH":
		return "Cash Withdrawal"
	default:
		return ""
	}
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"EFTPOS ",
}

// extractMerchantName derives the cleanest merchant name the statement
// offers. PAYEE wins when present; otherwise NAME, swapping in MEMO
// when NAME is a generic processor string.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	return cleanMerchantName(name)
}

func cleanMerchantName(name string) string {
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date stamps some processors prepend.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
