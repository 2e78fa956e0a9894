// Package beancount exports imported ledger documents as Beancount files.
package beancount

import "github.com/shopspring/decimal"

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      string            // YYYY-MM-DD
	Narration string            // Transaction description
	Payee     string            // Payee name (optional)
	Tags      []string          // Tags (e.g., ["opening"])
	Links     []string          // Links (e.g., ["F2024-001"])
	Metadata  map[string]string // Metadata key-value pairs
	Comment   string            // Comment line written above the transaction
	Postings  []Posting         // Transaction postings
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account  string          // Account name (e.g., "Assets:1100-Bank")
	Amount   decimal.Decimal // Amount (positive for debit, negative for credit)
	Currency string          // Currency code (e.g., "EUR")
	Comment  string          // Posting comment (optional)
}
