// Package eboekhouden provides an e-Boekhouden REST API client and types.
package eboekhouden

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MutationType is the kind of accounting transaction in e-Boekhouden.
type MutationType int

const (
	MutationOpeningBalance  MutationType = 0 // Beginbalans
	MutationPurchaseInvoice MutationType = 1 // Factuur ontvangen
	MutationSalesInvoice    MutationType = 2 // Factuur verstuurd
	MutationCustomerPayment MutationType = 3 // Factuurbetaling ontvangen
	MutationSupplierPayment MutationType = 4 // Factuurbetaling verstuurd
	MutationMoneyReceived   MutationType = 5 // Geld ontvangen
	MutationMoneySent       MutationType = 6 // Geld uitgegeven
	MutationMemorial        MutationType = 7 // Memoriaal
)

var mutationTypeNames = map[MutationType]string{
	MutationOpeningBalance:  "opening balance",
	MutationPurchaseInvoice: "purchase invoice",
	MutationSalesInvoice:    "sales invoice",
	MutationCustomerPayment: "customer payment",
	MutationSupplierPayment: "supplier payment",
	MutationMoneyReceived:   "money received",
	MutationMoneySent:       "money sent",
	MutationMemorial:        "memorial",
}

// Valid reports whether t is one of the known mutation types.
func (t MutationType) Valid() bool {
	_, ok := mutationTypeNames[t]
	return ok
}

func (t MutationType) String() string {
	if name, ok := mutationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// VAT inclusion markers of a mutation.
const (
	InclusiveVat = "IN"
	ExclusiveVat = "EX"
)

// Mutation is a single accounting transaction.
type Mutation struct {
	ID            int64           `json:"id"`
	Type          MutationType    `json:"type"`
	Date          string          `json:"date"` // YYYY-MM-DD
	Description   string          `json:"description,omitempty"`
	TermOfPayment int             `json:"termOfPayment,omitempty"`
	LedgerID      int64           `json:"ledgerId"`
	RelationID    int64           `json:"relationId,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	EntryNumber   string          `json:"entryNumber,omitempty"`
	InExVat       string          `json:"inExVat,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Rows          []MutationRow   `json:"rows,omitempty"`
}

// MutationRow is a ledger line of a mutation.
type MutationRow struct {
	LedgerID    int64           `json:"ledgerId"`
	VatCode     string          `json:"vatCode,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	VatAmount   decimal.Decimal `json:"vatAmount"`
	Description string          `json:"description,omitempty"`
}

// RowTotal sums the row amounts.
func (m *Mutation) RowTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range m.Rows {
		total = total.Add(r.Amount)
	}
	return total
}

// IsZero reports whether the mutation carries no amount at all.
func (m *Mutation) IsZero() bool {
	if !m.Amount.IsZero() {
		return false
	}
	for _, r := range m.Rows {
		if !r.Amount.IsZero() || !r.VatAmount.IsZero() {
			return false
		}
	}
	return true
}

// Ledger is an e-Boekhouden general ledger account (grootboekrekening).
type Ledger struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // BAL, VW, DEB, CRED, FIN, ...
}

// Relation is a customer or supplier (relatie).
type Relation struct {
	ID    int64  `json:"id"`
	Code  string `json:"code,omitempty"`
	Type  string `json:"type,omitempty"` // B (business) or P (private)
	Name  string `json:"name"`
	Email string `json:"emailAddress,omitempty"`
	IBAN  string `json:"iban,omitempty"`
}

// SessionRequest is the body of POST /v1/session.
type SessionRequest struct {
	AccessToken string `json:"accessToken"`
	Source      string `json:"source"`
}

// SessionResponse is returned by POST /v1/session.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// MutationsResponse is a page of mutations.
type MutationsResponse struct {
	Items []Mutation `json:"items"`
	Count int        `json:"count"`
}

// LedgersResponse is a page of ledgers.
type LedgersResponse struct {
	Items []Ledger `json:"items"`
	Count int      `json:"count"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is returned for non-2xx API responses.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("e-Boekhouden API error (status %d): %s - %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("e-Boekhouden API error (status %d): %s", e.Status, e.Code)
}
