// Package erp defines the ledger documents produced by the mutation import:
// journal entries, payment entries and sales/purchase invoices.
package erp

import (
	"github.com/shopspring/decimal"
)

// PartyType identifies the kind of party a document line refers to.
type PartyType string

const (
	PartyCustomer PartyType = "Customer"
	PartySupplier PartyType = "Supplier"
)

// AccountType is the ERP account type of a mapped ledger.
type AccountType string

const (
	AccountBank             AccountType = "Bank"
	AccountCash             AccountType = "Cash"
	AccountReceivable       AccountType = "Receivable"
	AccountPayable          AccountType = "Payable"
	AccountTax              AccountType = "Tax"
	AccountIncome           AccountType = "Income Account"
	AccountExpense          AccountType = "Expense Account"
	AccountEquity           AccountType = "Equity"
	AccountFixedAsset       AccountType = "Fixed Asset"
	AccountCurrentAsset     AccountType = "Current Asset"
	AccountCurrentLiability AccountType = "Current Liability"
	AccountTemporary        AccountType = "Temporary"
	AccountRoundOff         AccountType = "Round Off"
	AccountUnspecified      AccountType = ""
)

// IsParty reports whether lines on this account type must carry a party.
func (t AccountType) IsParty() bool {
	return t == AccountReceivable || t == AccountPayable
}

// IsLiquid reports whether the account holds money (bank or cash).
func (t AccountType) IsLiquid() bool {
	return t == AccountBank || t == AccountCash
}

// RootType is the balance sheet / profit and loss root of an account.
type RootType string

const (
	RootAsset     RootType = "Asset"
	RootLiability RootType = "Liability"
	RootEquity    RootType = "Equity"
	RootIncome    RootType = "Income"
	RootExpense   RootType = "Expense"
)

// Valid reports whether r is one of the known root types.
func (r RootType) Valid() bool {
	switch r {
	case RootAsset, RootLiability, RootEquity, RootIncome, RootExpense:
		return true
	}
	return false
}

// DocType names a document type.
type DocType string

const (
	DocJournalEntry    DocType = "Journal Entry"
	DocPaymentEntry    DocType = "Payment Entry"
	DocSalesInvoice    DocType = "Sales Invoice"
	DocPurchaseInvoice DocType = "Purchase Invoice"
)

// VoucherType is the journal entry voucher type.
type VoucherType string

const (
	VoucherJournal VoucherType = "Journal Entry"
	VoucherOpening VoucherType = "Opening Entry"
	VoucherBank    VoucherType = "Bank Entry"
	VoucherCash    VoucherType = "Cash Entry"
)

// JournalLine is one account row of a journal entry.
// Exactly one of Debit and Credit is non-zero.
type JournalLine struct {
	Account     string          `json:"account"`
	AccountType AccountType     `json:"account_type,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	PartyType   PartyType       `json:"party_type,omitempty"`
	Party       string          `json:"party,omitempty"`
	UserRemark  string          `json:"user_remark,omitempty"`
}

// Signed returns debit minus credit.
func (l JournalLine) Signed() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// JournalEntry is a double-entry journal voucher.
type JournalEntry struct {
	Name        string        `json:"name"`
	VoucherType VoucherType   `json:"voucher_type"`
	PostingDate string        `json:"posting_date"` // YYYY-MM-DD
	Title       string        `json:"title"`
	UserRemark  string        `json:"user_remark,omitempty"`
	IsOpening   bool          `json:"is_opening"`
	MutationID  int64         `json:"mutation_id"`
	Lines       []JournalLine `json:"accounts"`
}

// TotalDebit sums the debit side.
func (j *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range j.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side.
func (j *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range j.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// PaymentType is the direction of a payment entry.
type PaymentType string

const (
	PaymentReceive PaymentType = "Receive"
	PaymentPay     PaymentType = "Pay"
)

// PaymentReference allocates part of a payment to an invoice.
type PaymentReference struct {
	DocType         DocType         `json:"reference_doctype"`
	DocName         string          `json:"reference_name"`
	BillNo          string          `json:"bill_no,omitempty"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
}

// PaymentEntry moves money between a bank/cash account and a party account.
type PaymentEntry struct {
	Name              string             `json:"name"`
	PaymentType       PaymentType        `json:"payment_type"`
	PostingDate       string             `json:"posting_date"`
	PartyType         PartyType          `json:"party_type"`
	Party             string             `json:"party"`
	PaidFrom          string             `json:"paid_from"`
	PaidTo            string             `json:"paid_to"`
	PaidAmount        decimal.Decimal    `json:"paid_amount"`
	ReferenceNo       string             `json:"reference_no,omitempty"`
	ReferenceDate     string             `json:"reference_date,omitempty"`
	References        []PaymentReference `json:"references,omitempty"`
	UnallocatedAmount decimal.Decimal    `json:"unallocated_amount"`
	MutationID        int64              `json:"mutation_id"`
	Remarks           string             `json:"remarks,omitempty"`
}

// AllocatedAmount sums the invoice allocations.
func (p *PaymentEntry) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.References {
		total = total.Add(r.AllocatedAmount)
	}
	return total
}

// InvoiceKind distinguishes sales from purchase invoices.
type InvoiceKind string

const (
	InvoiceSales    InvoiceKind = "Sales"
	InvoicePurchase InvoiceKind = "Purchase"
)

// DocType returns the document type of the invoice kind.
func (k InvoiceKind) DocType() DocType {
	if k == InvoicePurchase {
		return DocPurchaseInvoice
	}
	return DocSalesInvoice
}

// PartyType returns the party type invoiced by this kind.
func (k InvoiceKind) PartyType() PartyType {
	if k == InvoicePurchase {
		return PartySupplier
	}
	return PartyCustomer
}

// InvoiceItem is a revenue or expense line on an invoice.
type InvoiceItem struct {
	Description string          `json:"description"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
}

// TaxLine is the VAT charged on an invoice for one VAT code.
type TaxLine struct {
	Account string          `json:"account_head"`
	VatCode string          `json:"vat_code"`
	Amount  decimal.Decimal `json:"tax_amount"`
}

// Invoice is a sales or purchase invoice.
type Invoice struct {
	Kind         InvoiceKind     `json:"kind"`
	Name         string          `json:"name"`
	PartyType    PartyType       `json:"party_type"`
	Party        string          `json:"party"`
	PostingDate  string          `json:"posting_date"`
	DueDate      string          `json:"due_date,omitempty"`
	BillNo       string          `json:"bill_no,omitempty"`
	PartyAccount string          `json:"party_account"`
	Items        []InvoiceItem   `json:"items"`
	Taxes        []TaxLine       `json:"taxes,omitempty"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Outstanding  decimal.Decimal `json:"outstanding_amount"`
	IsReturn     bool            `json:"is_return"`
	MutationID   int64           `json:"mutation_id"`
	Remarks      string          `json:"remarks,omitempty"`
}

// NetTotal sums the item amounts.
func (i *Invoice) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range i.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// TaxTotal sums the tax lines.
func (i *Invoice) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range i.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}
