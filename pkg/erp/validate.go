package erp

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidDocument is wrapped by every validation failure.
var ErrInvalidDocument = errors.New("invalid document")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Validate checks that the journal entry is balanced and well formed.
func (j *JournalEntry) Validate() error {
	if j.PostingDate == "" {
		return invalid("journal entry has no posting date")
	}
	if len(j.Lines) < 2 {
		return invalid("journal entry needs at least two lines, got %d", len(j.Lines))
	}

	for i, l := range j.Lines {
		if l.Account == "" {
			return invalid("line %d has no account", i+1)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return invalid("line %d (%s) has a negative amount", i+1, l.Account)
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return invalid("line %d (%s) must have exactly one of debit or credit", i+1, l.Account)
		}
		if l.AccountType.IsParty() && (l.Party == "" || l.PartyType == "") {
			return invalid("line %d (%s) is a %s account and needs a party", i+1, l.Account, l.AccountType)
		}
	}

	debit, credit := j.TotalDebit(), j.TotalCredit()
	if !debit.Round(2).Equal(credit.Round(2)) {
		return invalid("journal entry is not balanced: debit %s, credit %s", debit.StringFixed(2), credit.StringFixed(2))
	}

	return nil
}

// Validate checks amounts, accounts and allocations of the payment.
func (p *PaymentEntry) Validate() error {
	if p.PostingDate == "" {
		return invalid("payment entry has no posting date")
	}
	if p.PaymentType != PaymentReceive && p.PaymentType != PaymentPay {
		return invalid("unknown payment type %q", p.PaymentType)
	}
	if p.Party == "" || p.PartyType == "" {
		return invalid("payment entry has no party")
	}
	if p.PaidFrom == "" || p.PaidTo == "" {
		return invalid("payment entry needs paid from and paid to accounts")
	}
	if p.PaidFrom == p.PaidTo {
		return invalid("paid from and paid to are the same account %s", p.PaidFrom)
	}
	if !p.PaidAmount.IsPositive() {
		return invalid("paid amount must be positive, got %s", p.PaidAmount.StringFixed(2))
	}
	if p.UnallocatedAmount.IsNegative() {
		return invalid("unallocated amount is negative")
	}

	for _, r := range p.References {
		if !r.AllocatedAmount.IsPositive() {
			return invalid("allocation to %s must be positive", r.DocName)
		}
	}

	// Unallocated may shrink later through overpayment corrections, so the
	// allocations only have to fit within the paid amount.
	if p.AllocatedAmount().Add(p.UnallocatedAmount).GreaterThan(p.PaidAmount) {
		return invalid("allocated %s plus unallocated %s exceeds paid amount %s",
			p.AllocatedAmount().StringFixed(2), p.UnallocatedAmount.StringFixed(2), p.PaidAmount.StringFixed(2))
	}

	return nil
}

// Validate checks the invoice totals.
func (i *Invoice) Validate() error {
	if i.Kind != InvoiceSales && i.Kind != InvoicePurchase {
		return invalid("unknown invoice kind %q", i.Kind)
	}
	if i.PostingDate == "" {
		return invalid("invoice has no posting date")
	}
	if i.Party == "" {
		return invalid("%s has no party", i.Kind.DocType())
	}
	if i.PartyAccount == "" {
		return invalid("%s has no party account", i.Kind.DocType())
	}
	if len(i.Items) == 0 {
		return invalid("%s has no items", i.Kind.DocType())
	}

	for n, it := range i.Items {
		if it.Account == "" {
			return invalid("item %d has no account", n+1)
		}
	}

	total := i.NetTotal().Add(i.TaxTotal())
	if !total.Round(2).Equal(i.GrandTotal.Round(2)) {
		return invalid("grand total %s does not match items plus taxes %s",
			i.GrandTotal.StringFixed(2), total.StringFixed(2))
	}
	if !i.GrandTotal.IsPositive() {
		return invalid("grand total must be positive, got %s", i.GrandTotal.StringFixed(2))
	}
	if i.Outstanding.IsNegative() || i.Outstanding.GreaterThan(i.GrandTotal) {
		return invalid("outstanding %s outside 0..%s", i.Outstanding.StringFixed(2), i.GrandTotal.StringFixed(2))
	}

	return nil
}

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
