package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

type paymentPlan struct {
	entry   *erp.PaymentEntry
	kind    erp.InvoiceKind
	billNos []string
}

// buildPayment builds the payment entry of a customer (3) or supplier (4)
// invoice payment. A negative amount is a refund and reverses the direction.
func (im *Importer) buildPayment(ctx context.Context, m *eboekhouden.Mutation) (*plan, error) {
	bank, err := im.account(m.LedgerID, "mutation")
	if err != nil {
		return nil, err
	}
	if err := requireType(bank, "mutation", erp.AccountBank, erp.AccountCash); err != nil {
		return nil, err
	}
	if len(m.Rows) == 0 {
		return nil, ErrNoRows
	}

	customer := m.Type == eboekhouden.MutationCustomerPayment
	want := erp.AccountPayable
	kind := erp.InvoicePurchase
	if customer {
		want = erp.AccountReceivable
		kind = erp.InvoiceSales
	}

	ledgerID := m.Rows[0].LedgerID
	for _, row := range m.Rows[1:] {
		if row.LedgerID != ledgerID {
			return nil, fmt.Errorf("payment rows use more than one ledger (%d and %d)", ledgerID, row.LedgerID)
		}
	}
	partyAccount, err := im.account(ledgerID, "row 1")
	if err != nil {
		return nil, err
	}
	if err := requireType(partyAccount, "row", want); err != nil {
		return nil, err
	}

	amount := m.Amount
	if amount.IsZero() {
		amount = m.RowTotal()
	}
	amount = erp.Round2(amount)
	refund := amount.IsNegative()
	if refund {
		amount = amount.Neg()
	}

	party, err := im.party(ctx, m, kind.PartyType())
	if err != nil {
		return nil, err
	}

	pe := &erp.PaymentEntry{
		PostingDate:       m.Date,
		PartyType:         kind.PartyType(),
		Party:             party,
		PaidAmount:        amount,
		UnallocatedAmount: amount,
		ReferenceNo:       referenceNo(m),
		ReferenceDate:     m.Date,
		MutationID:        m.ID,
		Remarks:           remark(m),
	}

	if customer != refund {
		pe.PaymentType = erp.PaymentReceive
		pe.PaidFrom = partyAccount.Account
		pe.PaidTo = bank.Account
	} else {
		pe.PaymentType = erp.PaymentPay
		pe.PaidFrom = bank.Account
		pe.PaidTo = partyAccount.Account
	}

	if err := pe.Validate(); err != nil {
		return nil, err
	}

	pp := &paymentPlan{entry: pe, kind: kind}
	if !refund {
		pp.billNos = splitInvoiceNumbers(m.InvoiceNumber)
	}
	return &plan{payment: pp}, nil
}

func referenceNo(m *eboekhouden.Mutation) string {
	switch {
	case m.InvoiceNumber != "":
		return m.InvoiceNumber
	case m.EntryNumber != "":
		return m.EntryNumber
	default:
		return strconv.FormatInt(m.ID, 10)
	}
}

// persistPayment allocates the payment to the referenced open invoices,
// oldest first, and stores it. A remainder after at least one allocation
// is an overpayment.
func (im *Importer) persistPayment(ctx context.Context, tx *sql.Tx, m *eboekhouden.Mutation, pp *paymentPlan, result *Result) error {
	pe := pp.entry
	remaining := pe.PaidAmount
	matched := 0

	if len(pp.billNos) > 0 {
		invoices, err := im.docs.OpenInvoices(ctx, tx, pp.kind, pe.Party, pp.billNos)
		if err != nil {
			return err
		}

		found := make(map[string]bool, len(invoices))
		for _, inv := range invoices {
			found[inv.BillNo] = true
			if inv.IsReturn || !remaining.IsPositive() {
				continue
			}

			allocated := minDecimal(remaining, inv.Outstanding)
			pe.References = append(pe.References, erp.PaymentReference{
				DocType:         pp.kind.DocType(),
				DocName:         inv.Name,
				BillNo:          inv.BillNo,
				AllocatedAmount: allocated,
			})
			if err := im.docs.UpdateInvoiceOutstanding(ctx, tx, inv.Name, inv.Outstanding.Sub(allocated)); err != nil {
				return err
			}
			remaining = remaining.Sub(allocated)
			matched++
		}

		var missing []string
		for _, b := range pp.billNos {
			if !found[b] {
				missing = append(missing, b)
			}
		}
		if len(missing) > 0 {
			im.logger.Warn("Payment references invoices without outstanding amount",
				"mutation_id", m.ID, "party", pe.Party, "invoices", strings.Join(missing, ","))
		}
	}

	pe.UnallocatedAmount = remaining

	name, err := im.docs.NextName(ctx, tx, erp.DocPaymentEntry, pe.PostingDate)
	if err != nil {
		return err
	}
	pe.Name = name

	if err := pe.Validate(); err != nil {
		return err
	}
	if err := im.docs.InsertPayment(ctx, tx, pe); err != nil {
		return err
	}

	result.DocType = erp.DocPaymentEntry
	result.DocName = name
	result.Message = fmt.Sprintf("allocated %s to %d invoice(s), unallocated %s",
		pe.AllocatedAmount().StringFixed(2), matched, remaining.StringFixed(2))

	if matched > 0 && remaining.IsPositive() {
		result.Overpayment = true
		im.logger.Warn("Overpayment detected",
			"mutation_id", m.ID, "party", pe.Party, "payment", name, "unallocated", remaining.StringFixed(2))
	}
	return nil
}

// applyCorrection consumes unallocated amounts of the party's earlier
// payments, oldest first.
func (im *Importer) applyCorrection(ctx context.Context, tx *sql.Tx, c *correction) (string, error) {
	consumed := decimal.Zero
	touched := 0

	for _, pa := range c.amounts {
		remaining := pa.amount
		payments, err := im.docs.OpenPayments(ctx, tx, pa.partyType, pa.party)
		if err != nil {
			return "", err
		}

		for _, p := range payments {
			if !remaining.IsPositive() {
				break
			}
			take := minDecimal(remaining, p.UnallocatedAmount)
			if err := im.docs.UpdatePaymentUnallocated(ctx, tx, p.Name, p.UnallocatedAmount.Sub(take)); err != nil {
				return "", err
			}
			remaining = remaining.Sub(take)
			consumed = consumed.Add(take)
			touched++
		}

		if remaining.IsPositive() {
			im.logger.Warn("Overpayment correction exceeds open advances",
				"mutation_id", c.mutationID, "party", pa.party, "remaining", remaining.StringFixed(2))
		}
	}

	return fmt.Sprintf("overpayment correction consumed %s from %d payment(s)", consumed.StringFixed(2), touched), nil
}
