package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// buildInvoice builds a sales (2) or purchase (1) invoice. The mutation
// ledger is the receivable or payable account; rows become items and their
// VAT is aggregated per VAT code.
func (im *Importer) buildInvoice(ctx context.Context, m *eboekhouden.Mutation, kind erp.InvoiceKind) (*plan, error) {
	partyAccount, err := im.account(m.LedgerID, "mutation")
	if err != nil {
		return nil, err
	}
	want := erp.AccountReceivable
	if kind == erp.InvoicePurchase {
		want = erp.AccountPayable
	}
	if err := requireType(partyAccount, "mutation", want); err != nil {
		return nil, err
	}
	if len(m.Rows) == 0 {
		return nil, ErrNoRows
	}

	party, err := im.party(ctx, m, kind.PartyType())
	if err != nil {
		return nil, err
	}

	inv := &erp.Invoice{
		Kind:         kind,
		PartyType:    kind.PartyType(),
		Party:        party,
		PostingDate:  m.Date,
		BillNo:       strings.TrimSpace(m.InvoiceNumber),
		PartyAccount: partyAccount.Account,
		MutationID:   m.ID,
		Remarks:      remark(m),
	}

	taxIndex := make(map[string]int)
	for i, row := range m.Rows {
		acc, err := im.account(row.LedgerID, fmt.Sprintf("row %d", i+1))
		if err != nil {
			return nil, err
		}
		net, vat, vatMapping, err := im.rowAmounts(m, i)
		if err != nil {
			return nil, err
		}

		description := row.Description
		if description == "" {
			description = m.Description
		}
		if !net.IsZero() {
			inv.Items = append(inv.Items, erp.InvoiceItem{
				Description: description,
				Account:     acc.Account,
				Amount:      erp.Round2(net),
			})
		}

		if vatMapping == nil {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(row.VatCode))
		if n, ok := taxIndex[code]; ok {
			inv.Taxes[n].Amount = inv.Taxes[n].Amount.Add(erp.Round2(vat))
			continue
		}
		taxIndex[code] = len(inv.Taxes)
		inv.Taxes = append(inv.Taxes, erp.TaxLine{Account: vatMapping.Account, VatCode: code, Amount: erp.Round2(vat)})
	}

	total := inv.NetTotal().Add(inv.TaxTotal())
	if total.IsZero() {
		return &plan{skipReason: "invoice total is zero"}, nil
	}

	if total.IsNegative() {
		inv.IsReturn = true
		total = total.Neg()
		for i := range inv.Items {
			inv.Items[i].Amount = inv.Items[i].Amount.Neg()
		}
		for i := range inv.Taxes {
			inv.Taxes[i].Amount = inv.Taxes[i].Amount.Neg()
		}
	}
	inv.GrandTotal = total
	inv.Outstanding = total

	if m.TermOfPayment > 0 {
		if posting, err := time.Parse("2006-01-02", m.Date); err == nil {
			inv.DueDate = posting.AddDate(0, 0, m.TermOfPayment).Format("2006-01-02")
		}
	}

	if !m.Amount.IsZero() && !erp.Round2(m.Amount.Abs()).Equal(total) {
		im.logger.Warn("Invoice total differs from mutation amount",
			"mutation_id", m.ID, "total", total.StringFixed(2), "amount", m.Amount.StringFixed(2))
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &plan{invoice: inv}, nil
}

// persistInvoice stores an invoice unless the party already has one with the
// same bill number.
func (im *Importer) persistInvoice(ctx context.Context, tx *sql.Tx, inv *erp.Invoice, result *Result) error {
	result.DocType = inv.Kind.DocType()

	if inv.BillNo != "" {
		dup, err := im.docs.FindInvoice(ctx, tx, inv.Kind, inv.Party, inv.BillNo, inv.IsReturn)
		if err != nil {
			return err
		}
		if dup != nil {
			result.Status = db.StatusSkipped
			result.DocName = dup.Name
			result.Message = fmt.Sprintf("duplicate of %s (bill %s)", dup.Name, inv.BillNo)
			return nil
		}
	}

	name, err := im.docs.NextName(ctx, tx, inv.Kind.DocType(), inv.PostingDate)
	if err != nil {
		return err
	}
	inv.Name = name

	if err := im.docs.InsertInvoice(ctx, tx, inv); err != nil {
		return err
	}
	result.DocName = name
	return nil
}

// splitInvoiceNumbers splits a comma or semicolon separated invoice list.
func splitInvoiceNumbers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]bool, len(fields))
	var result []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		result = append(result, f)
	}
	return result
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
