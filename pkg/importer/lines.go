package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

// signedLine is a journal line before it is split into debit and credit.
// Positive amounts are debits.
type signedLine struct {
	account mapping.LedgerMapping
	amount  decimal.Decimal
	party   erp.PartyType
	name    string
	remark  string
}

func (l signedLine) journalLine() erp.JournalLine {
	line := erp.JournalLine{
		Account:     l.account.Account,
		AccountType: l.account.AccountType,
		PartyType:   l.party,
		Party:       l.name,
		UserRemark:  l.remark,
	}
	if l.amount.IsNegative() {
		line.Credit = l.amount.Neg()
	} else {
		line.Debit = l.amount
	}
	return line
}

func sumLines(lines []signedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.amount)
	}
	return total
}

// account resolves a ledger, naming its role in mapping errors.
func (im *Importer) account(ledgerID int64, role string) (mapping.LedgerMapping, error) {
	acc, err := im.mapper.Account(ledgerID)
	if err != nil {
		var mErr *mapping.MappingError
		if errors.As(err, &mErr) && mErr.Context == "" {
			mErr.Context = role
		}
		return acc, err
	}
	return acc, nil
}

func requireType(acc mapping.LedgerMapping, role string, want ...erp.AccountType) error {
	for _, w := range want {
		if acc.AccountType == w {
			return nil
		}
	}
	return &AccountTypeError{
		LedgerID: acc.LedgerID,
		Account:  acc.Account,
		Role:     role,
		Got:      acc.AccountType,
		Want:     want,
	}
}

func partyTypeOf(t erp.AccountType) erp.PartyType {
	if t == erp.AccountPayable {
		return erp.PartySupplier
	}
	return erp.PartyCustomer
}

// party resolves the party for a line on a receivable or payable account:
// the mutation's relation, else the configured default party.
func (im *Importer) party(ctx context.Context, m *eboekhouden.Mutation, partyType erp.PartyType) (string, error) {
	if m.RelationID > 0 {
		return im.parties.Resolve(ctx, m.RelationID, partyType)
	}

	fallback := im.opts.DefaultCustomer
	if partyType == erp.PartySupplier {
		fallback = im.opts.DefaultSupplier
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: mutation %d has no relation and no default %s is configured",
			ErrPartyRequired, m.ID, strings.ToLower(string(partyType)))
	}
	return fallback, nil
}

// withParty fills in the party of lines on receivable/payable accounts.
func (im *Importer) withParty(ctx context.Context, m *eboekhouden.Mutation, l *signedLine) error {
	if !l.account.AccountType.IsParty() {
		return nil
	}
	l.party = partyTypeOf(l.account.AccountType)
	name, err := im.party(ctx, m, l.party)
	if err != nil {
		return err
	}
	l.name = name
	return nil
}

// rowAmounts splits a row into its net amount and VAT.
// With inclusive VAT the row amount contains the VAT.
func (im *Importer) rowAmounts(m *eboekhouden.Mutation, idx int) (net, vat decimal.Decimal, vatMapping *mapping.VatMapping, err error) {
	row := m.Rows[idx]
	net = row.Amount
	vat = row.VatAmount

	if vat.IsZero() {
		return net, vat, nil, nil
	}

	vatMapping, err = im.mapper.VatAccount(row.VatCode)
	if err != nil {
		return net, vat, nil, fmt.Errorf("row %d: %w", idx+1, err)
	}
	if vatMapping == nil {
		return net, vat, nil, fmt.Errorf("row %d has VAT %s but VAT code %q carries no VAT",
			idx+1, vat.StringFixed(2), row.VatCode)
	}

	if strings.EqualFold(m.InExVat, eboekhouden.InclusiveVat) {
		net = net.Sub(vat)
	}
	return net, vat, vatMapping, nil
}

// rowLines converts the mutation rows into signed lines. sign is +1 when a
// positive row amount is a debit and -1 when it is a credit.
func (im *Importer) rowLines(ctx context.Context, m *eboekhouden.Mutation, sign decimal.Decimal) ([]signedLine, error) {
	var lines []signedLine
	for i, row := range m.Rows {
		acc, err := im.account(row.LedgerID, fmt.Sprintf("row %d", i+1))
		if err != nil {
			return nil, err
		}

		net, vat, vatMapping, err := im.rowAmounts(m, i)
		if err != nil {
			return nil, err
		}

		remark := row.Description
		if remark == "" {
			remark = m.Description
		}

		line := signedLine{account: acc, amount: erp.Round2(net.Mul(sign)), remark: remark}
		if err := im.withParty(ctx, m, &line); err != nil {
			return nil, err
		}
		if !line.amount.IsZero() {
			lines = append(lines, line)
		}

		if vatMapping != nil {
			lines = append(lines, signedLine{
				account: mapping.LedgerMapping{Account: vatMapping.Account, AccountType: erp.AccountTax},
				amount:  erp.Round2(vat.Mul(sign)),
				remark:  "VAT " + strings.ToUpper(row.VatCode),
			})
		}
	}
	return lines, nil
}

// balance absorbs a residual within the rounding tolerance on the round-off
// account and fails otherwise.
func (im *Importer) balance(m *eboekhouden.Mutation, lines []signedLine) ([]signedLine, error) {
	residual := erp.Round2(sumLines(lines))
	if residual.IsZero() {
		return lines, nil
	}

	unbalanced := &UnbalancedError{MutationID: m.ID, Difference: residual, Tolerance: im.opts.RoundingTolerance}
	if residual.Abs().GreaterThan(im.opts.RoundingTolerance) {
		unbalanced.Reason = fmt.Sprintf("exceeds rounding tolerance %s", im.opts.RoundingTolerance.StringFixed(2))
		return nil, unbalanced
	}
	if im.opts.RoundOffAccount == "" {
		unbalanced.Reason = "no round-off account configured"
		return nil, unbalanced
	}

	im.logger.Debug("Posting rounding difference", "mutation_id", m.ID, "difference", residual.StringFixed(2))
	return append(lines, signedLine{
		account: mapping.LedgerMapping{Account: im.opts.RoundOffAccount, AccountType: erp.AccountRoundOff},
		amount:  residual.Neg(),
		remark:  "Rounding difference",
	}), nil
}

func title(m *eboekhouden.Mutation) string {
	t := strings.TrimSpace(m.Description)
	if t == "" {
		t = fmt.Sprintf("%s %d", m.Type, m.ID)
	}
	if r := []rune(t); len(r) > 140 {
		t = string(r[:140])
	}
	return t
}

func remark(m *eboekhouden.Mutation) string {
	ref := fmt.Sprintf("e-Boekhouden mutation %d", m.ID)
	if m.InvoiceNumber != "" {
		ref += ", invoice " + m.InvoiceNumber
	}
	if m.Description == "" {
		return ref
	}
	return m.Description + " (" + ref + ")"
}

func journalEntry(m *eboekhouden.Mutation, voucher erp.VoucherType, lines []signedLine) *erp.JournalEntry {
	je := &erp.JournalEntry{
		VoucherType: voucher,
		PostingDate: m.Date,
		Title:       title(m),
		UserRemark:  remark(m),
		IsOpening:   voucher == erp.VoucherOpening,
		MutationID:  m.ID,
	}
	for _, l := range lines {
		l.amount = erp.Round2(l.amount)
		if l.amount.IsZero() {
			continue
		}
		je.Lines = append(je.Lines, l.journalLine())
	}
	return je
}
