package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

var (
	plusOne  = decimal.NewFromInt(1)
	minusOne = decimal.NewFromInt(-1)
)

// buildOpening builds the opening balance journal. Open receivables and
// payables without a relation are skipped; they arrive as invoices.
func (im *Importer) buildOpening(ctx context.Context, m *eboekhouden.Mutation) (*plan, error) {
	if len(m.Rows) == 0 {
		return nil, ErrNoRows
	}

	var lines []signedLine
	for i, row := range m.Rows {
		if row.Amount.IsZero() {
			continue
		}
		acc, err := im.account(row.LedgerID, fmt.Sprintf("row %d", i+1))
		if err != nil {
			return nil, err
		}
		if acc.AccountType.IsParty() && m.RelationID == 0 {
			im.logger.Debug("Skipping opening balance of party account without relation",
				"mutation_id", m.ID, "account", acc.Account, "amount", row.Amount.StringFixed(2))
			continue
		}

		line := signedLine{account: acc, amount: erp.Round2(row.Amount), remark: row.Description}
		if err := im.withParty(ctx, m, &line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return &plan{skipReason: "no opening balance lines to import"}, nil
	}

	residual := erp.Round2(sumLines(lines))
	if !residual.IsZero() {
		if im.opts.OpeningDifferenceAccount == "" {
			return nil, &UnbalancedError{
				MutationID: m.ID,
				Difference: residual,
				Reason:     "no opening difference account configured",
			}
		}
		im.logger.Info("Posting opening balance difference",
			"mutation_id", m.ID, "difference", residual.StringFixed(2), "account", im.opts.OpeningDifferenceAccount)
		lines = append(lines, signedLine{
			account: mapping.LedgerMapping{Account: im.opts.OpeningDifferenceAccount, AccountType: erp.AccountTemporary},
			amount:  residual.Neg(),
			remark:  "Opening balance difference",
		})
	}

	je := journalEntry(m, erp.VoucherOpening, lines)
	if strings.TrimSpace(m.Description) == "" {
		je.Title = "Opening balance " + m.Date
	}
	if err := je.Validate(); err != nil {
		return nil, err
	}
	return &plan{journal: je}, nil
}

// buildMoney builds the bank or cash journal of money received (5) and
// money sent (6). The mutation ledger must be a bank or cash account.
func (im *Importer) buildMoney(ctx context.Context, m *eboekhouden.Mutation) (*plan, error) {
	main, err := im.account(m.LedgerID, "mutation")
	if err != nil {
		return nil, err
	}
	if err := requireType(main, "mutation", erp.AccountBank, erp.AccountCash); err != nil {
		return nil, err
	}
	if len(m.Rows) == 0 {
		return nil, ErrNoRows
	}

	// Received: rows are credited, the bank is debited. Sent: the inverse.
	rowSign, mainSign := minusOne, plusOne
	if m.Type == eboekhouden.MutationMoneySent {
		rowSign, mainSign = plusOne, minusOne
	}

	lines, err := im.rowLines(ctx, m, rowSign)
	if err != nil {
		return nil, err
	}

	amount := m.Amount
	if amount.IsZero() {
		amount = sumLines(lines).Neg().Mul(mainSign)
	}
	lines = append([]signedLine{{
		account: main,
		amount:  erp.Round2(amount.Mul(mainSign)),
		remark:  m.Description,
	}}, lines...)

	lines, err = im.balance(m, lines)
	if err != nil {
		return nil, err
	}

	voucher := erp.VoucherBank
	if main.AccountType == erp.AccountCash {
		voucher = erp.VoucherCash
	}

	je := journalEntry(m, voucher, lines)
	if err := je.Validate(); err != nil {
		return nil, err
	}
	return &plan{journal: je}, nil
}

var overpaymentKeywords = []string{"overbetaling", "overpayment", "terugbetaling", "dubbel betaald"}

// correction is the unallocated payment amount an overpayment correction
// memorial consumes, per party.
type correction struct {
	mutationID int64
	amounts    []partyAmount
}

type partyAmount struct {
	partyType erp.PartyType
	party     string
	amount    decimal.Decimal
}

// buildMemorial builds a memorial journal. Positive row amounts are debits;
// the mutation ledger, when set, takes the opposite of the row total.
func (im *Importer) buildMemorial(ctx context.Context, m *eboekhouden.Mutation) (*plan, error) {
	if len(m.Rows) == 0 {
		return nil, ErrNoRows
	}

	lines, err := im.rowLines(ctx, m, plusOne)
	if err != nil {
		return nil, err
	}

	if m.LedgerID != 0 {
		main, err := im.account(m.LedgerID, "mutation")
		if err != nil {
			return nil, err
		}
		line := signedLine{account: main, amount: sumLines(lines).Neg(), remark: m.Description}
		if err := im.withParty(ctx, m, &line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	lines, err = im.balance(m, lines)
	if err != nil {
		return nil, err
	}

	je := journalEntry(m, erp.VoucherJournal, lines)
	p := &plan{journal: je}

	if isOverpaymentCorrection(m, lines) {
		je.Title = "Overpayment correction: " + je.Title
		p.correction = correctionOf(m, lines)
		im.logger.Info("Detected overpayment correction", "mutation_id", m.ID, "relation_id", m.RelationID)
	}

	if err := je.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// isOverpaymentCorrection reports whether a memorial with a relation moves
// money on party accounts only, or mentions an overpayment and touches a
// party account.
func isOverpaymentCorrection(m *eboekhouden.Mutation, lines []signedLine) bool {
	if m.RelationID == 0 {
		return false
	}

	partyLines := 0
	counted := 0
	for _, l := range lines {
		if l.account.AccountType == erp.AccountRoundOff {
			continue
		}
		counted++
		if l.account.AccountType.IsParty() {
			partyLines++
		}
	}
	if partyLines == 0 {
		return false
	}
	if partyLines == counted {
		return true
	}

	description := strings.ToLower(m.Description)
	for _, kw := range overpaymentKeywords {
		if strings.Contains(description, kw) {
			return true
		}
	}
	return false
}

// correctionOf computes the advance consumed per party: debits on receivable
// lines reduce a customer's credit, credits on payable lines a supplier's.
func correctionOf(m *eboekhouden.Mutation, lines []signedLine) *correction {
	c := &correction{mutationID: m.ID}
	index := make(map[string]int)

	for _, l := range lines {
		var amount decimal.Decimal
		switch {
		case l.account.AccountType == erp.AccountReceivable && l.amount.IsPositive():
			amount = l.amount
		case l.account.AccountType == erp.AccountPayable && l.amount.IsNegative():
			amount = l.amount.Neg()
		default:
			continue
		}

		key := string(l.party) + "\x00" + l.name
		if i, ok := index[key]; ok {
			c.amounts[i].amount = c.amounts[i].amount.Add(amount)
			continue
		}
		index[key] = len(c.amounts)
		c.amounts = append(c.amounts, partyAmount{partyType: l.party, party: l.name, amount: amount})
	}
	return c
}
